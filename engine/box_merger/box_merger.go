// Package box_merger greedily consolidates axis-aligned bounding boxes so culling has fewer
// volumes to test.
package box_merger

import (
	"github.com/Carmen-Shannon/oxy-stream/common"
)

// BoxMerger accumulates boxes and merges the ones that overlap.
//
// Merging is greedy and order dependent. AddBoxes unions each incoming box into the first
// result box it touches. SquashAndGetBoxes then makes a single pass over all pairs of
// result boxes and unions the pairs whose IoU reaches the threshold; it does not repeat
// the pass until nothing changes, so a box that only starts overlapping another because of
// an earlier union in the same pass may stay separate. Within the pass a merged box is
// removed by moving the last result box into its slot, and that moved box is compared
// against the same outer box before the pass moves on, so it is never skipped.
//
// A BoxMerger is not safe for concurrent use.
type BoxMerger interface {
	// AddBoxes merges boxes into the result set. Each box is unioned into the first
	// result box it intersects (touching counts), or appended if it intersects none.
	//
	// Parameters:
	//   - boxes: the boxes to add; empty boxes are skipped
	AddBoxes(boxes ...common.Box3)

	// SquashAndGetBoxes runs one squash pass over the result set and returns it.
	// The returned slice is a copy; its order is unspecified.
	//
	// Returns:
	//   - []common.Box3: the consolidated boxes
	SquashAndGetBoxes() []common.Box3

	// Len returns the current number of result boxes.
	Len() int

	// Reset discards every result box.
	Reset()
}

// boxMerger is the implementation of the BoxMerger interface.
type boxMerger struct {
	results      []common.Box3
	iouThreshold float64
}

var _ BoxMerger = &boxMerger{}

// NewBoxMerger creates a BoxMerger with the default IoU threshold, then applies the options.
//
// Parameters:
//   - options: variadic BoxMergerBuilderOption functions
//
// Returns:
//   - BoxMerger: the configured merger
func NewBoxMerger(options ...BoxMergerBuilderOption) BoxMerger {
	m := &boxMerger{iouThreshold: DefaultIoUThreshold}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *boxMerger) AddBoxes(boxes ...common.Box3) {
	for _, box := range boxes {
		if box.IsEmpty() {
			continue
		}
		merged := false
		for i := range m.results {
			if m.results[i].Intersects(box) {
				m.results[i] = m.results[i].Union(box)
				merged = true
				break
			}
		}
		if !merged {
			m.results = append(m.results, box)
		}
	}
}

func (m *boxMerger) SquashAndGetBoxes() []common.Box3 {
	m.squashBoxes()
	return append([]common.Box3(nil), m.results...)
}

func (m *boxMerger) Len() int {
	return len(m.results)
}

func (m *boxMerger) Reset() {
	m.results = m.results[:0]
}

// squashBoxes unions every pair (i, j), i < j, whose IoU is at or above the threshold.
// Box j is removed by swapping in the last box; j is then re-examined since it now holds
// a box that has not been compared with i yet.
func (m *boxMerger) squashBoxes() {
	for i := 0; i < len(m.results); i++ {
		for j := i + 1; j < len(m.results); {
			if m.results[i].IoU(m.results[j]) >= m.iouThreshold {
				m.results[i] = m.results[i].Union(m.results[j])
				last := len(m.results) - 1
				m.results[j] = m.results[last]
				m.results = m.results[:last]
				continue
			}
			j++
		}
	}
}
