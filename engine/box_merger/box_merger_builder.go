package box_merger

import "github.com/Carmen-Shannon/oxy-stream/common"

// DefaultIoUThreshold is the Intersection-over-Union at or above which two result boxes are squashed.
const DefaultIoUThreshold = 0.15

// BoxMergerBuilderOption is a functional option for configuring a BoxMerger.
type BoxMergerBuilderOption func(*boxMerger)

// WithIoUThreshold sets the Intersection-over-Union at or above which SquashAndGetBoxes
// merges two result boxes. Values outside (0, 1] are ignored.
//
// Parameters:
//   - threshold: the squash threshold
//
// Returns:
//   - BoxMergerBuilderOption: a function that applies the threshold option
func WithIoUThreshold(threshold float64) BoxMergerBuilderOption {
	return func(m *boxMerger) {
		if threshold > 0 && threshold <= 1 {
			m.iouThreshold = threshold
		}
	}
}

// WithCapacity preallocates room for n result boxes.
//
// Parameters:
//   - n: the expected number of result boxes
//
// Returns:
//   - BoxMergerBuilderOption: a function that applies the capacity option
func WithCapacity(n int) BoxMergerBuilderOption {
	return func(m *boxMerger) {
		if n > 0 {
			m.results = make([]common.Box3, 0, n)
		}
	}
}
