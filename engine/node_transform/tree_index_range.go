package node_transform

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned for a tree index range that is negative or inverted.
var ErrInvalidRange = errors.New("invalid tree index range")

// TreeIndexRange is a contiguous, inclusive range of tree indices identifying a
// subtree of nodes in the model hierarchy.
type TreeIndexRange struct {
	From        int
	ToInclusive int
}

// RangeFromCount builds the range [from, from+count-1].
func RangeFromCount(from, count int) TreeIndexRange {
	return TreeIndexRange{From: from, ToInclusive: from + count - 1}
}

// Count returns the number of tree indices in the range.
func (r TreeIndexRange) Count() int {
	return r.ToInclusive - r.From + 1
}

// Contains reports whether treeIndex lies inside the range.
func (r TreeIndexRange) Contains(treeIndex int) bool {
	return treeIndex >= r.From && treeIndex <= r.ToInclusive
}

// Key is the serialized form used to index stored overrides: "{from}-{to}".
func (r TreeIndexRange) Key() string {
	return fmt.Sprintf("%d-%d", r.From, r.ToInclusive)
}

// Validate checks that the range is non-negative and not inverted.
func (r TreeIndexRange) Validate() error {
	if r.From < 0 || r.ToInclusive < r.From {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, r.From, r.ToInclusive)
	}
	return nil
}

func (r TreeIndexRange) String() string {
	return fmt.Sprintf("[%d..%d]", r.From, r.ToInclusive)
}
