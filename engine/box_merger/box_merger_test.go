package box_merger

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-stream/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// span returns a box covering [x0, x1] along x and [0, 1] on the other axes, so its
// volume equals its x extent.
func span(x0, x1 float32) common.Box3 {
	return common.Box3{Min: common.Vec3{x0, 0, 0}, Max: common.Vec3{x1, 1, 1}}
}

func shuffled(boxes []common.Box3, seed int64) []common.Box3 {
	out := append([]common.Box3(nil), boxes...)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestDisjointBoxesStaySeparate(t *testing.T) {
	var boxes []common.Box3
	for i := 0; i < 12; i++ {
		x := float32(i * 3)
		boxes = append(boxes, common.Box3{Min: common.Vec3{x, x, 0}, Max: common.Vec3{x + 1, x + 2, 1}})
	}

	for seed := int64(0); seed < 20; seed++ {
		m := NewBoxMerger()
		m.AddBoxes(shuffled(boxes, seed)...)
		assert.Len(t, m.SquashAndGetBoxes(), len(boxes), "seed %d", seed)
	}
}

func TestChainedOverlapMergesToOne(t *testing.T) {
	var chain []common.Box3
	for i := 0; i < 10; i++ {
		chain = append(chain, span(float32(i), float32(i)+1.5))
	}

	m := NewBoxMerger()
	m.AddBoxes(chain...)
	result := m.SquashAndGetBoxes()
	require.Len(t, result, 1)
	assert.Equal(t, span(0, 10.5), result[0])
}

func TestMutuallyOverlappingBoxesMergeInAnyOrder(t *testing.T) {
	var boxes []common.Box3
	for i := 0; i < 10; i++ {
		boxes = append(boxes, span(float32(i)*0.1, float32(i)*0.1+2))
	}

	for seed := int64(0); seed < 20; seed++ {
		m := NewBoxMerger()
		m.AddBoxes(shuffled(boxes, seed)...)
		result := m.SquashAndGetBoxes()
		require.Len(t, result, 1, "seed %d", seed)
		assert.InDelta(t, 0, result[0].Min[0], 1e-6)
		assert.InDelta(t, 2.9, result[0].Max[0], 1e-6)
	}
}

func TestAddBoxesUsesFirstMatch(t *testing.T) {
	m := NewBoxMerger()
	m.AddBoxes(span(0, 1), span(4, 5))
	// Touches both results; only the first absorbs it.
	m.AddBoxes(span(1, 4))

	assert.Equal(t, 2, m.Len())
	bm := m.(*boxMerger)
	assert.Equal(t, span(0, 4), bm.results[0])
	assert.Equal(t, span(4, 5), bm.results[1])
}

// grownPair leaves two separate results, [0, reach] and [2, 5], by growing the first
// one after the second was added.
func grownPair(m BoxMerger, reach float32) {
	m.AddBoxes(span(0, 1), span(2, 5))
	m.AddBoxes(span(0.5, reach))
}

func TestIoUAtThresholdMerges(t *testing.T) {
	m := NewBoxMerger()
	grownPair(m, 2.75)
	require.Equal(t, 2, m.Len())
	// Intersection 0.75, union 5.
	require.Equal(t, 0.15, span(0, 2.75).IoU(span(2, 5)))

	result := m.SquashAndGetBoxes()
	require.Len(t, result, 1)
	assert.Equal(t, span(0, 5), result[0])
}

func TestIoUJustBelowThresholdStaysSeparate(t *testing.T) {
	m := NewBoxMerger()
	grownPair(m, 2.74)
	require.Less(t, span(0, 2.74).IoU(span(2, 5)), 0.15)

	assert.Len(t, m.SquashAndGetBoxes(), 2)
}

func TestCustomThreshold(t *testing.T) {
	m := NewBoxMerger(WithIoUThreshold(0.5))
	grownPair(m, 3.5)
	// Intersection 1.5, union 5.
	assert.Len(t, m.SquashAndGetBoxes(), 2)

	m = NewBoxMerger(WithIoUThreshold(0.25))
	grownPair(m, 3.5)
	assert.Len(t, m.SquashAndGetBoxes(), 1)
}

func TestSquashIsSinglePass(t *testing.T) {
	m := &boxMerger{iouThreshold: DefaultIoUThreshold}
	// results[1] only overlaps results[0] enough after results[2] has been merged into it.
	m.results = []common.Box3{span(0, 2), span(2, 3.2), span(1, 3)}

	first := m.SquashAndGetBoxes()
	require.Len(t, first, 2)
	assert.Equal(t, span(0, 3), first[0])

	second := m.SquashAndGetBoxes()
	require.Len(t, second, 1)
	assert.Equal(t, span(0, 3.2), second[0])
}

func TestSquashRechecksSwappedInBox(t *testing.T) {
	m := &boxMerger{iouThreshold: DefaultIoUThreshold}
	m.results = []common.Box3{span(0, 2), span(1, 3), span(0.5, 2.5)}

	result := m.SquashAndGetBoxes()
	require.Len(t, result, 1)
	assert.Equal(t, span(0, 3), result[0])
}

func TestEmptyBoxesAreSkippedAndResetClears(t *testing.T) {
	m := NewBoxMerger(WithCapacity(4))
	m.AddBoxes(common.Box3{Min: common.Vec3{1, 1, 1}, Max: common.Vec3{0, 0, 0}})
	assert.Equal(t, 0, m.Len())

	m.AddBoxes(span(0, 1), span(3, 4))
	assert.Equal(t, 2, m.Len())

	m.Reset()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.SquashAndGetBoxes())
}

func TestMergedBoxesFeedFrustumCulling(t *testing.T) {
	m := NewBoxMerger()
	m.AddBoxes(
		common.NewBox3(common.Vec3{-1, -1, -1}, common.Vec3{0, 0, 0}),
		common.NewBox3(common.Vec3{-0.5, -0.5, -0.5}, common.Vec3{1, 1, 1}),
		common.NewBox3(common.Vec3{-1, -1, 200}, common.Vec3{1, 1, 201}),
	)
	boxes := m.SquashAndGetBoxes()
	require.Len(t, boxes, 2)

	view := common.LookAt(common.Vec3{0, 0, 10}, common.Vec3{0, 0, 0}, common.Vec3{0, 1, 0})
	frustum := common.ExtractFrustum(common.Perspective(1.0, 1, 0.1, 100).Mul(view))

	var visible int
	for _, b := range boxes {
		if frustum.IntersectsBox(b) {
			visible++
		}
	}
	assert.Equal(t, 1, visible)
}
