package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func testFrustum() Frustum {
	view := LookAt(Vec3{0, 0, 10}, Vec3{}, Vec3{0, 1, 0})
	proj := Perspective(float32(math.Pi/3), 1, 0.1, 100)
	return ExtractFrustum(proj.Mul(view))
}

func TestFrustum_IntersectsBox(t *testing.T) {
	f := testFrustum()

	require.True(t, f.IntersectsBox(unitBoxAt(-0.5, -0.5, -0.5)), "box at the look-at target")
	require.False(t, f.IntersectsBox(unitBoxAt(0, 0, 20)), "box behind the camera")
	require.False(t, f.IntersectsBox(unitBoxAt(1000, 0, 0)), "box far to the side")
	require.False(t, f.IntersectsBox(unitBoxAt(0, 0, -200)), "box past the far plane")
}

func TestFrustum_StraddlingBoxIsVisible(t *testing.T) {
	f := testFrustum()
	wide := Box3{Min: Vec3{-1000, -1, -1}, Max: Vec3{1000, 1, 1}}
	require.True(t, f.IntersectsBox(wide))
}

func TestExtractFrustum_PlanesNormalized(t *testing.T) {
	f := testFrustum()
	for i, p := range f.Planes {
		l := math.Sqrt(float64(dot(p.Normal, p.Normal)))
		require.InDelta(t, 1.0, l, 1e-5, "plane %d", i)
	}
}
