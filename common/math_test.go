package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMat4_MulIdentity(t *testing.T) {
	m := Translation(1, 2, 3).Mul(Scaling(2, 2, 2))
	require.Equal(t, m, IdentityMat4().Mul(m))
	require.Equal(t, m, m.Mul(IdentityMat4()))
}

func TestMat4_TranslationComposes(t *testing.T) {
	m := Translation(1, 0, 0).Mul(Translation(0, 2, 0))
	require.Equal(t, Vec3{1, 2, 0}, m.TransformPoint(Vec3{}))
}

func TestMat4_MulOrder(t *testing.T) {
	// Scale first, then translate.
	m := Translation(10, 0, 0).Mul(Scaling(2, 1, 1))
	require.Equal(t, Vec3{12, 1, 1}, m.TransformPoint(Vec3{1, 1, 1}))
}

func TestMat4_Inverse(t *testing.T) {
	m := MulAll(Translation(3, -4, 5), Scaling(2, 4, 0.5))
	inv, ok := m.Inverse()
	require.True(t, ok)
	require.True(t, m.Mul(inv).ApproxEqual(IdentityMat4(), 1e-5))
	require.True(t, inv.Mul(m).ApproxEqual(IdentityMat4(), 1e-5))
}

func TestMat4_InverseSingular(t *testing.T) {
	_, ok := Scaling(1, 0, 1).Inverse()
	require.False(t, ok)
}

func TestMulAll_Empty(t *testing.T) {
	require.Equal(t, IdentityMat4(), MulAll())
}

func TestLookAt_MapsEyeToOrigin(t *testing.T) {
	view := LookAt(Vec3{0, 0, 10}, Vec3{}, Vec3{0, 1, 0})
	p := view.TransformPoint(Vec3{0, 0, 10})
	for _, c := range p {
		require.InDelta(t, 0, c, 1e-5)
	}
	// The target sits straight ahead on -Z in view space.
	target := view.TransformPoint(Vec3{})
	require.InDelta(t, -10, target[2], 1e-5)
}

func TestPerspective_DepthRange(t *testing.T) {
	proj := Perspective(float32(math.Pi/2), 1, 1, 100)
	near := proj.TransformPoint(Vec3{0, 0, -1})
	far := proj.TransformPoint(Vec3{0, 0, -100})
	require.InDelta(t, 0, near[2], 1e-5)
	require.InDelta(t, 1, far[2], 1e-5)
}

func TestBytesToSlice_RoundTrip(t *testing.T) {
	floats := []float32{1, 2, 3, 4}
	b := SliceToBytes(floats)
	require.Len(t, b, 16)

	back := BytesToSlice[float32](b)
	require.Equal(t, floats, back)

	back[0] = 9
	require.Equal(t, float32(9), floats[0], "views must alias")
}

func TestBytesToSlice_TooShort(t *testing.T) {
	require.Nil(t, BytesToSlice[float32]([]byte{1, 2}))
}

func TestCoalesce(t *testing.T) {
	require.Equal(t, 3, Coalesce(0, 3, 4))
	require.Equal(t, "", Coalesce("", ""))
	require.Equal(t, "a", Coalesce("a"))
}
