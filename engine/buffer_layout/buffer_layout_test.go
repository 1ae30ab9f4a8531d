package buffer_layout

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-stream/common"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instanceDescriptors lays out one float tree index followed by four normalized color
// bytes: 8 bytes per instance.
var instanceDescriptors = []InterleavedAttributeDescriptor{
	{Name: TreeIndexAttributeName, ComponentByteSize: FloatComponent, Stride: 2, ItemSize: 1, ByteOffset: 0},
	{Name: "a_color", ComponentByteSize: ByteComponent, Stride: 8, ItemSize: 4, ByteOffset: 4, Normalized: true},
}

func newMeshGeometry() *Geometry {
	g := NewGeometry()
	g.SetAttribute("position", &BufferAttribute{Array: Float32Array(0, 0, 0, 1, 0, 0, 0, 1, 0), ItemSize: 3})
	g.SetAttribute("normal", &BufferAttribute{Array: Float32Array(0, 0, 1, 0, 0, 1, 0, 0, 1), ItemSize: 3})
	g.Index = &BufferAttribute{Array: Uint8Array(0, 1, 2), ItemSize: 1}
	return g
}

// newInstancedGeometry returns a mesh with three instances whose tree indices are 100..102
// and whose colors are {i, i, i, 255}.
func newInstancedGeometry(t *testing.T) (*Geometry, *common.ArrayBuffer) {
	t.Helper()
	g := newMeshGeometry()
	g.InstanceCount = 3
	backing := common.NewArrayBuffer(24)
	floats := common.BytesToSlice[float32](backing.Bytes())
	for i := 0; i < 3; i++ {
		floats[i*2] = float32(100 + i)
		copy(backing.Bytes()[i*8+4:], []byte{byte(i), byte(i), byte(i), 255})
	}
	require.NoError(t, SetInstanceAttributeDescriptors(instanceDescriptors, g, backing))
	return g, backing
}

func names(attrs []NamedAttribute) []string {
	out := make([]string, 0, len(attrs))
	for _, na := range attrs {
		out = append(out, na.Name)
	}
	return out
}

func recoverPanic(fn func()) (value any) {
	defer func() { value = recover() }()
	fn()
	return nil
}

func TestGetAttributesByKind(t *testing.T) {
	g, _ := newInstancedGeometry(t)

	assert.Equal(t, []string{"position", "normal"}, names(GetAttributes(g, KindPlain)))
	assert.Equal(t, []string{TreeIndexAttributeName, "a_color"}, names(GetAttributes(g, KindInterleaved)))
}

func TestCopyGeometryWithBufferAttributesSharesData(t *testing.T) {
	g, _ := newInstancedGeometry(t)
	cp := CopyGeometryWithBufferAttributes(g)

	assert.Equal(t, []string{"position", "normal"}, names(cp.Attributes()))
	assert.Empty(t, GetAttributes(cp, KindInterleaved))
	assert.Same(t, g.Index, cp.Index)

	orig, _ := g.Attribute("position")
	copied, _ := cp.Attribute("position")
	assert.Same(t, orig, copied)
}

func TestSetInstanceAttributeDescriptors(t *testing.T) {
	g, backing := newInstancedGeometry(t)

	assert.Equal(t, []int{100, 101, 102}, TreeIndices(g))

	attr, ok := g.Attribute("a_color")
	require.True(t, ok)
	color := attr.(*InterleavedBufferAttribute)
	assert.True(t, color.Data.Instanced)
	assert.Equal(t, UsageDynamic, color.Data.Usage)
	assert.Equal(t, 3, color.Count())
	assert.Equal(t, 4, color.Offset)
	assert.Equal(t, float32(2), color.Component(2, 1))
	assert.Equal(t, float32(255), color.Component(0, 3))

	view := GetInstanceAttributesSharedView(g)
	assert.Same(t, backing, view.Buffer)
	assert.Equal(t, 24, view.ByteLength())
}

func TestRebindOntoLargerBuffer(t *testing.T) {
	src, _ := newInstancedGeometry(t)
	descriptors := DescriptorsOf(src)
	assert.Equal(t, instanceDescriptors, descriptors)

	dst := CopyGeometryWithBufferAttributes(src)
	dst.InstanceCount = 16
	bigger := common.NewArrayBuffer(16 * 8)
	copy(bigger.Bytes(), GetInstanceAttributesSharedView(src).Bytes())
	require.NoError(t, SetInstanceAttributeDescriptors(descriptors, dst, bigger))

	tree, ok := TreeIndexAttribute(dst)
	require.True(t, ok)
	assert.Equal(t, 16, tree.Count())
	assert.Equal(t, float32(101), tree.X(1))
	assert.Same(t, bigger, GetInstanceAttributesSharedView(dst).Buffer)
}

func TestSetInstanceAttributeDescriptorsChecksBackingSize(t *testing.T) {
	g := newMeshGeometry()
	g.InstanceCount = 4
	err := SetInstanceAttributeDescriptors(instanceDescriptors, g, common.NewArrayBuffer(24))

	var layoutErr *InvalidLayoutError
	require.True(t, errors.As(err, &layoutErr))
	assert.Equal(t, TreeIndexAttributeName, layoutErr.Attribute)
	assert.Empty(t, GetAttributes(g, KindInterleaved), "geometry must be untouched on error")
}

func TestSetInstanceAttributeDescriptorsRejectsBadLayouts(t *testing.T) {
	cases := map[string]InterleavedAttributeDescriptor{
		"item past stride":  {Name: "a", ComponentByteSize: 4, Stride: 2, ItemSize: 2, ByteOffset: 4},
		"unaligned offset":  {Name: "a", ComponentByteSize: 4, Stride: 2, ItemSize: 1, ByteOffset: 2},
		"component size":    {Name: "a", ComponentByteSize: 2, Stride: 4, ItemSize: 1},
		"zero stride":       {Name: "a", ComponentByteSize: 4, Stride: 0, ItemSize: 1},
		"missing name":      {ComponentByteSize: 4, Stride: 2, ItemSize: 1},
		"item size too big": {Name: "a", ComponentByteSize: 1, Stride: 8, ItemSize: 5},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			g := newMeshGeometry()
			g.InstanceCount = 1
			err := SetInstanceAttributeDescriptors([]InterleavedAttributeDescriptor{d}, g, common.NewArrayBuffer(64))
			var layoutErr *InvalidLayoutError
			assert.ErrorAs(t, err, &layoutErr)
		})
	}

	t.Run("mixed byte strides", func(t *testing.T) {
		g := newMeshGeometry()
		mixed := []InterleavedAttributeDescriptor{
			{Name: "a", ComponentByteSize: 4, Stride: 2, ItemSize: 1},
			{Name: "b", ComponentByteSize: 1, Stride: 12, ItemSize: 4},
		}
		var layoutErr *InvalidLayoutError
		assert.ErrorAs(t, SetInstanceAttributeDescriptors(mixed, g, common.NewArrayBuffer(64)), &layoutErr)
	})

	t.Run("detached backing", func(t *testing.T) {
		buf := common.NewArrayBuffer(64)
		_, err := buf.Transfer()
		require.NoError(t, err)
		var layoutErr *InvalidLayoutError
		assert.ErrorAs(t, SetInstanceAttributeDescriptors(instanceDescriptors, newMeshGeometry(), buf), &layoutErr)
	})
}

func TestSharedViewPanicsOnDistinctBuffers(t *testing.T) {
	g := newMeshGeometry()
	g.SetAttribute("a_one", &InterleavedBufferAttribute{
		Data:     &InterleavedBuffer{Array: Float32Array(1, 2, 3, 4), Stride: 2, Instanced: true},
		ItemSize: 1,
	})
	g.SetAttribute("a_two", &InterleavedBufferAttribute{
		Data:     &InterleavedBuffer{Array: Float32Array(1, 2, 3, 4), Stride: 2, Instanced: true},
		ItemSize: 1,
		Offset:   1,
	})

	value := recoverPanic(func() { GetInstanceAttributesSharedView(g) })
	invariantErr, ok := value.(*LayoutInvariantError)
	require.True(t, ok, "expected *LayoutInvariantError, got %v", value)
	assert.Equal(t, []string{"a_one", "a_two"}, invariantErr.Attributes)
}

func TestSharedViewPanicsWithoutInterleavedAttributes(t *testing.T) {
	value := recoverPanic(func() { GetInstanceAttributesSharedView(newMeshGeometry()) })
	_, ok := value.(*LayoutInvariantError)
	assert.True(t, ok)
}

func TestInstanceBufferLayout(t *testing.T) {
	g, _ := newInstancedGeometry(t)

	layout, err := InstanceBufferLayout(g, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), layout.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, layout.StepMode)
	assert.Equal(t, []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32, Offset: 0, ShaderLocation: 3},
		{Format: wgpu.VertexFormatUnorm8x4, Offset: 4, ShaderLocation: 4},
	}, layout.Attributes)
}

func TestInstanceBufferLayoutRejectsUnsupportedFormat(t *testing.T) {
	g := newMeshGeometry()
	g.InstanceCount = 1
	require.NoError(t, SetInstanceAttributeDescriptors([]InterleavedAttributeDescriptor{
		{Name: "a_rgb", ComponentByteSize: ByteComponent, Stride: 4, ItemSize: 3},
	}, g, common.NewArrayBuffer(4)))

	_, err := InstanceBufferLayout(g, 0)
	var layoutErr *InvalidLayoutError
	assert.ErrorAs(t, err, &layoutErr)
}

func TestExtendUpdateRange(t *testing.T) {
	b := &InterleavedBuffer{Array: viewOver(common.NewArrayBuffer(64), FloatComponent), Stride: 2}

	b.ExtendUpdateRange(8, 16)
	assert.Equal(t, []UpdateRange{{Start: 2, Count: 4}}, b.UpdateRanges)
	assert.True(t, b.NeedsUpdate)

	b.ExtendUpdateRange(0, 4)
	assert.Equal(t, []UpdateRange{{Start: 0, Count: 6}}, b.UpdateRanges)

	b.ExtendUpdateRange(40, 8)
	assert.Equal(t, []UpdateRange{{Start: 0, Count: 12}}, b.UpdateRanges)
}

func TestNewTypedArray(t *testing.T) {
	buf := common.NewArrayBuffer(16)

	view, err := NewTypedArray(buf, FloatComponent, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, 12, view.ByteLength())
	view.Float32s()[0] = 2.5
	assert.Equal(t, float32(2.5), view.At(0))

	_, err = NewTypedArray(buf, FloatComponent, 2, 1)
	assert.Error(t, err)
	_, err = NewTypedArray(buf, FloatComponent, 4, 4)
	assert.Error(t, err)
	_, err = NewTypedArray(buf, 2, 0, 1)
	assert.Error(t, err)
	_, err = NewTypedArray(nil, ByteComponent, 0, 1)
	assert.Error(t, err)
}

func TestGeometryAttributeOrder(t *testing.T) {
	g := NewGeometry()
	g.SetAttribute("a", &BufferAttribute{Array: Float32Array(1), ItemSize: 1})
	g.SetAttribute("b", &BufferAttribute{Array: Float32Array(1), ItemSize: 1})
	g.SetAttribute("a", &BufferAttribute{Array: Float32Array(2, 3), ItemSize: 1})
	assert.Equal(t, []string{"a", "b"}, names(g.Attributes()))

	attr, _ := g.Attribute("a")
	assert.Equal(t, 2, attr.Count())

	g.DeleteAttribute("a")
	assert.Equal(t, []string{"b"}, names(g.Attributes()))
}
