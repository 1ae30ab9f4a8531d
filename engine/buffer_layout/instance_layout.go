package buffer_layout

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormatKey identifies a vertex format by component size, component count and normalization.
type vertexFormatKey struct {
	componentSize int
	itemSize      int
	normalized    bool
}

// vertexFormatMap maps interleaved attribute shapes to their wgpu vertex format.
// Single and triple byte components have no wgpu format.
var vertexFormatMap = map[vertexFormatKey]wgpu.VertexFormat{
	{FloatComponent, 1, false}: wgpu.VertexFormatFloat32,
	{FloatComponent, 2, false}: wgpu.VertexFormatFloat32x2,
	{FloatComponent, 3, false}: wgpu.VertexFormatFloat32x3,
	{FloatComponent, 4, false}: wgpu.VertexFormatFloat32x4,
	{FloatComponent, 1, true}:  wgpu.VertexFormatFloat32,
	{FloatComponent, 2, true}:  wgpu.VertexFormatFloat32x2,
	{FloatComponent, 3, true}:  wgpu.VertexFormatFloat32x3,
	{FloatComponent, 4, true}:  wgpu.VertexFormatFloat32x4,
	{ByteComponent, 2, false}:  wgpu.VertexFormatUint8x2,
	{ByteComponent, 4, false}:  wgpu.VertexFormatUint8x4,
	{ByteComponent, 2, true}:   wgpu.VertexFormatUnorm8x2,
	{ByteComponent, 4, true}:   wgpu.VertexFormatUnorm8x4,
}

// InstanceBufferLayout converts the interleaved attributes of g into a per-instance
// wgpu.VertexBufferLayout. Shader locations are assigned sequentially from firstLocation
// in declaration order. The geometry must satisfy the shared buffer invariant.
//
// Parameters:
//   - g: the geometry holding the instance attributes
//   - firstLocation: the shader location of the first attribute
//
// Returns:
//   - wgpu.VertexBufferLayout: the instance step layout
//   - error: *InvalidLayoutError if an attribute has no matching vertex format
func InstanceBufferLayout(g *Geometry, firstLocation uint32) (wgpu.VertexBufferLayout, error) {
	GetInstanceAttributesSharedView(g)
	attrs := interleavedAttributes(g)
	out := make([]wgpu.VertexAttribute, 0, len(attrs))
	var stride uint64

	for i, na := range attrs {
		size := na.attr.Data.Array.ElementSize
		format, ok := vertexFormatMap[vertexFormatKey{size, na.attr.ItemSize, na.attr.Normalized}]
		if !ok {
			return wgpu.VertexBufferLayout{}, invalidLayout(na.name, "no vertex format for %d x %d-byte components", na.attr.ItemSize, size)
		}
		byteStride := uint64(na.attr.Data.Stride * size)
		if stride == 0 {
			stride = byteStride
		} else if stride != byteStride {
			return wgpu.VertexBufferLayout{}, invalidLayout(na.name, "byte stride %d differs from %d", byteStride, stride)
		}
		out = append(out, wgpu.VertexAttribute{
			Format:         format,
			Offset:         uint64(na.attr.Offset * size),
			ShaderLocation: firstLocation + uint32(i),
		})
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: stride,
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes:  out,
	}, nil
}
