// Package buffer_layout describes geometry attributes over shared typed buffers and rebinds
// interleaved per-instance attributes onto new backing storage.
package buffer_layout

import (
	"github.com/Carmen-Shannon/oxy-stream/common"
)

// TreeIndexAttributeName is the instance attribute carrying each instance's tree index.
const TreeIndexAttributeName = "a_treeIndex"

// InterleavedAttributeDescriptor describes one instance attribute inside an interleaved
// backing buffer. Stride is counted in components; ByteOffset is the attribute's offset
// inside one stride, in bytes.
type InterleavedAttributeDescriptor struct {
	Name              string
	ComponentByteSize int
	Stride            int
	ItemSize          int
	ByteOffset        int
	Normalized        bool
}

// ByteStride returns the size of one interleaved item in bytes.
func (d InterleavedAttributeDescriptor) ByteStride() int {
	return d.Stride * d.ComponentByteSize
}

// GetAttributes returns the attributes of g of the given kind, in declaration order.
//
// Parameters:
//   - g: the geometry to inspect
//   - kind: KindPlain or KindInterleaved
//
// Returns:
//   - []NamedAttribute: the matching attributes
func GetAttributes(g *Geometry, kind AttributeKind) []NamedAttribute {
	var out []NamedAttribute
	for _, na := range g.attributes {
		if na.Attribute.Kind() == kind {
			out = append(out, na)
		}
	}
	return out
}

type namedInterleaved struct {
	name string
	attr *InterleavedBufferAttribute
}

func interleavedAttributes(g *Geometry) []namedInterleaved {
	var out []namedInterleaved
	for _, na := range g.attributes {
		if ia, ok := na.Attribute.(*InterleavedBufferAttribute); ok {
			out = append(out, namedInterleaved{name: na.Name, attr: ia})
		}
	}
	return out
}

// CopyGeometryWithBufferAttributes returns a new geometry holding only the plain attributes
// and the index of g. Attribute data is shared with g, not copied.
//
// Parameters:
//   - g: the source geometry
//
// Returns:
//   - *Geometry: the lightweight copy
func CopyGeometryWithBufferAttributes(g *Geometry) *Geometry {
	out := NewGeometry()
	for _, na := range GetAttributes(g, KindPlain) {
		out.SetAttribute(na.Name, na.Attribute)
	}
	out.Index = g.Index
	return out
}

// DescriptorsOf returns the descriptors of the interleaved attributes of g, in declaration order.
func DescriptorsOf(g *Geometry) []InterleavedAttributeDescriptor {
	attrs := interleavedAttributes(g)
	out := make([]InterleavedAttributeDescriptor, 0, len(attrs))
	for _, na := range attrs {
		size := na.attr.Data.Array.ElementSize
		out = append(out, InterleavedAttributeDescriptor{
			Name:              na.name,
			ComponentByteSize: size,
			Stride:            na.attr.Data.Stride,
			ItemSize:          na.attr.ItemSize,
			ByteOffset:        na.attr.Offset * size,
			Normalized:        na.attr.Normalized,
		})
	}
	return out
}

// SetInstanceAttributeDescriptors binds each descriptor as a dynamic, per-instance
// interleaved attribute of g over backing. Each attribute gets its own strided view
// (byte or float, following ComponentByteSize), all of them aliasing backing.
//
// Every descriptor is checked before anything is attached: backing must hold at least
// g.InstanceCount items of the shared byte stride, each attribute must fit inside one
// stride, and all descriptors must agree on the byte stride. On error g is left unchanged.
//
// Parameters:
//   - descriptors: the attribute layouts to bind
//   - g: the geometry receiving the attributes
//   - backing: the shared interleaved buffer
//
// Returns:
//   - error: *InvalidLayoutError if any precondition fails
func SetInstanceAttributeDescriptors(descriptors []InterleavedAttributeDescriptor, g *Geometry, backing *common.ArrayBuffer) error {
	if backing == nil || backing.Detached() {
		return invalidLayout("", "backing buffer is missing or detached")
	}
	byteLength := backing.ByteLength()
	byteStride := 0

	for _, d := range descriptors {
		if d.Name == "" {
			return invalidLayout("", "descriptor without a name")
		}
		if d.ComponentByteSize != ByteComponent && d.ComponentByteSize != FloatComponent {
			return invalidLayout(d.Name, "unsupported component size %d", d.ComponentByteSize)
		}
		if d.Stride <= 0 || d.ItemSize < 1 || d.ItemSize > 4 {
			return invalidLayout(d.Name, "stride %d, item size %d", d.Stride, d.ItemSize)
		}
		if d.ByteOffset < 0 || d.ByteOffset%d.ComponentByteSize != 0 {
			return invalidLayout(d.Name, "byte offset %d is not aligned to %d", d.ByteOffset, d.ComponentByteSize)
		}
		if d.ByteOffset/d.ComponentByteSize+d.ItemSize > d.Stride {
			return invalidLayout(d.Name, "offset %d + item size %d exceeds stride %d", d.ByteOffset/d.ComponentByteSize, d.ItemSize, d.Stride)
		}
		if byteLength%d.ComponentByteSize != 0 {
			return invalidLayout(d.Name, "backing buffer length %d is not a multiple of %d", byteLength, d.ComponentByteSize)
		}
		if byteStride == 0 {
			byteStride = d.ByteStride()
		} else if d.ByteStride() != byteStride {
			return invalidLayout(d.Name, "byte stride %d differs from %d", d.ByteStride(), byteStride)
		}
		if need := d.ByteStride() * g.InstanceCount; byteLength < need {
			return invalidLayout(d.Name, "backing buffer holds %d bytes, %d instances need %d", byteLength, g.InstanceCount, need)
		}
	}

	for _, d := range descriptors {
		data := &InterleavedBuffer{
			Array:     viewOver(backing, d.ComponentByteSize),
			Stride:    d.Stride,
			Instanced: true,
			Usage:     UsageDynamic,
		}
		g.SetAttribute(d.Name, &InterleavedBufferAttribute{
			Data:       data,
			ItemSize:   d.ItemSize,
			Offset:     d.ByteOffset / d.ComponentByteSize,
			Normalized: d.Normalized,
		})
	}
	return nil
}

// GetInstanceAttributesSharedView returns the typed view over the buffer shared by every
// interleaved attribute of g. It panics with *LayoutInvariantError if g has no interleaved
// attributes or if they do not all alias the same backing buffer.
//
// Parameters:
//   - g: the geometry to inspect
//
// Returns:
//   - TypedArray: the view of the first interleaved attribute
func GetInstanceAttributesSharedView(g *Geometry) TypedArray {
	attrs := interleavedAttributes(g)
	if len(attrs) == 0 {
		panic(&LayoutInvariantError{Reason: "geometry has no interleaved attributes"})
	}
	first := attrs[0]
	for _, na := range attrs[1:] {
		if !na.attr.Data.Array.SameBuffer(first.attr.Data.Array) {
			panic(&LayoutInvariantError{
				Reason:     "interleaved attributes do not share a backing buffer",
				Attributes: []string{first.name, na.name},
			})
		}
	}
	return first.attr.Data.Array
}

// TreeIndexAttribute returns the tree index instance attribute of g.
//
// Parameters:
//   - g: the geometry to inspect
//
// Returns:
//   - *InterleavedBufferAttribute: the attribute named TreeIndexAttributeName
//   - bool: false if g has no such interleaved attribute
func TreeIndexAttribute(g *Geometry) (*InterleavedBufferAttribute, bool) {
	attr, ok := g.Attribute(TreeIndexAttributeName)
	if !ok {
		return nil, false
	}
	ia, ok := attr.(*InterleavedBufferAttribute)
	return ia, ok
}

// TreeIndices returns the tree index of every instance of g, or nil if g has none.
func TreeIndices(g *Geometry) []int {
	attr, ok := TreeIndexAttribute(g)
	if !ok {
		return nil
	}
	out := make([]int, attr.Count())
	for i := range out {
		out[i] = int(attr.X(i))
	}
	return out
}
