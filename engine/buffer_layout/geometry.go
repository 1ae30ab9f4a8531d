package buffer_layout

// AttributeKind discriminates the two categories of geometry attribute.
type AttributeKind int

const (
	// KindPlain is a per-vertex attribute backed by its own array.
	KindPlain AttributeKind = iota
	// KindInterleaved is an attribute read with a stride out of an array shared with other attributes.
	KindInterleaved
)

func (k AttributeKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindInterleaved:
		return "interleaved"
	default:
		return "unknown"
	}
}

// Attribute is a named slot on a Geometry. It is implemented by *BufferAttribute and
// *InterleavedBufferAttribute only.
type Attribute interface {
	Kind() AttributeKind
	// Count returns the number of items (vertices or instances) the attribute holds.
	Count() int
	isAttribute()
}

// BufferAttribute is a plain attribute: ItemSize consecutive components per item.
type BufferAttribute struct {
	Array      TypedArray
	ItemSize   int
	Normalized bool
}

var _ Attribute = &BufferAttribute{}

func (a *BufferAttribute) Kind() AttributeKind { return KindPlain }

func (a *BufferAttribute) Count() int {
	if a.ItemSize == 0 {
		return 0
	}
	return a.Array.Length / a.ItemSize
}

func (a *BufferAttribute) isAttribute() {}

// Usage hints how often an interleaved buffer is rewritten.
type Usage int

const (
	UsageStatic Usage = iota
	UsageDynamic
)

// UpdateRange is a dirty region of an interleaved buffer, in elements.
type UpdateRange struct {
	Start int
	Count int
}

// InterleavedBuffer is a strided typed view shared by one or more InterleavedBufferAttributes.
// Stride is measured in elements of the view.
type InterleavedBuffer struct {
	Array        TypedArray
	Stride       int
	Instanced    bool
	Usage        Usage
	UpdateRanges []UpdateRange
	NeedsUpdate  bool
}

// Count returns the number of strided items in the buffer.
func (b *InterleavedBuffer) Count() int {
	if b.Stride == 0 {
		return 0
	}
	return b.Array.Length / b.Stride
}

// ClearUpdateRanges drops every pending dirty range.
func (b *InterleavedBuffer) ClearUpdateRanges() {
	b.UpdateRanges = b.UpdateRanges[:0]
}

// ExtendUpdateRange grows the pending dirty range so that it also covers the given byte
// range, and flags the buffer for upload. Only a single range is tracked: a new range is
// merged with the existing one into their common bounding range.
//
// Parameters:
//   - byteOffset: start of the newly written bytes
//   - byteCount: number of bytes written
func (b *InterleavedBuffer) ExtendUpdateRange(byteOffset, byteCount int) {
	size := b.Array.ElementSize
	newStart := byteOffset / size
	newCount := byteCount / size
	b.NeedsUpdate = true

	if len(b.UpdateRanges) == 0 {
		b.UpdateRanges = append(b.UpdateRanges, UpdateRange{Start: newStart, Count: newCount})
		return
	}

	old := b.UpdateRanges[0]
	start := min(old.Start, newStart)
	end := max(old.Start+old.Count, newStart+newCount)
	b.ClearUpdateRanges()
	b.UpdateRanges = append(b.UpdateRanges, UpdateRange{Start: start, Count: end - start})
}

// InterleavedBufferAttribute reads ItemSize components per item, starting Offset
// elements into each stride of Data.
type InterleavedBufferAttribute struct {
	Data       *InterleavedBuffer
	ItemSize   int
	Offset     int
	Normalized bool
}

var _ Attribute = &InterleavedBufferAttribute{}

func (a *InterleavedBufferAttribute) Kind() AttributeKind { return KindInterleaved }

func (a *InterleavedBufferAttribute) Count() int { return a.Data.Count() }

func (a *InterleavedBufferAttribute) isAttribute() {}

// Component returns component c of item i.
func (a *InterleavedBufferAttribute) Component(i, c int) float32 {
	return a.Data.Array.At(i*a.Data.Stride + a.Offset + c)
}

// X returns the first component of item i.
func (a *InterleavedBufferAttribute) X(i int) float32 {
	return a.Component(i, 0)
}

// NamedAttribute pairs an attribute with the name it is bound under.
type NamedAttribute struct {
	Name      string
	Attribute Attribute
}

// Geometry is an ordered set of named attributes plus an optional index list.
// InstanceCount is the number of instances drawn when the geometry carries instance attributes.
type Geometry struct {
	attributes    []NamedAttribute
	Index         *BufferAttribute
	InstanceCount int
}

// NewGeometry returns an empty geometry.
func NewGeometry() *Geometry {
	return &Geometry{}
}

// SetAttribute binds attr under name. Rebinding an existing name keeps its position.
func (g *Geometry) SetAttribute(name string, attr Attribute) {
	for i := range g.attributes {
		if g.attributes[i].Name == name {
			g.attributes[i].Attribute = attr
			return
		}
	}
	g.attributes = append(g.attributes, NamedAttribute{Name: name, Attribute: attr})
}

// Attribute returns the attribute bound under name.
func (g *Geometry) Attribute(name string) (Attribute, bool) {
	for _, na := range g.attributes {
		if na.Name == name {
			return na.Attribute, true
		}
	}
	return nil, false
}

// DeleteAttribute removes the binding for name, if present.
func (g *Geometry) DeleteAttribute(name string) {
	for i, na := range g.attributes {
		if na.Name == name {
			g.attributes = append(g.attributes[:i], g.attributes[i+1:]...)
			return
		}
	}
}

// Attributes returns every binding in declaration order.
func (g *Geometry) Attributes() []NamedAttribute {
	return append([]NamedAttribute(nil), g.attributes...)
}
