package sector

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/buffer_layout"
	"github.com/Carmen-Shannon/oxy-stream/engine/worker_rpc"
)

// Parsed is a decoded sector ready to be bound as instanced geometry. Its payload lives in
// its own ArrayBuffer so it can be moved between the worker and the caller without a copy.
type Parsed struct {
	ID            uint32
	Bounds        common.Box3
	InstanceCount int
	Descriptors   []buffer_layout.InterleavedAttributeDescriptor
	Payload       *common.ArrayBuffer
}

var _ worker_rpc.Cloneable = &Parsed{}

// Parse decodes data and copies its instance payload into a fresh ArrayBuffer.
//
// Parameters:
//   - data: an encoded sector
//
// Returns:
//   - *Parsed: the parsed sector
//   - error: a decode error
func Parse(data []byte) (*Parsed, error) {
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, len(s.Payload))
	copy(payload, s.Payload)

	p := &Parsed{
		ID:            s.ID,
		Bounds:        s.Bounds,
		InstanceCount: int(s.InstanceCount),
		Payload:       common.WrapArrayBuffer(payload),
	}
	for _, a := range s.Attributes {
		p.Descriptors = append(p.Descriptors, buffer_layout.InterleavedAttributeDescriptor{
			Name:              a.Name,
			ComponentByteSize: int(a.ComponentSize),
			Stride:            int(s.Stride) / int(a.ComponentSize),
			ItemSize:          int(a.ItemSize),
			ByteOffset:        int(a.Offset),
			Normalized:        a.Normalized,
		})
	}
	return p, nil
}

// StructuredClone rebuilds p on the receiving side of a port. The payload follows the
// transfer list: moved when listed, copied otherwise.
func (p *Parsed) StructuredClone(c *worker_rpc.Cloner) (any, error) {
	if p == nil {
		return p, nil
	}
	payload, err := c.Clone(p.Payload)
	if err != nil {
		return nil, err
	}
	out := *p
	out.Descriptors = append([]buffer_layout.InterleavedAttributeDescriptor(nil), p.Descriptors...)
	out.Payload, _ = payload.(*common.ArrayBuffer)
	return &out, nil
}

// Geometry binds the payload as the instance attributes of a new geometry.
//
// Returns:
//   - *buffer_layout.Geometry: the instanced geometry
//   - error: *buffer_layout.InvalidLayoutError if the descriptors do not fit the payload
func (p *Parsed) Geometry() (*buffer_layout.Geometry, error) {
	g := buffer_layout.NewGeometry()
	g.InstanceCount = p.InstanceCount
	if err := buffer_layout.SetInstanceAttributeDescriptors(p.Descriptors, g, p.Payload); err != nil {
		return nil, fmt.Errorf("sector %d: %w", p.ID, err)
	}
	return g, nil
}

// InstanceBoxes returns the bounding cube of every instance of g, read from its a_center
// and a_size attributes. It returns nil when g lacks either attribute.
func InstanceBoxes(g *buffer_layout.Geometry) []common.Box3 {
	centerAttr, ok := g.Attribute("a_center")
	if !ok {
		return nil
	}
	sizeAttr, ok := g.Attribute("a_size")
	if !ok {
		return nil
	}
	center, ok1 := centerAttr.(*buffer_layout.InterleavedBufferAttribute)
	size, ok2 := sizeAttr.(*buffer_layout.InterleavedBufferAttribute)
	if !ok1 || !ok2 {
		return nil
	}

	out := make([]common.Box3, center.Count())
	for i := range out {
		inst := Instance{
			Center: [3]float32{center.Component(i, 0), center.Component(i, 1), center.Component(i, 2)},
			Size:   size.X(i),
		}
		out[i] = inst.Bounds()
	}
	return out
}
