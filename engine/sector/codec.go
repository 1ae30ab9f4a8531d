package sector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-stream/common"
)

// Magic opens every encoded sector.
const Magic = "SCT1"

// headerSize is magic(4) + id(4) + bounds(24) + instance count(4) + stride(4) + attribute count(2).
const headerSize = 42

var (
	// ErrBadMagic is returned when the data does not start with Magic.
	ErrBadMagic = errors.New("sector: bad magic")
	// ErrTruncated is returned when the data ends before the declared content.
	ErrTruncated = errors.New("sector: truncated data")
)

// Attribute describes one interleaved per-instance attribute. Offset is in bytes from the
// start of an instance.
type Attribute struct {
	Name          string
	ComponentSize uint8
	ItemSize      uint8
	Normalized    bool
	Offset        uint32
}

// Sector is the decoded form of one sector file: its bounds plus InstanceCount instances
// of Stride bytes each, laid out according to Attributes.
type Sector struct {
	ID            uint32
	Bounds        common.Box3
	InstanceCount uint32
	Stride        uint32
	Attributes    []Attribute
	Payload       []byte
}

// Validate checks that the attributes fit the stride and the payload matches the
// instance count. A zero stride is only valid for a sector with neither instances nor
// attributes; an empty sector that declares attributes keeps their stride.
func (s *Sector) Validate() error {
	if s.Stride == 0 && (s.InstanceCount > 0 || len(s.Attributes) > 0) {
		return fmt.Errorf("sector %d: zero stride", s.ID)
	}
	for _, a := range s.Attributes {
		if a.Name == "" {
			return fmt.Errorf("sector %d: unnamed attribute", s.ID)
		}
		if a.ComponentSize != 1 && a.ComponentSize != 4 {
			return fmt.Errorf("sector %d: attribute %q has component size %d", s.ID, a.Name, a.ComponentSize)
		}
		if a.ItemSize < 1 || a.ItemSize > 4 {
			return fmt.Errorf("sector %d: attribute %q has item size %d", s.ID, a.Name, a.ItemSize)
		}
		if s.Stride%uint32(a.ComponentSize) != 0 {
			return fmt.Errorf("sector %d: stride %d is not a multiple of %d", s.ID, s.Stride, a.ComponentSize)
		}
		if a.Offset+uint32(a.ComponentSize)*uint32(a.ItemSize) > s.Stride {
			return fmt.Errorf("sector %d: attribute %q overflows stride %d", s.ID, a.Name, s.Stride)
		}
	}
	if want := uint64(s.Stride) * uint64(s.InstanceCount); uint64(len(s.Payload)) != want {
		return fmt.Errorf("sector %d: payload is %d bytes, want %d", s.ID, len(s.Payload), want)
	}
	return nil
}

// Encode serializes s in little-endian byte order.
//
// Parameters:
//   - s: the sector to encode
//
// Returns:
//   - []byte: the encoded sector
//   - error: if s fails Validate
func Encode(s *Sector) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	size := headerSize + len(s.Payload)
	for _, a := range s.Attributes {
		size += 2 + len(a.Name) + 3 + 4
	}

	buf := make([]byte, size)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], s.ID)
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(s.Bounds.Min[0]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(s.Bounds.Min[1]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(s.Bounds.Min[2]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(s.Bounds.Max[0]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(s.Bounds.Max[1]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(s.Bounds.Max[2]))
	binary.LittleEndian.PutUint32(buf[32:36], s.InstanceCount)
	binary.LittleEndian.PutUint32(buf[36:40], s.Stride)
	binary.LittleEndian.PutUint16(buf[40:42], uint16(len(s.Attributes)))

	off := headerSize
	for _, a := range s.Attributes {
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(a.Name)))
		off += 2
		off += copy(buf[off:], a.Name)
		buf[off] = a.ComponentSize
		buf[off+1] = a.ItemSize
		if a.Normalized {
			buf[off+2] = 1
		}
		binary.LittleEndian.PutUint32(buf[off+3:off+7], a.Offset)
		off += 7
	}
	copy(buf[off:], s.Payload)
	return buf, nil
}

// Decode parses an encoded sector. The returned Payload aliases data.
//
// Parameters:
//   - data: the encoded sector
//
// Returns:
//   - *Sector: the decoded sector
//   - error: ErrBadMagic, ErrTruncated, or a validation error
func Decode(data []byte) (*Sector, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	if string(data[0:4]) != Magic {
		return nil, ErrBadMagic
	}

	f32 := func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
	s := &Sector{
		ID: binary.LittleEndian.Uint32(data[4:8]),
		Bounds: common.Box3{
			Min: common.Vec3{f32(data[8:12]), f32(data[12:16]), f32(data[16:20])},
			Max: common.Vec3{f32(data[20:24]), f32(data[24:28]), f32(data[28:32])},
		},
		InstanceCount: binary.LittleEndian.Uint32(data[32:36]),
		Stride:        binary.LittleEndian.Uint32(data[36:40]),
	}
	count := int(binary.LittleEndian.Uint16(data[40:42]))

	off := headerSize
	s.Attributes = make([]Attribute, 0, count)
	for i := 0; i < count; i++ {
		if off+2 > len(data) {
			return nil, ErrTruncated
		}
		n := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2
		if off+n+7 > len(data) {
			return nil, ErrTruncated
		}
		a := Attribute{Name: string(data[off : off+n])}
		off += n
		a.ComponentSize = data[off]
		a.ItemSize = data[off+1]
		a.Normalized = data[off+2] != 0
		a.Offset = binary.LittleEndian.Uint32(data[off+3 : off+7])
		off += 7
		s.Attributes = append(s.Attributes, a)
	}

	want := uint64(s.Stride) * uint64(s.InstanceCount)
	if uint64(len(data)-off) < want {
		return nil, ErrTruncated
	}
	s.Payload = data[off : off+int(want)]
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
