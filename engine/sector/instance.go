package sector

import (
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/buffer_layout"
)

// InstanceSize is the size of a marshaled Instance in bytes.
const InstanceSize = 24

// Instance is the per-instance record of the standard sector layout.
// Size: 24 bytes, every float 4-byte aligned.
type Instance struct {
	TreeIndex float32    // offset  0: tree index of the node the instance belongs to (4 bytes)
	Color     [4]uint8   // offset  4: RGBA color, normalized on the GPU (4 bytes)
	Center    [3]float32 // offset  8: instance center in model space (12 bytes)
	Size      float32    // offset 20: edge length of the instance's bounding cube (4 bytes)
}

// StandardAttributes describes the Instance layout.
var StandardAttributes = []Attribute{
	{Name: buffer_layout.TreeIndexAttributeName, ComponentSize: 4, ItemSize: 1, Offset: 0},
	{Name: "a_color", ComponentSize: 1, ItemSize: 4, Normalized: true, Offset: 4},
	{Name: "a_center", ComponentSize: 4, ItemSize: 3, Offset: 8},
	{Name: "a_size", ComponentSize: 4, ItemSize: 1, Offset: 20},
}

// Marshal serializes the instance into its 24-byte interleaved form.
//
// Returns:
//   - []byte: 24-byte buffer in the standard layout
func (i *Instance) Marshal() []byte {
	buf := make([]byte, InstanceSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(i.TreeIndex))
	copy(buf[4:8], i.Color[:])
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(i.Center[0]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(i.Center[1]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(i.Center[2]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(i.Size))
	return buf
}

// Bounds returns the bounding cube of the instance.
func (i *Instance) Bounds() common.Box3 {
	h := i.Size / 2
	return common.Box3{
		Min: common.Vec3{i.Center[0] - h, i.Center[1] - h, i.Center[2] - h},
		Max: common.Vec3{i.Center[0] + h, i.Center[1] + h, i.Center[2] + h},
	}
}

// NewSector packs instances into a sector using the standard layout. The sector bounds
// enclose every instance.
//
// Parameters:
//   - id: the sector id
//   - instances: the instances to pack
//
// Returns:
//   - *Sector: the packed sector
func NewSector(id uint32, instances []Instance) *Sector {
	s := &Sector{
		ID:            id,
		InstanceCount: uint32(len(instances)),
		Stride:        InstanceSize,
		Attributes:    append([]Attribute(nil), StandardAttributes...),
		Payload:       make([]byte, 0, len(instances)*InstanceSize),
	}
	for n := range instances {
		b := instances[n].Bounds()
		if n == 0 {
			s.Bounds = b
		} else {
			s.Bounds = s.Bounds.Union(b)
		}
		s.Payload = append(s.Payload, instances[n].Marshal()...)
	}
	return s
}

// Generate builds a synthetic sector of n instances clustered inside a 10-unit cell
// selected by id, with tree indices starting at firstTreeIndex.
//
// Parameters:
//   - id: the sector id; also selects the cell
//   - n: the number of instances
//   - firstTreeIndex: the tree index of the first instance
//   - rng: the random source
//
// Returns:
//   - *Sector: the generated sector
func Generate(id uint32, n, firstTreeIndex int, rng *rand.Rand) *Sector {
	origin := common.Vec3{float32(id%8) * 10, 0, float32(id/8) * 10}
	instances := make([]Instance, n)
	for i := range instances {
		instances[i] = Instance{
			TreeIndex: float32(firstTreeIndex + i),
			Color:     [4]uint8{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255},
			Center: [3]float32{
				origin[0] + 1 + rng.Float32()*8,
				origin[1] + 1 + rng.Float32()*8,
				origin[2] + 1 + rng.Float32()*8,
			},
			Size: 0.25 + rng.Float32()*1.5,
		}
	}
	return NewSector(id, instances)
}
