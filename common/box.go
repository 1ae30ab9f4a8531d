package common

// Box3 is an axis-aligned bounding box. A box with Min greater than Max on any
// axis is empty.
type Box3 struct {
	Min Vec3
	Max Vec3
}

// NewBox3 builds a box from two corners, ordering the components so Min <= Max.
//
// Parameters:
//   - a, b: opposite corners of the box
//
// Returns:
//   - Box3: the box spanning a and b
func NewBox3(a, b Vec3) Box3 {
	var box Box3
	for i := 0; i < 3; i++ {
		box.Min[i] = min(a[i], b[i])
		box.Max[i] = max(a[i], b[i])
	}
	return box
}

// IsEmpty reports whether the box has a negative extent on any axis.
func (b Box3) IsEmpty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] || b.Max[2] < b.Min[2]
}

// Intersects reports whether b and o overlap. Touching faces count as intersecting.
//
// Parameters:
//   - o: the other box
//
// Returns:
//   - bool: true if the boxes share at least one point
func (b Box3) Intersects(o Box3) bool {
	return !(o.Max[0] < b.Min[0] || o.Min[0] > b.Max[0] ||
		o.Max[1] < b.Min[1] || o.Min[1] > b.Max[1] ||
		o.Max[2] < b.Min[2] || o.Min[2] > b.Max[2])
}

// Union returns the smallest box containing both b and o.
func (b Box3) Union(o Box3) Box3 {
	return Box3{
		Min: Vec3{min(b.Min[0], o.Min[0]), min(b.Min[1], o.Min[1]), min(b.Min[2], o.Min[2])},
		Max: Vec3{max(b.Max[0], o.Max[0]), max(b.Max[1], o.Max[1]), max(b.Max[2], o.Max[2])},
	}
}

// Intersection returns the overlapping region of b and o. The result is empty
// (see IsEmpty) when the boxes do not overlap.
func (b Box3) Intersection(o Box3) Box3 {
	return Box3{
		Min: Vec3{max(b.Min[0], o.Min[0]), max(b.Min[1], o.Min[1]), max(b.Min[2], o.Min[2])},
		Max: Vec3{min(b.Max[0], o.Max[0]), min(b.Max[1], o.Max[1]), min(b.Max[2], o.Max[2])},
	}
}

// Volume returns the volume of the box, or 0 for an empty box.
func (b Box3) Volume() float64 {
	if b.IsEmpty() {
		return 0
	}
	return float64(b.Max[0]-b.Min[0]) * float64(b.Max[1]-b.Min[1]) * float64(b.Max[2]-b.Min[2])
}

// IoU returns the Intersection-over-Union of b and o: the volume of their
// intersection divided by the volume of their union (|A| + |B| - |A∩B|).
//
// Parameters:
//   - o: the other box
//
// Returns:
//   - float64: a value in [0, 1]; 0 when the union has no volume
func (b Box3) IoU(o Box3) float64 {
	inter := b.Intersection(o).Volume()
	union := b.Volume() + o.Volume() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Corners returns the eight corner points of the box.
func (b Box3) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min[0], b.Min[1], b.Min[2]},
		{b.Max[0], b.Min[1], b.Min[2]},
		{b.Min[0], b.Max[1], b.Min[2]},
		{b.Max[0], b.Max[1], b.Min[2]},
		{b.Min[0], b.Min[1], b.Max[2]},
		{b.Max[0], b.Min[1], b.Max[2]},
		{b.Min[0], b.Max[1], b.Max[2]},
		{b.Max[0], b.Max[1], b.Max[2]},
	}
}

// Transform returns the axis-aligned box enclosing b after applying m to its corners.
func (b Box3) Transform(m Mat4) Box3 {
	corners := b.Corners()
	first := m.TransformPoint(corners[0])
	out := Box3{Min: first, Max: first}
	for _, c := range corners[1:] {
		p := m.TransformPoint(c)
		out = out.Union(Box3{Min: p, Max: p})
	}
	return out
}
