package buffer_layout

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-stream/common"
)

// Supported component sizes for typed views.
const (
	ByteComponent  = 1
	FloatComponent = 4
)

// TypedArray is a typed window onto a shared ArrayBuffer. It does not own the buffer:
// several views, possibly with different element sizes, may alias the same memory.
type TypedArray struct {
	Buffer      *common.ArrayBuffer
	ByteOffset  int
	Length      int
	ElementSize int
}

// NewTypedArray creates a view of length elements of elementSize bytes, starting at byteOffset.
//
// Parameters:
//   - buf: the backing buffer
//   - elementSize: ByteComponent or FloatComponent
//   - byteOffset: start of the view in bytes; must be a multiple of elementSize
//   - length: the number of elements in the view
//
// Returns:
//   - TypedArray: the view
//   - error: if the element size is unsupported or the view does not fit in buf
func NewTypedArray(buf *common.ArrayBuffer, elementSize, byteOffset, length int) (TypedArray, error) {
	if buf == nil {
		return TypedArray{}, fmt.Errorf("typed array: nil backing buffer")
	}
	if elementSize != ByteComponent && elementSize != FloatComponent {
		return TypedArray{}, fmt.Errorf("typed array: unsupported element size %d", elementSize)
	}
	if byteOffset < 0 || byteOffset%elementSize != 0 {
		return TypedArray{}, fmt.Errorf("typed array: byte offset %d is not aligned to %d", byteOffset, elementSize)
	}
	if length < 0 || byteOffset+length*elementSize > buf.ByteLength() {
		return TypedArray{}, fmt.Errorf("typed array: %d elements at offset %d exceed buffer of %d bytes", length, byteOffset, buf.ByteLength())
	}
	return TypedArray{Buffer: buf, ByteOffset: byteOffset, Length: length, ElementSize: elementSize}, nil
}

// viewOver returns a view of the whole of buf. buf's length must be a multiple of elementSize.
func viewOver(buf *common.ArrayBuffer, elementSize int) TypedArray {
	return TypedArray{Buffer: buf, Length: buf.ByteLength() / elementSize, ElementSize: elementSize}
}

// Float32Array wraps values in a fresh buffer and returns a float view over it.
func Float32Array(values ...float32) TypedArray {
	data := make([]byte, len(values)*FloatComponent)
	copy(common.BytesToSlice[float32](data), values)
	return viewOver(common.WrapArrayBuffer(data), FloatComponent)
}

// Uint8Array wraps values in a fresh buffer and returns a byte view over it.
func Uint8Array(values ...uint8) TypedArray {
	data := make([]byte, len(values))
	copy(data, values)
	return viewOver(common.WrapArrayBuffer(data), ByteComponent)
}

// ByteLength returns the size of the view in bytes.
func (a TypedArray) ByteLength() int {
	return a.Length * a.ElementSize
}

// Bytes returns the bytes covered by the view. The slice aliases the backing buffer.
// It is nil if the buffer has been detached.
func (a TypedArray) Bytes() []byte {
	if a.Buffer == nil {
		return nil
	}
	data := a.Buffer.Bytes()
	end := a.ByteOffset + a.ByteLength()
	if data == nil || end > len(data) {
		return nil
	}
	return data[a.ByteOffset:end]
}

// Float32s returns the view as float32 values aliasing the backing buffer.
// It returns nil for byte views.
func (a TypedArray) Float32s() []float32 {
	if a.ElementSize != FloatComponent {
		return nil
	}
	return common.BytesToSlice[float32](a.Bytes())
}

// At returns element i widened to float32.
func (a TypedArray) At(i int) float32 {
	b := a.Bytes()
	switch a.ElementSize {
	case FloatComponent:
		return common.BytesToSlice[float32](b[i*4 : i*4+4])[0]
	default:
		return float32(b[i])
	}
}

// SameBuffer reports whether a and b are views over the same backing buffer.
func (a TypedArray) SameBuffer(b TypedArray) bool {
	return a.Buffer != nil && a.Buffer == b.Buffer
}
