package common

import (
	"errors"
	"sync"
)

// ErrDetached is returned when an operation needs the contents of an ArrayBuffer
// whose ownership has already been transferred elsewhere.
var ErrDetached = errors.New("array buffer is detached")

// ArrayBuffer is a fixed-length block of raw bytes that can be shared by many typed
// views and whose ownership can be moved (transferred) without copying.
//
// After Transfer the original handle is detached: ByteLength reports 0 and Bytes
// returns nil, while the returned handle owns the same underlying memory.
type ArrayBuffer struct {
	mu       sync.Mutex
	data     []byte
	detached bool
}

// NewArrayBuffer allocates a zero-filled buffer of size bytes.
func NewArrayBuffer(size int) *ArrayBuffer {
	return &ArrayBuffer{data: make([]byte, size)}
}

// WrapArrayBuffer takes ownership of data without copying it.
// The caller must not keep using data through other references.
func WrapArrayBuffer(data []byte) *ArrayBuffer {
	if data == nil {
		data = []byte{}
	}
	return &ArrayBuffer{data: data}
}

// ByteLength returns the size of the buffer in bytes, or 0 once detached.
func (b *ArrayBuffer) ByteLength() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Bytes returns the live backing memory. Views created from it alias the buffer.
// A detached buffer returns nil.
func (b *ArrayBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Detached reports whether ownership of the buffer has been transferred away.
func (b *ArrayBuffer) Detached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detached
}

// Clone returns a new buffer holding a copy of the current contents.
//
// Returns:
//   - *ArrayBuffer: the copy
//   - error: ErrDetached if the buffer has been transferred
func (b *ArrayBuffer) Clone() (*ArrayBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detached {
		return nil, ErrDetached
	}
	cp := make([]byte, len(b.data))
	copy(cp, b.data)
	return &ArrayBuffer{data: cp}, nil
}

// Transfer moves the backing memory into a new handle and detaches b.
//
// Returns:
//   - *ArrayBuffer: the new owner of the memory
//   - error: ErrDetached if b was already transferred
func (b *ArrayBuffer) Transfer() (*ArrayBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detached {
		return nil, ErrDetached
	}
	moved := &ArrayBuffer{data: b.data}
	b.data = nil
	b.detached = true
	return moved, nil
}
