package sector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileExt is the extension of sector files in a DirSource.
const FileExt = ".sct"

// ErrSectorNotFound is returned by a Source that holds no sector with the requested id.
var ErrSectorNotFound = errors.New("sector not found")

// Source retrieves encoded sectors.
type Source interface {
	// Fetch returns the encoded bytes of sector id. The caller owns the returned slice.
	Fetch(ctx context.Context, id uint32) ([]byte, error)
}

// DirSource reads sectors from <Dir>/<id>.sct.
type DirSource struct {
	Dir string
}

var _ Source = DirSource{}

// Path returns the file path of sector id.
func (s DirSource) Path(id uint32) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%d%s", id, FileExt))
}

func (s DirSource) Fetch(ctx context.Context, id uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("sector %d: %w", id, ErrSectorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sector %d: %w", id, err)
	}
	return data, nil
}

// WriteDir encodes every sector into dir, creating it if needed.
//
// Parameters:
//   - dir: the target directory
//   - sectors: the sectors to write
//
// Returns:
//   - error: the first encode or write failure
func WriteDir(dir string, sectors ...*Sector) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	src := DirSource{Dir: dir}
	for _, s := range sectors {
		data, err := Encode(s)
		if err != nil {
			return fmt.Errorf("sector %d: %w", s.ID, err)
		}
		if err := os.WriteFile(src.Path(s.ID), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// MemorySource keeps encoded sectors in memory.
type MemorySource struct {
	mu   sync.RWMutex
	data map[uint32][]byte
}

var _ Source = &MemorySource{}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{data: make(map[uint32][]byte)}
}

// Put encodes s and stores it under its id.
func (m *MemorySource) Put(s *Sector) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.PutRaw(s.ID, data)
	return nil
}

// PutRaw stores data under id as-is.
func (m *MemorySource) PutRaw(id uint32, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
}

func (m *MemorySource) Fetch(ctx context.Context, id uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.data[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sector %d: %w", id, ErrSectorNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}
