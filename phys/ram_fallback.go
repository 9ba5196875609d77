//go:build !linux && !darwin && !freebsd

package phys

import (
	"os"
)

// NewRAM allocates size bytes of zeroed memory and presents them as the
// physical range starting at base. Both must be page-aligned.
func NewRAM(base, size uint64) (*RAM, error) {
	if err := checkGeometry(base, size); err != nil {
		return nil, err
	}
	return &RAM{base: base, data: make([]byte, size)}, nil
}

// MapImage loads a memory image file at physical address base. Without mmap
// the image is read into memory and Sync writes it back in full.
func MapImage(path string, base uint64) (*RAM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := checkGeometry(base, uint64(len(data))); err != nil {
		return nil, err
	}
	write := func(b []byte) error { return os.WriteFile(path, b, 0o644) }
	r := &RAM{base: base, data: data, sync: write}
	r.release = func() error { return write(r.data) }
	return r, nil
}
