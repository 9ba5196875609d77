// Package phys provides access to physical memory.
//
// Page tables, page-allocated memory-map buffers, the page-table pool and the
// heap arena all live at physical addresses. Code that touches them goes
// through the Memory capability instead of dereferencing raw addresses, which
// keeps every access bounds-checked and lets a host process stand in for
// real RAM.
package phys

import (
	"errors"
	"fmt"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/internal/buf"
)

// ErrOutOfRange indicates an access outside the backed physical range.
var ErrOutOfRange = fmt.Errorf("phys: address out of range: %w", efi.ErrInvalidArgument)

// ErrClosed indicates an access after Close.
var ErrClosed = errors.New("phys: memory closed")

// Memory is the physical memory capability.
//
// Slice returns a writable view of [addr, addr+size). The view aliases the
// underlying storage; writes through it are writes to memory.
type Memory interface {
	Slice(addr, size uint64) ([]byte, error)
}

// RAM is a contiguous physical range [base, base+size) backed by host memory.
//
// NOT thread-safe.
type RAM struct {
	base    uint64
	data    []byte
	release func() error
	sync    func([]byte) error
}

// Base returns the first physical address backed by r.
func (r *RAM) Base() uint64 { return r.base }

// Size returns the number of bytes backed by r.
func (r *RAM) Size() uint64 { return uint64(len(r.data)) }

// End returns the first physical address past r.
func (r *RAM) End() uint64 { return r.base + uint64(len(r.data)) }

// Slice implements Memory.
func (r *RAM) Slice(addr, size uint64) ([]byte, error) {
	if r.data == nil {
		return nil, ErrClosed
	}
	lo, hi, err := buf.Window(r.base, uint64(len(r.data)), addr, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	return r.data[lo:hi:hi], nil
}

// Sync writes dirty pages of a file-backed RAM image back to its file. It is
// a no-op for anonymous RAM.
func (r *RAM) Sync() error {
	if r.data == nil {
		return ErrClosed
	}
	if r.sync == nil {
		return nil
	}
	return r.sync(r.data)
}

// Close releases the backing storage. Closing twice is a no-op.
func (r *RAM) Close() error {
	if r.data == nil {
		return nil
	}
	var err error
	if r.release != nil {
		err = r.release()
	}
	r.data = nil
	return err
}

func checkGeometry(base, size uint64) error {
	if size == 0 || !efi.IsAligned(base) || !efi.IsAligned(size) {
		return fmt.Errorf("phys: base 0x%X size 0x%X must be non-empty and page-aligned: %w",
			base, size, efi.ErrInvalidArgument)
	}
	if _, ok := buf.AddU64(base, size); !ok {
		return fmt.Errorf("phys: base 0x%X + size 0x%X wraps: %w", base, size, efi.ErrInvalidArgument)
	}
	if size > uint64(^uint(0)>>1) {
		return fmt.Errorf("phys: size 0x%X too large for host: %w", size, efi.ErrResourceExhausted)
	}
	return nil
}

var _ Memory = (*RAM)(nil)
