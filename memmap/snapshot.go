package memmap

import (
	"fmt"
	"iter"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/internal/buf"
)

// Snapshot is one memory map as reported by the boot environment.
type Snapshot struct {
	// Buf holds the descriptors. Only Buf[:Size] is meaningful.
	Buf []byte

	// Size is the number of bytes of Buf occupied by descriptors.
	Size int

	// DescriptorSize is the stride between descriptors.
	DescriptorSize int

	// DescriptorVersion is the descriptor format version.
	DescriptorVersion uint32

	// MapKey identifies the map state the snapshot was taken at.
	MapKey uint64

	// Base and Pages describe the page allocation holding Buf when the
	// snapshot was page-allocated. Both are zero for heap buffers.
	Base  uint64
	Pages uint64
}

// New builds a heap-backed snapshot of descs using the given stride.
// A stride of 0 selects efi.DescriptorSize.
func New(descs []efi.Descriptor, stride int) (*Snapshot, error) {
	if stride == 0 {
		stride = efi.DescriptorSize
	}
	if err := buf.CheckRecords(len(descs)*stride, len(descs), stride, efi.DescriptorSize); err != nil {
		return nil, fmt.Errorf("memmap: %v: %w", err, efi.ErrInvalidArgument)
	}

	s := &Snapshot{
		Buf:               make([]byte, len(descs)*stride),
		Size:              len(descs) * stride,
		DescriptorSize:    stride,
		DescriptorVersion: efi.DescriptorVersion,
	}
	for i, d := range descs {
		s.Set(i, d)
	}
	return s, nil
}

// Len returns the number of descriptors. A snapshot with inconsistent
// geometry reports zero descriptors; Validate explains why.
func (s *Snapshot) Len() int {
	if s == nil || s.DescriptorSize < efi.DescriptorSize || s.Size < 0 || s.Size > len(s.Buf) {
		return 0
	}
	return s.Size / s.DescriptorSize
}

// record returns the raw bytes of descriptor i including vendor fields.
func (s *Snapshot) record(i int) []byte {
	off := i * s.DescriptorSize
	return s.Buf[off : off+s.DescriptorSize]
}

// At decodes descriptor i. It panics if i is out of range, like a slice index.
func (s *Snapshot) At(i int) efi.Descriptor {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("memmap: descriptor index %d out of range [0,%d)", i, s.Len()))
	}
	d, _ := efi.DecodeDescriptor(s.record(i))
	return d
}

// Set overwrites the fixed fields of descriptor i.
func (s *Snapshot) Set(i int, d efi.Descriptor) {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("memmap: descriptor index %d out of range [0,%d)", i, s.Len()))
	}
	_ = efi.EncodeDescriptor(s.record(i), d)
}

// All iterates descriptors in ascending order.
func (s *Snapshot) All() iter.Seq2[int, efi.Descriptor] {
	return func(yield func(int, efi.Descriptor) bool) {
		for i := range s.Len() {
			if !yield(i, s.At(i)) {
				return
			}
		}
	}
}

// Backward iterates descriptors from the last to the first.
func (s *Snapshot) Backward() iter.Seq2[int, efi.Descriptor] {
	return func(yield func(int, efi.Descriptor) bool) {
		for i := s.Len() - 1; i >= 0; i-- {
			if !yield(i, s.At(i)) {
				return
			}
		}
	}
}

// Descriptors decodes every descriptor into a new slice.
func (s *Snapshot) Descriptors() []efi.Descriptor {
	out := make([]efi.Descriptor, 0, s.Len())
	for _, d := range s.All() {
		out = append(out, d)
	}
	return out
}

// IndexOf returns the index of the descriptor containing addr, or -1.
func (s *Snapshot) IndexOf(addr uint64) int {
	for i, d := range s.All() {
		if addr >= d.PhysicalStart && addr < d.End() {
			return i
		}
		if d.PhysicalStart > addr {
			break
		}
	}
	return -1
}

// Validate checks the snapshot geometry and the descriptor invariants:
// non-zero page counts, page-aligned starts, ascending order and no overlap.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("memmap: nil snapshot: %w", efi.ErrInvalidArgument)
	}
	if s.DescriptorSize < efi.DescriptorSize {
		return fmt.Errorf("memmap: descriptor size %d below %d: %w",
			s.DescriptorSize, efi.DescriptorSize, efi.ErrInvalidArgument)
	}
	if s.Size < 0 || s.Size > len(s.Buf) || s.Size%s.DescriptorSize != 0 {
		return fmt.Errorf("memmap: size %d invalid for buffer %d and stride %d: %w",
			s.Size, len(s.Buf), s.DescriptorSize, efi.ErrInvalidArgument)
	}

	var prevEnd uint64
	for i, d := range s.All() {
		if d.NumberOfPages == 0 {
			return fmt.Errorf("memmap: descriptor %d has no pages: %w", i, efi.ErrInvalidArgument)
		}
		if !efi.IsAligned(d.PhysicalStart) {
			return fmt.Errorf("memmap: descriptor %d start 0x%X not page-aligned: %w",
				i, d.PhysicalStart, efi.ErrInvalidArgument)
		}
		size, ok := buf.MulU64(d.NumberOfPages, efi.PageSize)
		if !ok {
			return fmt.Errorf("memmap: descriptor %d page count overflows: %w", i, efi.ErrInvalidArgument)
		}
		end, ok := buf.AddU64(d.PhysicalStart, size)
		if !ok {
			return fmt.Errorf("memmap: descriptor %d wraps the address space: %w", i, efi.ErrInvalidArgument)
		}
		if i > 0 && d.PhysicalStart < prevEnd {
			return fmt.Errorf("memmap: descriptor %d at 0x%X overlaps or precedes 0x%X: %w",
				i, d.PhysicalStart, prevEnd, efi.ErrInvalidArgument)
		}
		prevEnd = end
	}
	return nil
}
