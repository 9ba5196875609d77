package efi

import (
	"fmt"

	"github.com/joshuapare/efimem/internal/buf"
)

// EFI_MEMORY_DESCRIPTOR layout (little-endian):
//
//	0x00  u32  Type
//	0x04  u32  padding
//	0x08  u64  PhysicalStart
//	0x10  u64  VirtualStart
//	0x18  u64  NumberOfPages
//	0x20  u64  Attribute
//
// Firmware may report a larger DescriptorSize; the extra bytes follow the
// fixed fields and are vendor-defined.
const (
	descTypeOffset    = 0x00
	descPhysOffset    = 0x08
	descVirtOffset    = 0x10
	descPagesOffset   = 0x18
	descAttrOffset    = 0x20
	DescriptorSize    = 0x28
	DescriptorVersion = 1
)

// Descriptor describes one contiguous run of physical pages.
type Descriptor struct {
	Type          MemoryType
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     Attribute
}

// Size returns the byte length of the region.
func (d Descriptor) Size() uint64 {
	return PagesToSize(d.NumberOfPages)
}

// End returns the first address past the region.
func (d Descriptor) End() uint64 {
	return d.PhysicalStart + d.Size()
}

// Last returns the address of the last byte of the region. It assumes the
// descriptor has at least one page.
func (d Descriptor) Last() uint64 {
	return d.PhysicalStart + d.Size() - 1
}

// Contains reports whether [area, area+size) lies within the region.
// size must not be zero.
func (d Descriptor) Contains(area, size uint64) bool {
	return area >= d.PhysicalStart && area+(size-1) <= d.Last()
}

// IsRuntime reports whether the descriptor is flagged for runtime mapping.
func (d Descriptor) IsRuntime() bool {
	return d.Attribute.Has(AttrRuntime)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s [0x%X-0x%X] %d pages %s",
		d.Type, d.PhysicalStart, d.Last(), d.NumberOfPages, d.Attribute)
}

// DecodeDescriptor reads the fixed fields of a descriptor from b.
func DecodeDescriptor(b []byte) (Descriptor, error) {
	if len(b) < DescriptorSize {
		return Descriptor{}, fmt.Errorf("descriptor: %d bytes, need %d: %w", len(b), DescriptorSize, ErrInvalidArgument)
	}
	return Descriptor{
		Type:          MemoryType(buf.U32LE(b[descTypeOffset:])),
		PhysicalStart: buf.U64LE(b[descPhysOffset:]),
		VirtualStart:  buf.U64LE(b[descVirtOffset:]),
		NumberOfPages: buf.U64LE(b[descPagesOffset:]),
		Attribute:     Attribute(buf.U64LE(b[descAttrOffset:])),
	}, nil
}

// EncodeDescriptor writes the fixed fields of d into b. Bytes past
// DescriptorSize are left untouched.
func EncodeDescriptor(b []byte, d Descriptor) error {
	if len(b) < DescriptorSize {
		return fmt.Errorf("descriptor: %d bytes, need %d: %w", len(b), DescriptorSize, ErrInvalidArgument)
	}
	buf.PutU32LE(b[descTypeOffset:], uint32(d.Type))
	buf.PutU32LE(b[descTypeOffset+4:], 0)
	buf.PutU64LE(b[descPhysOffset:], d.PhysicalStart)
	buf.PutU64LE(b[descVirtOffset:], d.VirtualStart)
	buf.PutU64LE(b[descPagesOffset:], d.NumberOfPages)
	buf.PutU64LE(b[descAttrOffset:], uint64(d.Attribute))
	return nil
}
