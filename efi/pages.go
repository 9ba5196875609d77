package efi

const (
	// PageShift is log2(PageSize).
	PageShift = 12
	// PageSize is the UEFI page size; every descriptor is measured in it.
	PageSize = 1 << PageShift
	// PageMask selects the offset within a page.
	PageMask = PageSize - 1

	// Base4GB is the first address above 32-bit space.
	Base4GB = 0x100000000
)

// SizeToPages returns the number of pages needed to hold size bytes.
//
// Example:
//
//	SizeToPages(1)    = 1
//	SizeToPages(4096) = 1
//	SizeToPages(4097) = 2
func SizeToPages(size uint64) uint64 {
	return (size >> PageShift) + boolToU64(size&PageMask != 0)
}

// PagesToSize returns the byte size of pages pages.
func PagesToSize(pages uint64) uint64 {
	return pages << PageShift
}

// AlignDown rounds addr down to a page boundary.
func AlignDown(addr uint64) uint64 {
	return addr &^ PageMask
}

// AlignUp rounds addr up to a page boundary.
func AlignUp(addr uint64) uint64 {
	return (addr + PageMask) &^ PageMask
}

// IsAligned reports whether addr is page-aligned.
func IsAligned(addr uint64) bool {
	return addr&PageMask == 0
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
