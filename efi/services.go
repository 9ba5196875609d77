package efi

// MapInfo describes the outcome of a GetMemoryMap call.
type MapInfo struct {
	// Size is the number of map bytes written, or required when the call
	// failed with ErrBufferTooSmall.
	Size int
	// Key identifies the map state. Any change to the map changes the key.
	Key uint64
	// DescriptorSize is the stride between descriptors in bytes.
	DescriptorSize int
	// DescriptorVersion is the descriptor format version.
	DescriptorVersion uint32
}

// MapFetcher is the memory-map query capability.
//
// GetMemoryMap fills buf with the current map. When buf is too small it
// returns ErrBufferTooSmall together with a MapInfo whose Size and
// DescriptorSize tell the caller how much to allocate.
type MapFetcher interface {
	GetMemoryMap(buf []byte) (MapInfo, error)
}

// MapFetcherFunc adapts a function to MapFetcher.
type MapFetcherFunc func(buf []byte) (MapInfo, error)

// GetMemoryMap calls f(buf).
func (f MapFetcherFunc) GetMemoryMap(buf []byte) (MapInfo, error) {
	return f(buf)
}

// BootServices is the subset of EFI_BOOT_SERVICES the library needs.
//
// AllocatePages returns the base of the allocated region. With
// AllocateAddress it must fail with ErrNotFound (or ErrMapChanged) if the
// requested range is no longer free.
type BootServices interface {
	MapFetcher
	AllocatePages(typ AllocateType, memType MemoryType, pages uint64, addr uint64) (uint64, error)
	FreePages(addr uint64, pages uint64) error
}
