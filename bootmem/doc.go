// Package bootmem acquires memory-map snapshots from the boot environment and
// allocates physical pages from the top of memory.
//
// # Map acquisition
//
// GetMemoryMap follows a size-then-fill protocol: a first call reports the
// size, a second call fills a buffer. Allocating that buffer can itself add
// a descriptor to the map, so buffers carry headroom and the fill is retried
// a bounded number of times.
//
//	snap, err := bootmem.CurrentMemoryMap(bs)
//
// CurrentMemoryMapAlloc does the same with a page-allocated buffer, optionally
// placed below a ceiling by the top-down allocator.
//
// # Top-down allocation
//
// AllocatePagesFromTop scans a fresh snapshot from the highest descriptor down
// and claims the highest free range whose end is at or below the caller's
// cursor, then moves the cursor to the range base so the next call continues
// below it:
//
//	top := uint64(efi.Base4GB)
//	err := a.AllocatePagesFromTop(efi.LoaderData, 16, &top, nil, nil)
//	// top is now the base of the 16 pages
//
// A RangeChecker lets callers veto candidate ranges (for example ranges the
// kernel will be loaded into). When boot services reject the chosen address
// because the map changed since the snapshot, the scan is repeated up to
// Options.MaxAllocRetries times.
//
// # Thread Safety
//
// Allocator is not safe for concurrent use.
package bootmem
