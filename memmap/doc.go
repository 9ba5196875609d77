// Package memmap models a UEFI memory-map snapshot and the normalizations
// applied to it.
//
// # Snapshot
//
// A Snapshot is the raw byte buffer returned by GetMemoryMap together with the
// metadata needed to interpret it: used size, descriptor stride, format
// version and the map key. Descriptors are decoded in place, so firmware that
// reports a stride larger than efi.DescriptorSize keeps its vendor bytes.
//
//	for i, d := range snap.All() {
//	    fmt.Println(i, d)
//	}
//
// Backward walks from the highest descriptor down, which is the order the
// top-down allocator scans in.
//
// # Normalization
//
//   - Shrink: merge contiguous descriptors of the same type and attributes
//   - CountRuntimePages: size runtime mapping structures
//   - Filter / ApplyFilters: caller-defined in-place rewrites
//
// None of these reallocate the buffer. Ownership stays with whoever fetched
// the snapshot.
//
// # Thread Safety
//
// Snapshots are plain values and not safe for concurrent mutation.
package memmap
