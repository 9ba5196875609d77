package memmap

import "github.com/joshuapare/efimem/efi"

// Filter rewrites a snapshot in place. Filters may change descriptor fields
// and shrink Size but must not grow the map or reallocate Buf.
type Filter func(s *Snapshot)

// ApplyFilters runs filters over s in order.
func ApplyFilters(s *Snapshot, filters ...Filter) {
	for _, f := range filters {
		if f != nil {
			f(s)
		}
	}
}

// Retype returns a filter that changes every descriptor of type from that
// lies entirely inside [addr, addr+size) to type to. A size of 0 matches
// every descriptor.
func Retype(from, to efi.MemoryType, addr, size uint64) Filter {
	return func(s *Snapshot) {
		for i, d := range s.All() {
			if d.Type != from {
				continue
			}
			if size != 0 && (d.PhysicalStart < addr || d.End() > addr+size) {
				continue
			}
			d.Type = to
			s.Set(i, d)
		}
	}
}

// ShrinkFilter adapts Shrink to a Filter.
func ShrinkFilter(mergeable Mergeable) Filter {
	return func(s *Snapshot) { Shrink(s, mergeable) }
}
