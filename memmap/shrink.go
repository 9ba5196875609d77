package memmap

import "github.com/joshuapare/efimem/efi"

// Mergeable decides whether a descriptor may be joined with its neighbour.
type Mergeable func(d efi.Descriptor) bool

// NonRuntime accepts every descriptor that is not runtime-visible, by type or
// by the EFI_MEMORY_RUNTIME attribute. Runtime regions stay one descriptor per
// firmware record so later consumers see them exactly as reported.
func NonRuntime(d efi.Descriptor) bool {
	return !d.Type.IsRuntime() && !d.IsRuntime()
}

// Shrink compacts s in place by joining consecutive descriptors that have the
// same type and attributes, are physically (and, when set, virtually)
// contiguous, and are accepted by mergeable. A nil mergeable selects
// NonRuntime.
//
// s.Size is reduced accordingly. The buffer is never reallocated and bytes
// past the new Size are left as they were.
func Shrink(s *Snapshot, mergeable Mergeable) {
	if mergeable == nil {
		mergeable = NonRuntime
	}
	n := s.Len()
	if n < 2 {
		return
	}

	kept := 0
	prev := s.At(0)
	for i := 1; i < n; i++ {
		cur := s.At(i)
		if joinable(prev, cur, mergeable) {
			prev.NumberOfPages += cur.NumberOfPages
			s.Set(kept, prev)
			continue
		}
		kept++
		if kept != i {
			copy(s.record(kept), s.record(i))
		}
		prev = cur
	}
	s.Size = (kept + 1) * s.DescriptorSize
}

func joinable(prev, cur efi.Descriptor, mergeable Mergeable) bool {
	if prev.Type != cur.Type || prev.Attribute != cur.Attribute {
		return false
	}
	if prev.End() != cur.PhysicalStart {
		return false
	}
	if prev.VirtualStart != 0 || cur.VirtualStart != 0 {
		if prev.VirtualStart+prev.Size() != cur.VirtualStart {
			return false
		}
	}
	return mergeable(prev) && mergeable(cur)
}
