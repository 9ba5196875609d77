package memmap

import (
	"testing"

	"github.com/joshuapare/efimem/efi"
	"github.com/stretchr/testify/require"
)

// conv is shorthand for a conventional-memory descriptor.
func conv(start, pages uint64) efi.Descriptor {
	return efi.Descriptor{Type: efi.ConventionalMemory, PhysicalStart: start, NumberOfPages: pages, Attribute: efi.AttrWB}
}

func desc(t efi.MemoryType, start, pages uint64, attr efi.Attribute) efi.Descriptor {
	return efi.Descriptor{Type: t, PhysicalStart: start, NumberOfPages: pages, Attribute: attr}
}

func newSnapshot(t testing.TB, stride int, descs ...efi.Descriptor) *Snapshot {
	t.Helper()
	s, err := New(descs, stride)
	require.NoError(t, err)
	return s
}

func pagesByType(s *Snapshot) map[efi.MemoryType]uint64 {
	out := make(map[efi.MemoryType]uint64)
	for _, d := range s.All() {
		out[d.Type] += d.NumberOfPages
	}
	return out
}
