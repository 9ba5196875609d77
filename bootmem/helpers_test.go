package bootmem

import (
	"testing"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/firmware"
	"github.com/stretchr/testify/require"
)

func conv(start, pages uint64) efi.Descriptor {
	return efi.Descriptor{Type: efi.ConventionalMemory, PhysicalStart: start, NumberOfPages: pages, Attribute: efi.AttrWB}
}

func reserved(start, pages uint64) efi.Descriptor {
	return efi.Descriptor{Type: efi.ReservedMemoryType, PhysicalStart: start, NumberOfPages: pages, Attribute: efi.AttrWB}
}

// smallMap is one free page at 0x1000, a reserved page at 0x2000 and five
// free pages at 0x3000.
func smallMap() []efi.Descriptor {
	return []efi.Descriptor{conv(0x1000, 1), reserved(0x2000, 1), conv(0x3000, 5)}
}

func newSim(t *testing.T, descs []efi.Descriptor, opts *firmware.Options) *firmware.Sim {
	t.Helper()
	s, err := firmware.NewSim(descs, opts)
	require.NoError(t, err)
	return s
}
