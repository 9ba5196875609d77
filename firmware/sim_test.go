package firmware

import (
	"testing"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/memmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conv(start, pages uint64) efi.Descriptor {
	return efi.Descriptor{Type: efi.ConventionalMemory, PhysicalStart: start, NumberOfPages: pages}
}

func TestNewSim_RejectsInvalidMap(t *testing.T) {
	_, err := NewSim([]efi.Descriptor{conv(0x3000, 1), conv(0x1000, 1)}, nil)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)

	_, err = NewSim([]efi.Descriptor{conv(0x1000, 1)}, &Options{DescriptorSize: 16})
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
}

func TestSim_GetMemoryMap_SizeThenFill(t *testing.T) {
	s, err := NewSim([]efi.Descriptor{conv(0x1000, 1), conv(0x3000, 5)}, &Options{DescriptorSize: 48})
	require.NoError(t, err)

	info, err := s.GetMemoryMap(nil)
	require.ErrorIs(t, err, efi.ErrBufferTooSmall)
	assert.Equal(t, 96, info.Size)
	assert.Equal(t, 48, info.DescriptorSize)

	buf := make([]byte, info.Size)
	info, err = s.GetMemoryMap(buf)
	require.NoError(t, err)
	assert.Equal(t, s.MapKey(), info.Key)
	assert.Equal(t, uint32(efi.DescriptorVersion), info.DescriptorVersion)

	snap := &memmap.Snapshot{Buf: buf, Size: info.Size, DescriptorSize: info.DescriptorSize}
	assert.Equal(t, s.Descriptors(), snap.Descriptors())
	assert.Equal(t, 2, s.Stats().GetMemoryMap)
}

func TestSim_AllocateAddress(t *testing.T) {
	s, err := NewSim([]efi.Descriptor{conv(0x1000, 8)}, nil)
	require.NoError(t, err)
	key := s.MapKey()

	addr, err := s.AllocatePages(efi.AllocateAddress, efi.LoaderData, 2, 0x3000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3000), addr)
	assert.NotEqual(t, key, s.MapKey(), "allocation must change the map key")

	assert.Equal(t, []efi.Descriptor{
		conv(0x1000, 2),
		{Type: efi.LoaderData, PhysicalStart: 0x3000, NumberOfPages: 2},
		conv(0x5000, 4),
	}, s.Descriptors())

	_, err = s.AllocatePages(efi.AllocateAddress, efi.LoaderData, 1, 0x4000)
	require.ErrorIs(t, err, efi.ErrNotFound)

	_, err = s.AllocatePages(efi.AllocateAddress, efi.LoaderData, 1, 0x4800)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
}

func TestSim_AllocateAnyPagesPicksTop(t *testing.T) {
	s, err := NewSim([]efi.Descriptor{conv(0x1000, 4), conv(0x10000, 4)}, nil)
	require.NoError(t, err)

	addr, err := s.AllocatePages(efi.AllocateAnyPages, efi.BootServicesData, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12000), addr)

	addr, err = s.AllocatePages(efi.AllocateMaxAddress, efi.BootServicesData, 2, 0x10FFF)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3000), addr, "range above the max address is skipped")

	_, err = s.AllocatePages(efi.AllocateAnyPages, efi.BootServicesData, 5, 0)
	require.ErrorIs(t, err, efi.ErrResourceExhausted)
}

func TestSim_AllocateRejectsBadRequests(t *testing.T) {
	s, err := NewSim([]efi.Descriptor{conv(0x1000, 4)}, nil)
	require.NoError(t, err)

	_, err = s.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 0, 0)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
	_, err = s.AllocatePages(efi.AllocateAnyPages, efi.ConventionalMemory, 1, 0)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
	_, err = s.AllocatePages(efi.MaxAllocateType, efi.LoaderData, 1, 0)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
}

func TestSim_FreePagesCoalesces(t *testing.T) {
	s, err := NewSim([]efi.Descriptor{conv(0x1000, 8)}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Reserve(0x3000, 2, efi.LoaderData))
	require.Len(t, s.Descriptors(), 3)

	require.NoError(t, s.FreePages(0x3000, 2))
	assert.Equal(t, []efi.Descriptor{conv(0x1000, 8)}, s.Descriptors())

	require.ErrorIs(t, s.FreePages(0x3000, 1), efi.ErrNotFound)
	require.ErrorIs(t, s.FreePages(0x3001, 1), efi.ErrInvalidArgument)
	assert.Equal(t, 3, s.Stats().FreePages)
}

func TestSim_Hooks(t *testing.T) {
	fetches := 0
	allocs := 0
	s, err := NewSim([]efi.Descriptor{conv(0x1000, 8)}, &Options{
		OnGetMemoryMap: func(*Sim) { fetches++ },
		OnAllocatePages: func(_ *Sim, typ efi.AllocateType, pages, addr uint64) {
			allocs++
			assert.Equal(t, efi.AllocateAddress, typ)
			assert.Equal(t, uint64(1), pages)
			assert.Equal(t, uint64(0x2000), addr)
		},
	})
	require.NoError(t, err)

	_, _ = s.GetMemoryMap(nil)
	require.NoError(t, s.Reserve(0x2000, 1, efi.LoaderCode))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 1, allocs)
}

func TestMachine(t *testing.T) {
	m, err := NewMachine([]efi.Descriptor{
		conv(0x1000, 3),
		{Type: efi.MemoryMappedIO, PhysicalStart: 0xFEC00000, NumberOfPages: 1},
	}, nil)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, uint64(0x1000), m.RAM.Base())
	assert.Equal(t, uint64(0x4000), m.RAM.End())

	m.CPU.WriteCR3(0x5000)
	assert.Equal(t, uint64(0x5000), m.CPU.ReadCR3())
	assert.Equal(t, 1, m.CPU.Reloads)

	_, err = NewMachine([]efi.Descriptor{{Type: efi.MemoryMappedIO, PhysicalStart: 0x1000, NumberOfPages: 1}}, nil)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
}
