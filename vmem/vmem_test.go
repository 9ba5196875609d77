package vmem

import (
	"testing"

	"github.com/joshuapare/efimem/bootmem"
	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/firmware"
	"github.com/joshuapare/efimem/paging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ paging.TableAllocator = (*Context)(nil)

func conv(start, pages uint64) efi.Descriptor {
	return efi.Descriptor{Type: efi.ConventionalMemory, PhysicalStart: start, NumberOfPages: pages, Attribute: efi.AttrWB}
}

func TestNewContext_Invalid(t *testing.T) {
	_, err := NewContext(0x1000, 0)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
	_, err = NewContext(0x1001, 1)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
	_, err = NewContext(0xFFFF_FFFF_FFFF_F000, 2)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
}

func TestContext_AllocatePages(t *testing.T) {
	c, err := NewContext(0x10000, 8)
	require.NoError(t, err)

	a, err := c.AllocatePages(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10000), a)
	assert.Equal(t, uint64(5), c.FreePages())

	b, err := c.AllocatePages(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x13000), b)
	assert.Zero(t, c.FreePages())

	_, err = c.AllocatePages(1)
	require.ErrorIs(t, err, efi.ErrResourceExhausted)
	assert.Equal(t, uint64(8), c.TotalPages())
	assert.Equal(t, uint64(0x10000), c.Base())
}

func TestContext_FailureLeavesStateAlone(t *testing.T) {
	c, err := NewContext(0x10000, 4)
	require.NoError(t, err)

	_, err = c.AllocatePages(5)
	require.ErrorIs(t, err, efi.ErrResourceExhausted)
	_, err = c.AllocatePages(0)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
	assert.Equal(t, uint64(4), c.FreePages())

	a, err := c.AllocatePages(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10000), a)
}

func TestContext_NeverOverlaps(t *testing.T) {
	c, err := NewContext(0x200000, 64)
	require.NoError(t, err)

	type span struct{ lo, hi uint64 }
	var got []span
	for _, n := range []uint64{1, 7, 2, 13, 1, 40} {
		before := c.FreePages()
		a, err := c.AllocatePages(n)
		require.NoError(t, err)
		assert.Equal(t, before-n, c.FreePages())
		s := span{a, a + efi.PagesToSize(n)}
		for _, o := range got {
			assert.True(t, s.hi <= o.lo || o.hi <= s.lo, "%v overlaps %v", s, o)
		}
		got = append(got, s)
	}
	_, err = c.AllocatePages(1)
	require.ErrorIs(t, err, efi.ErrResourceExhausted)
}

func TestAllocateMemoryPool(t *testing.T) {
	sim, err := firmware.NewSim([]efi.Descriptor{
		conv(0x100000, 0x1000),
		conv(0x1_0000_0000, 0x1000),
	}, nil)
	require.NoError(t, err)

	c, err := AllocateMemoryPool(bootmem.New(sim, nil, nil), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultPageCount), c.TotalPages())
	assert.Equal(t, uint64(0x1100000-DefaultPageCount*efi.PageSize), c.Base())

	descs := sim.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, efi.BootServicesData, descs[1].Type)
	assert.Equal(t, c.Base(), descs[1].PhysicalStart)
}

func TestAllocateMemoryPool_NoRoom(t *testing.T) {
	sim, err := firmware.NewSim([]efi.Descriptor{conv(0x1_0000_0000, 0x1000)}, nil)
	require.NoError(t, err)

	_, err = AllocateMemoryPool(bootmem.New(sim, nil, nil), 4)
	require.ErrorIs(t, err, efi.ErrNotFound)
}

func TestPoolBacksMapping(t *testing.T) {
	m, err := firmware.NewMachine([]efi.Descriptor{conv(0x100000, 0x400)}, nil)
	require.NoError(t, err)
	defer m.Close()

	pool, err := AllocateMemoryPool(bootmem.New(m.Boot, m.RAM, nil), 16)
	require.NoError(t, err)
	root, err := pool.AllocatePages(1)
	require.NoError(t, err)
	m.CPU.CR3 = root

	mapper := paging.NewMapper(m.RAM, m.CPU)
	require.NoError(t, mapper.MapPage(pool, 0, 0x4000_0000, 0x10000))
	mapper.FlushCaches()

	pa, err := mapper.PhysicalAddress(0, 0x4000_0ABC)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10ABC), pa)
	assert.Equal(t, uint64(16-1-3), pool.FreePages())
	assert.Equal(t, 1, m.CPU.Reloads)
}
