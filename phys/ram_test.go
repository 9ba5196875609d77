package phys

import (
	"testing"

	"github.com/joshuapare/efimem/efi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRAM_Geometry(t *testing.T) {
	_, err := NewRAM(0x1001, 0x1000)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)

	_, err = NewRAM(0x1000, 0)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)

	_, err = NewRAM(0xFFFFFFFFFFFFF000, 0x2000)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
}

func TestRAM_Slice(t *testing.T) {
	r, err := NewRAM(0x100000, 4*efi.PageSize)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint64(0x100000), r.Base())
	assert.Equal(t, uint64(4*efi.PageSize), r.Size())
	assert.Equal(t, uint64(0x104000), r.End())

	b, err := r.Slice(0x101000, 16)
	require.NoError(t, err)
	require.Len(t, b, 16)
	for _, v := range b {
		require.Zero(t, v, "fresh RAM must be zeroed")
	}
	b[0] = 0x5A

	// Views alias the same storage.
	again, err := r.Slice(0x101000, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), again[0])

	// Capacity is clipped so appends cannot spill into neighbouring memory.
	assert.Equal(t, 16, cap(b))
}

func TestRAM_SliceOutOfRange(t *testing.T) {
	r, err := NewRAM(0x100000, efi.PageSize)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Slice(0xFFFFF, 1)
	require.ErrorIs(t, err, ErrOutOfRange)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)

	_, err = r.Slice(0x100FF0, 0x20)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = r.Slice(0x100000, efi.PageSize)
	require.NoError(t, err)
}

func TestRAM_Close(t *testing.T) {
	r, err := NewRAM(0, efi.PageSize)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "double close is a no-op")

	_, err = r.Slice(0, 1)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, r.Sync(), ErrClosed)
}
