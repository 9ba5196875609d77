package phys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joshuapare/efimem/efi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapImage_WriteBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ram.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*efi.PageSize), 0o644))

	r, err := MapImage(path, 0x80000000)
	require.NoError(t, err)

	b, err := r.Slice(0x80001000, 4)
	require.NoError(t, err)
	copy(b, []byte{0xde, 0xad, 0xbe, 0xef})

	require.NoError(t, r.Sync())
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data[efi.PageSize:efi.PageSize+4])
}

func TestMapImage_Unaligned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := MapImage(path, 0)
	require.ErrorIs(t, err, efi.ErrInvalidArgument)
}

func TestMapImage_Missing(t *testing.T) {
	_, err := MapImage(filepath.Join(t.TempDir(), "nope.img"), 0)
	require.Error(t, err)
}

func TestSaveImage_RoundTrip(t *testing.T) {
	r, err := NewRAM(0x100000, 2*efi.PageSize)
	require.NoError(t, err)
	b, err := r.Slice(0x101FFC, 4)
	require.NoError(t, err)
	copy(b, "tail")

	path := filepath.Join(t.TempDir(), "saved.img")
	require.NoError(t, r.SaveImage(path))
	require.NoError(t, r.Close())
	require.ErrorIs(t, r.SaveImage(path), ErrClosed)

	img, err := MapImage(path, 0x100000)
	require.NoError(t, err)
	defer img.Close()
	assert.Equal(t, uint64(2*efi.PageSize), img.Size())
	got, err := img.Slice(0x101FFC, 4)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
