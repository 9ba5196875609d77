//go:build linux || darwin || freebsd

package phys

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// NewRAM maps size bytes of zeroed anonymous memory and presents them as the
// physical range starting at base. Both must be page-aligned.
func NewRAM(base, size uint64) (*RAM, error) {
	if err := checkGeometry(base, size); err != nil {
		return nil, err
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("phys: mmap %d bytes: %w", size, err)
	}
	return &RAM{base: base, data: data, release: munmapFunc(data)}, nil
}

// MapImage maps a memory image file read-write at physical address base.
// Changes reach the file on Sync or Close.
func MapImage(path string, base uint64) (*RAM, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close() // mapping keeps pages alive

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := uint64(info.Size())
	if err := checkGeometry(base, size); err != nil {
		return nil, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("phys: mmap %s: %w", path, err)
	}
	unmap := munmapFunc(data)
	return &RAM{
		base: base,
		data: data,
		sync: msync,
		release: func() error {
			return errors.Join(msync(data), unmap())
		},
	}, nil
}

func msync(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

func munmapFunc(data []byte) func() error {
	return func() error {
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
}
