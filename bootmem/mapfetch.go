package bootmem

import (
	"errors"
	"fmt"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/logger"
	"github.com/joshuapare/efimem/memmap"
)

// CurrentMemoryMap fetches the current memory map into a heap buffer using
// the default options.
func CurrentMemoryMap(fetch efi.MapFetcher) (*memmap.Snapshot, error) {
	return currentMemoryMap(fetch, DefaultOptions())
}

func currentMemoryMap(fetch efi.MapFetcher, opts Options) (*memmap.Snapshot, error) {
	if fetch == nil {
		return nil, fmt.Errorf("bootmem: nil map fetcher: %w", efi.ErrInvalidArgument)
	}

	info, err := fetch.GetMemoryMap(nil)
	if err == nil {
		return newSnapshot(nil, info)
	}
	if !errors.Is(err, efi.ErrBufferTooSmall) {
		return nil, fmt.Errorf("bootmem: size memory map: %w", err)
	}

	for attempt := range opts.MaxMapRetries {
		b := make([]byte, bufferSize(info, opts))
		info, err = fetch.GetMemoryMap(b)
		if err == nil {
			return newSnapshot(b, info)
		}
		if !errors.Is(err, efi.ErrBufferTooSmall) {
			return nil, fmt.Errorf("bootmem: fetch memory map: %w", err)
		}
		logger.Debug("bootmem: memory map outgrew buffer", "attempt", attempt+1, "need", info.Size, "have", len(b))
	}
	return nil, fmt.Errorf("bootmem: memory map still growing after %d attempts: %w",
		opts.MaxMapRetries, efi.ErrResourceExhausted)
}

// bufferSize is the reported size plus headroom for the descriptors the
// buffer allocation itself may add.
func bufferSize(info efi.MapInfo, opts Options) int {
	stride := max(info.DescriptorSize, efi.DescriptorSize)
	return info.Size + opts.MapHeadroomDescriptors*stride
}

func newSnapshot(b []byte, info efi.MapInfo) (*memmap.Snapshot, error) {
	if info.DescriptorSize < efi.DescriptorSize && info.Size > 0 {
		return nil, fmt.Errorf("bootmem: firmware descriptor size %d below %d: %w",
			info.DescriptorSize, efi.DescriptorSize, efi.ErrInvalidArgument)
	}
	if info.Size < 0 || info.Size > len(b) {
		return nil, fmt.Errorf("bootmem: firmware reported %d bytes for a %d byte buffer: %w",
			info.Size, len(b), efi.ErrInvalidArgument)
	}
	return &memmap.Snapshot{
		Buf:               b,
		Size:              info.Size,
		DescriptorSize:    max(info.DescriptorSize, efi.DescriptorSize),
		DescriptorVersion: info.DescriptorVersion,
		MapKey:            info.Key,
	}, nil
}
