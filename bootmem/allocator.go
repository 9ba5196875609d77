package bootmem

import (
	"errors"
	"fmt"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/internal/buf"
	"github.com/joshuapare/efimem/logger"
	"github.com/joshuapare/efimem/memmap"
	"github.com/joshuapare/efimem/phys"
)

// Allocator carves pages out of the boot environment.
type Allocator struct {
	boot efi.BootServices
	mem  phys.Memory
	opts Options
}

// New creates an Allocator. mem gives access to page-allocated snapshot
// buffers and may be nil if CurrentMemoryMapAlloc is never used. opts may be
// nil.
func New(boot efi.BootServices, mem phys.Memory, opts *Options) *Allocator {
	a := &Allocator{boot: boot, mem: mem, opts: DefaultOptions()}
	if opts != nil {
		a.opts = opts.withDefaults()
	}
	return a
}

// Boot returns the boot services the allocator runs against.
func (a *Allocator) Boot() efi.BootServices { return a.boot }

// Memory returns the physical memory capability.
func (a *Allocator) Memory() phys.Memory { return a.mem }

// CurrentMemoryMap fetches the map from the allocator's boot services into a
// heap buffer.
func (a *Allocator) CurrentMemoryMap() (*memmap.Snapshot, error) {
	return currentMemoryMap(a.boot, a.opts)
}

// CurrentMemoryMapAlloc fetches the map into page-allocated memory.
//
// fetch substitutes the map oracle; nil uses the allocator's boot services.
// When top is non-nil the buffer is placed by AllocatePagesFromTop below *top
// and *top is moved to the buffer base on success. Otherwise any pages are
// used. Release the snapshot with FreeMemoryMap.
func (a *Allocator) CurrentMemoryMapAlloc(fetch efi.MapFetcher, top *uint64) (*memmap.Snapshot, error) {
	if a.mem == nil {
		return nil, fmt.Errorf("bootmem: no physical memory access: %w", efi.ErrUnsupported)
	}
	if fetch == nil {
		fetch = a.boot
	}

	info, err := fetch.GetMemoryMap(nil)
	if err == nil {
		return newSnapshot(nil, info)
	}
	if !errors.Is(err, efi.ErrBufferTooSmall) {
		return nil, fmt.Errorf("bootmem: size memory map: %w", err)
	}

	for attempt := range a.opts.MaxMapRetries {
		pages := efi.SizeToPages(uint64(bufferSize(info, a.opts)))

		base, err := a.allocateMapPages(fetch, pages, top)
		if err != nil {
			return nil, err
		}
		b, err := a.mem.Slice(base, efi.PagesToSize(pages))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("bootmem: map buffer at 0x%X: %w", base, err), a.boot.FreePages(base, pages))
		}

		info, err = fetch.GetMemoryMap(b)
		if err == nil {
			snap, err := newSnapshot(b, info)
			if err != nil {
				return nil, errors.Join(err, a.boot.FreePages(base, pages))
			}
			snap.Base = base
			snap.Pages = pages
			if top != nil {
				*top = base
			}
			return snap, nil
		}

		if freeErr := a.boot.FreePages(base, pages); freeErr != nil {
			return nil, fmt.Errorf("bootmem: release map buffer: %w", freeErr)
		}
		if !errors.Is(err, efi.ErrBufferTooSmall) {
			return nil, fmt.Errorf("bootmem: fetch memory map: %w", err)
		}
		logger.Debug("bootmem: memory map outgrew page buffer", "attempt", attempt+1, "need", info.Size, "pages", pages)
	}
	return nil, fmt.Errorf("bootmem: memory map still growing after %d attempts: %w",
		a.opts.MaxMapRetries, efi.ErrResourceExhausted)
}

func (a *Allocator) allocateMapPages(fetch efi.MapFetcher, pages uint64, top *uint64) (uint64, error) {
	if top != nil {
		cursor := *top
		if err := a.AllocatePagesFromTop(efi.BootServicesData, pages, &cursor, fetch, nil); err != nil {
			return 0, err
		}
		return cursor, nil
	}
	base, err := a.boot.AllocatePages(efi.AllocateAnyPages, efi.BootServicesData, pages, 0)
	if err != nil {
		return 0, fmt.Errorf("bootmem: allocate %d map pages: %w", pages, err)
	}
	return base, nil
}

// FreeMemoryMap releases a snapshot obtained from this allocator. Heap
// snapshots are simply dropped; page-allocated ones are returned to boot
// services.
func (a *Allocator) FreeMemoryMap(s *memmap.Snapshot) error {
	if s == nil {
		return nil
	}
	if s.Pages != 0 {
		if err := a.boot.FreePages(s.Base, s.Pages); err != nil {
			return fmt.Errorf("bootmem: free map pages at 0x%X: %w", s.Base, err)
		}
	}
	s.Buf, s.Size, s.Base, s.Pages = nil, 0, 0, 0
	return nil
}

// AllocatePagesFromTop allocates pages pages of memType as high as possible
// with the region end at or below *memory, and stores the region base in
// *memory.
//
// fetch substitutes the map oracle; nil uses the allocator's boot services.
// check may veto candidates and may be nil.
//
// Returns efi.ErrNotFound when no free range fits below *memory, and
// efi.ErrResourceExhausted when boot services kept rejecting the chosen
// address because the map changed. *memory is only written on success.
func (a *Allocator) AllocatePagesFromTop(memType efi.MemoryType, pages uint64, memory *uint64, fetch efi.MapFetcher, check RangeChecker) error {
	if pages == 0 || memory == nil {
		return fmt.Errorf("bootmem: top-down allocation of %d pages: %w", pages, efi.ErrInvalidArgument)
	}
	size, ok := buf.MulU64(pages, efi.PageSize)
	if !ok {
		return fmt.Errorf("bootmem: %d pages overflow: %w", pages, efi.ErrInvalidArgument)
	}
	if fetch == nil {
		fetch = a.boot
	}

	for attempt := range a.opts.MaxAllocRetries {
		snap, err := currentMemoryMap(fetch, a.opts)
		if err != nil {
			return err
		}
		if err := snap.Validate(); err != nil {
			return fmt.Errorf("bootmem: %w", err)
		}

		base, found := findTop(snap, size, *memory, check)
		if !found {
			return fmt.Errorf("bootmem: no %d free pages below 0x%X: %w", pages, *memory, efi.ErrNotFound)
		}

		got, err := a.boot.AllocatePages(efi.AllocateAddress, memType, pages, base)
		if err == nil {
			*memory = got
			return nil
		}
		if !errors.Is(err, efi.ErrNotFound) && !errors.Is(err, efi.ErrMapChanged) {
			return fmt.Errorf("bootmem: allocate %d pages at 0x%X: %w", pages, base, err)
		}
		logger.Debug("bootmem: map changed under top-down allocation",
			"attempt", attempt+1, "base", base, "pages", pages, "key", snap.MapKey)
	}
	logger.Warn("bootmem: top-down allocation gave up", "pages", pages, "attempts", a.opts.MaxAllocRetries)
	return fmt.Errorf("bootmem: %d pages below 0x%X kept changing after %d attempts: %w",
		pages, *memory, a.opts.MaxAllocRetries, efi.ErrResourceExhausted)
}

// findTop returns the base of the highest size-byte free range that ends at
// or below bound and passes check.
func findTop(snap *memmap.Snapshot, size, bound uint64, check RangeChecker) (uint64, bool) {
	limit := efi.AlignDown(bound)
	skipper, _ := check.(RangeSkipper)

	for _, d := range snap.Backward() {
		if d.Type != efi.ConventionalMemory || d.Size() < size {
			continue
		}
		top := min(d.End(), limit)
		for top >= d.PhysicalStart+size {
			base := top - size
			if check == nil || check.CheckRange(base, size) {
				return base, true
			}
			next := top - efi.PageSize
			if skipper != nil {
				if below := efi.AlignDown(skipper.SkipBelow(base, size)); below < next {
					next = below
				}
			}
			top = next
		}
	}
	return 0, false
}
