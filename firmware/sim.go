package firmware

import (
	"fmt"
	"math"
	"slices"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/memmap"
)

// Options configures a Sim.
type Options struct {
	// DescriptorSize is the stride reported by GetMemoryMap.
	// Default: efi.DescriptorSize. Larger values append zeroed vendor bytes.
	DescriptorSize int

	// OnGetMemoryMap runs at the start of every GetMemoryMap call. Tests use
	// it to change the map behind the caller's back.
	OnGetMemoryMap func(s *Sim)

	// OnAllocatePages runs at the start of every AllocatePages call, before
	// the request is examined.
	OnAllocatePages func(s *Sim, typ efi.AllocateType, pages, addr uint64)
}

// Stats counts calls made into a Sim.
type Stats struct {
	GetMemoryMap  int
	AllocatePages int
	FreePages     int
}

// Sim is a simulated set of boot services.
type Sim struct {
	descs []efi.Descriptor
	key   uint64
	opts  Options
	stats Stats
}

// NewSim creates boot services managing descs. The descriptors must form a
// valid map (see memmap.Snapshot.Validate). opts may be nil.
func NewSim(descs []efi.Descriptor, opts *Options) (*Sim, error) {
	s := &Sim{descs: slices.Clone(descs), key: 1}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.DescriptorSize == 0 {
		s.opts.DescriptorSize = efi.DescriptorSize
	}

	snap, err := memmap.New(s.descs, s.opts.DescriptorSize)
	if err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}
	return s, nil
}

// Descriptors returns a copy of the current map.
func (s *Sim) Descriptors() []efi.Descriptor {
	return slices.Clone(s.descs)
}

// MapKey returns the current map key.
func (s *Sim) MapKey() uint64 { return s.key }

// Stats returns call counters.
func (s *Sim) Stats() Stats { return s.stats }

// GetMemoryMap implements efi.MapFetcher.
func (s *Sim) GetMemoryMap(buf []byte) (efi.MapInfo, error) {
	s.stats.GetMemoryMap++
	if s.opts.OnGetMemoryMap != nil {
		s.opts.OnGetMemoryMap(s)
	}

	stride := s.opts.DescriptorSize
	info := efi.MapInfo{
		Size:              len(s.descs) * stride,
		Key:               s.key,
		DescriptorSize:    stride,
		DescriptorVersion: efi.DescriptorVersion,
	}
	if len(buf) < info.Size {
		return info, efi.ErrBufferTooSmall
	}

	for i, d := range s.descs {
		rec := buf[i*stride : (i+1)*stride]
		clear(rec)
		if err := efi.EncodeDescriptor(rec, d); err != nil {
			return efi.MapInfo{}, err
		}
	}
	return info, nil
}

// AllocatePages implements efi.BootServices.
//
// AllocateAnyPages and AllocateMaxAddress pick the highest suitable free
// range, as EDK II does. AllocateAddress fails with efi.ErrNotFound when any
// page of the range is not free.
func (s *Sim) AllocatePages(typ efi.AllocateType, memType efi.MemoryType, pages, addr uint64) (uint64, error) {
	s.stats.AllocatePages++
	if s.opts.OnAllocatePages != nil {
		s.opts.OnAllocatePages(s, typ, pages, addr)
	}

	if pages == 0 || memType == efi.ConventionalMemory || memType >= efi.MaxMemoryType && memType < 0x70000000 {
		return 0, fmt.Errorf("firmware: allocate %d pages of %s: %w", pages, memType, efi.ErrInvalidArgument)
	}
	if pages > math.MaxUint64>>efi.PageShift {
		return 0, fmt.Errorf("firmware: allocate %d pages: %w", pages, efi.ErrResourceExhausted)
	}
	size := efi.PagesToSize(pages)

	switch typ {
	case efi.AllocateAddress:
		if !efi.IsAligned(addr) {
			return 0, fmt.Errorf("firmware: address 0x%X not page-aligned: %w", addr, efi.ErrInvalidArgument)
		}
		i := s.freeIndex(addr, size)
		if i < 0 {
			return 0, fmt.Errorf("firmware: [0x%X, +0x%X) not free: %w", addr, size, efi.ErrNotFound)
		}
		s.carve(i, addr, size, memType)
		return addr, nil

	case efi.AllocateAnyPages, efi.AllocateMaxAddress:
		limit := uint64(math.MaxUint64)
		if typ == efi.AllocateMaxAddress {
			limit = addr
		}
		for i := len(s.descs) - 1; i >= 0; i-- {
			d := s.descs[i]
			if d.Type != efi.ConventionalMemory || d.NumberOfPages < pages {
				continue
			}
			top := d.End()
			if limit != math.MaxUint64 && top > efi.AlignDown(limit+1) {
				top = efi.AlignDown(limit + 1)
			}
			if top < d.PhysicalStart+size {
				continue
			}
			base := top - size
			s.carve(i, base, size, memType)
			return base, nil
		}
		return 0, fmt.Errorf("firmware: no %d free pages: %w", pages, efi.ErrResourceExhausted)
	}
	return 0, fmt.Errorf("firmware: allocate type %d: %w", typ, efi.ErrInvalidArgument)
}

// FreePages implements efi.BootServices.
func (s *Sim) FreePages(addr, pages uint64) error {
	s.stats.FreePages++
	if pages == 0 || !efi.IsAligned(addr) {
		return fmt.Errorf("firmware: free %d pages at 0x%X: %w", pages, addr, efi.ErrInvalidArgument)
	}
	size := efi.PagesToSize(pages)
	for i, d := range s.descs {
		if d.Type == efi.ConventionalMemory || !d.Contains(addr, size) {
			continue
		}
		s.carve(i, addr, size, efi.ConventionalMemory)
		s.coalesce()
		return nil
	}
	return fmt.Errorf("firmware: [0x%X, +0x%X) not allocated: %w", addr, size, efi.ErrNotFound)
}

// Reserve allocates [addr, addr+pages) as memType the way another boot
// driver would, changing the map key.
func (s *Sim) Reserve(addr, pages uint64, memType efi.MemoryType) error {
	_, err := s.AllocatePages(efi.AllocateAddress, memType, pages, addr)
	return err
}

// freeIndex returns the index of the conventional descriptor containing the
// whole range, or -1.
func (s *Sim) freeIndex(addr, size uint64) int {
	for i, d := range s.descs {
		if d.Type == efi.ConventionalMemory && d.Contains(addr, size) {
			return i
		}
	}
	return -1
}

// carve splits descriptor i so [addr, addr+size) becomes memType.
func (s *Sim) carve(i int, addr, size uint64, memType efi.MemoryType) {
	d := s.descs[i]
	var parts []efi.Descriptor
	if addr > d.PhysicalStart {
		head := d
		head.NumberOfPages = efi.SizeToPages(addr - d.PhysicalStart)
		parts = append(parts, head)
	}
	mid := d
	mid.Type = memType
	mid.PhysicalStart = addr
	mid.NumberOfPages = efi.SizeToPages(size)
	if d.VirtualStart != 0 {
		mid.VirtualStart = d.VirtualStart + (addr - d.PhysicalStart)
	}
	parts = append(parts, mid)
	if end := addr + size; end < d.End() {
		tail := d
		tail.PhysicalStart = end
		tail.NumberOfPages = efi.SizeToPages(d.End() - end)
		if d.VirtualStart != 0 {
			tail.VirtualStart = d.VirtualStart + (end - d.PhysicalStart)
		}
		parts = append(parts, tail)
	}
	s.descs = slices.Replace(s.descs, i, i+1, parts...)
	s.key++
}

// coalesce joins adjacent free descriptors with identical attributes.
func (s *Sim) coalesce() {
	out := s.descs[:0]
	for _, d := range s.descs {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.Type == efi.ConventionalMemory && d.Type == efi.ConventionalMemory &&
				prev.Attribute == d.Attribute && prev.End() == d.PhysicalStart {
				prev.NumberOfPages += d.NumberOfPages
				continue
			}
		}
		out = append(out, d)
	}
	s.descs = out
}

var _ efi.BootServices = (*Sim)(nil)
