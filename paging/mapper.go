package paging

import (
	"fmt"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/internal/buf"
	"github.com/joshuapare/efimem/logger"
	"github.com/joshuapare/efimem/phys"
)

// TableAllocator hands out zero or more contiguous pages for new tables.
// vmem.Context is the usual implementation.
type TableAllocator interface {
	AllocatePages(n uint64) (uint64, error)
}

// Mapper walks and extends page tables held in Memory.
//
// A root of 0 in any method means the table CR3 currently points at. CPU may
// be nil when every call passes an explicit root and FlushCaches is unused.
//
// NOT thread-safe.
type Mapper struct {
	Memory phys.Memory
	CPU    CPU
}

// NewMapper returns a Mapper over mem and cpu.
func NewMapper(mem phys.Memory, cpu CPU) *Mapper {
	return &Mapper{Memory: mem, CPU: cpu}
}

func (m *Mapper) root(root uint64) (Table, error) {
	if root == 0 {
		if m.CPU == nil {
			return Table{}, fmt.Errorf("paging: no root and no CPU: %w", efi.ErrInvalidArgument)
		}
		root, _ = CurrentPageTable(m.CPU)
	}
	return LoadTable(m.Memory, root)
}

// PhysicalAddress translates va through the tables rooted at root.
//
// Returns efi.ErrNotFound when a level is not present, efi.ErrInvalidArgument
// for a non-canonical address or a misaligned root, and efi.ErrUnsupported
// for a PS bit in the PML4.
func (m *Mapper) PhysicalAddress(root, va uint64) (uint64, error) {
	if !Canonical(va) {
		return 0, fmt.Errorf("paging: 0x%X is not canonical: %w", va, efi.ErrInvalidArgument)
	}
	t, err := m.root(root)
	if err != nil {
		return 0, err
	}

	for l := PML4; ; l-- {
		e := t.Entry(l.Index(va))
		if !e.Present() {
			return 0, fmt.Errorf("paging: 0x%X: %s entry not present: %w", va, l, efi.ErrNotFound)
		}
		if l == PT {
			return e.Address() | va&(efi.PageSize-1), nil
		}
		if e.Large() {
			if l == PML4 {
				return 0, fmt.Errorf("paging: 0x%X: large page in PML4: %w", va, efi.ErrUnsupported)
			}
			return e.LargeAddress(l) | va&(l.PageSize()-1), nil
		}
		if t, err = LoadTable(m.Memory, e.Address()); err != nil {
			return 0, err
		}
	}
}

// MapPage maps the 4 KiB page at va to pa with DefaultLeaf, replacing any
// existing leaf.
//
// Missing tables are taken from alloc in a single request. Large pages on
// the way are split into tables that reproduce the old translation, so only
// the page at va changes. New tables are filled in before the one store that
// makes them reachable; on error the tree is unchanged.
func (m *Mapper) MapPage(alloc TableAllocator, root, va, pa uint64) error {
	if !Canonical(va) || !efi.IsAligned(va) || !efi.IsAligned(pa) || pa&^AddressMask != 0 {
		return fmt.Errorf("paging: map 0x%X to 0x%X: %w", va, pa, efi.ErrInvalidArgument)
	}
	t, err := m.root(root)
	if err != nil {
		return err
	}

	// Descend through existing tables until the PT or the first level whose
	// entry is absent or large.
	l := PML4
	var e Entry
	for ; l > PT; l-- {
		e = t.Entry(l.Index(va))
		if !e.Present() {
			break
		}
		if e.Large() {
			if l == PML4 {
				return fmt.Errorf("paging: 0x%X: large page in PML4: %w", va, efi.ErrUnsupported)
			}
			break
		}
		if t, err = LoadTable(m.Memory, e.Address()); err != nil {
			return err
		}
	}

	leaf := Entry(pa) | DefaultLeaf
	if l == PT {
		t.SetEntry(PT.Index(va), leaf)
		return nil
	}

	// Levels l-1 down to PT each need a fresh table.
	n := uint64(l)
	if alloc == nil {
		return fmt.Errorf("paging: 0x%X needs %d tables and no allocator: %w", va, n, efi.ErrInvalidArgument)
	}
	base, err := alloc.AllocatePages(n)
	if err != nil {
		return fmt.Errorf("paging: allocate %d tables for 0x%X: %w", n, va, err)
	}
	if !efi.IsAligned(base) {
		return fmt.Errorf("paging: allocator returned unaligned 0x%X: %w", base, efi.ErrInvalidArgument)
	}
	raw, err := m.Memory.Slice(base, efi.PagesToSize(n))
	if err != nil {
		return fmt.Errorf("paging: tables at 0x%X: %w", base, err)
	}
	buf.Zero(raw)

	parent := e
	for i := range n {
		lv := l - 1 - Level(i)
		nt := Table{Addr: base + efi.PagesToSize(i), b: raw[efi.PagesToSize(i):efi.PagesToSize(i+1)]}
		if parent.Present() && parent.Large() {
			split(nt, parent, lv+1)
			logger.Debug("paging: split large page", "va", va, "level", (lv + 1).String(), "frame", parent.LargeAddress(lv+1))
		}
		slot := lv.Index(va)
		if lv == PT {
			nt.SetEntry(slot, leaf)
			break
		}
		parent = nt.Entry(slot)
		nt.SetEntry(slot, Entry(nt.Addr+efi.PageSize)|linkFlags(parent))
	}

	t.SetEntry(l.Index(va), Entry(base)|linkFlags(e))
	return nil
}

// linkFlags returns the flags of an entry that replaces old with a pointer to
// a new table. The user bit survives a split.
func linkFlags(old Entry) Entry {
	if old.Present() {
		return DefaultLink | old&User
	}
	return DefaultLink
}

// split fills t, one level below l, with entries reproducing the large leaf
// e at level l.
func split(t Table, e Entry, l Level) {
	child := l - 1
	flags := e.Flags() &^ PATLarge
	frame := e.LargeAddress(l)
	if child == PT {
		flags &^= PageSize
		if e&PATLarge != 0 {
			flags |= PAT4K
		}
	} else if e&PATLarge != 0 {
		flags |= PATLarge
	}
	for i := range EntriesPerTable {
		t.SetEntry(i, Entry(frame+uint64(i)*child.PageSize())|flags)
	}
}

// MapPages maps n consecutive pages starting at va to consecutive frames
// starting at pa.
func (m *Mapper) MapPages(alloc TableAllocator, root, va, n, pa uint64) error {
	if n == 0 {
		return fmt.Errorf("paging: map zero pages at 0x%X: %w", va, efi.ErrInvalidArgument)
	}
	size, ok := buf.MulU64(n, efi.PageSize)
	if !ok {
		return fmt.Errorf("paging: %d pages overflow: %w", n, efi.ErrInvalidArgument)
	}
	if _, ok := buf.AddU64(va, size-1); !ok {
		return fmt.Errorf("paging: [0x%X, +0x%X) wraps: %w", va, size, efi.ErrInvalidArgument)
	}
	if _, ok := buf.AddU64(pa, size-1); !ok {
		return fmt.Errorf("paging: frames [0x%X, +0x%X) wrap: %w", pa, size, efi.ErrInvalidArgument)
	}
	for i := range n {
		off := efi.PagesToSize(i)
		if err := m.MapPage(alloc, root, va+off, pa+off); err != nil {
			return fmt.Errorf("paging: page %d of %d: %w", i, n, err)
		}
	}
	return nil
}

// FlushCaches reloads CR3, invalidating non-global TLB entries.
func (m *Mapper) FlushCaches() {
	if m.CPU == nil {
		return
	}
	m.CPU.WriteCR3(m.CPU.ReadCR3())
}
