package paging

import (
	"fmt"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/internal/buf"
	"github.com/joshuapare/efimem/phys"
)

const entrySize = 8

// Table is one page of 512 entries at a physical address.
type Table struct {
	Addr uint64
	b    []byte
}

// LoadTable returns the table stored at addr.
func LoadTable(mem phys.Memory, addr uint64) (Table, error) {
	if !efi.IsAligned(addr) {
		return Table{}, fmt.Errorf("paging: table at 0x%X not page-aligned: %w", addr, efi.ErrInvalidArgument)
	}
	b, err := mem.Slice(addr, efi.PageSize)
	if err != nil {
		return Table{}, fmt.Errorf("paging: table at 0x%X: %w", addr, err)
	}
	return Table{Addr: addr, b: b}, nil
}

// Entry returns slot i.
func (t Table) Entry(i int) Entry {
	return Entry(buf.U64LE(t.b[i*entrySize:]))
}

// SetEntry stores e in slot i with a single 8-byte write.
func (t Table) SetEntry(i int, e Entry) {
	buf.PutU64LE(t.b[i*entrySize:], uint64(e))
}

// Clear zeroes every slot.
func (t Table) Clear() { buf.Zero(t.b) }
