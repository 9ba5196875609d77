package paging

import "github.com/joshuapare/efimem/efi"

// Level identifies a page-table level. PT is the leaf level.
type Level int

const (
	PT Level = iota
	PD
	PDPT
	PML4
)

// EntriesPerTable is the number of entries in every table.
const EntriesPerTable = 512

func (l Level) shift() uint { return efi.PageShift + 9*uint(l) }

// PageSize returns the size of the region one entry at level l covers.
func (l Level) PageSize() uint64 { return 1 << l.shift() }

// Index returns the slot va selects in a table at level l.
func (l Level) Index(va uint64) int {
	return int(va>>l.shift()) & (EntriesPerTable - 1)
}

func (l Level) String() string {
	switch l {
	case PT:
		return "PT"
	case PD:
		return "PD"
	case PDPT:
		return "PDPT"
	case PML4:
		return "PML4"
	}
	return "Level(?)"
}

// Canonical reports whether bits 63..47 of va are all equal.
func Canonical(va uint64) bool {
	top := va >> 47
	return top == 0 || top == 1<<17-1
}
