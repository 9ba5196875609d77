package paging

import (
	"fmt"
	"strings"
)

// Entry is a 64-bit page-table entry.
type Entry uint64

// Entry bits.
const (
	Present      Entry = 1 << 0
	ReadWrite    Entry = 1 << 1
	User         Entry = 1 << 2
	WriteThrough Entry = 1 << 3
	CacheDisable Entry = 1 << 4
	Accessed     Entry = 1 << 5
	Dirty        Entry = 1 << 6
	PageSize     Entry = 1 << 7
	Global       Entry = 1 << 8
	NoExecute    Entry = 1 << 63

	// PATLarge is the PAT bit of a 2 MiB or 1 GiB leaf.
	PATLarge Entry = 1 << 12
	// PAT4K is the PAT bit of a 4 KiB leaf; it shares bit 7 with PageSize.
	PAT4K Entry = 1 << 7
)

// AddressMask selects bits 12-51, the frame address of a 4 KiB page or of the
// next-level table.
const AddressMask uint64 = 0x000F_FFFF_FFFF_F000

// DefaultLeaf is the policy installed for new 4 KiB mappings.
const DefaultLeaf = Present | ReadWrite

// DefaultLink is the policy of entries pointing at a new table.
const DefaultLink = Present | ReadWrite

// Present reports whether the P bit is set.
func (e Entry) Present() bool { return e&Present != 0 }

// Large reports whether the PS bit is set. Only meaningful above the PT level.
func (e Entry) Large() bool { return e&PageSize != 0 }

// Address returns the 4 KiB-aligned frame address.
func (e Entry) Address() uint64 { return uint64(e) & AddressMask }

// Flags returns everything except the frame address.
func (e Entry) Flags() Entry { return e &^ Entry(AddressMask) }

// LargeAddress returns the frame of a large leaf at level l, dropping the
// PAT bit and the reserved low bits.
func (e Entry) LargeAddress(l Level) uint64 {
	return uint64(e) & AddressMask &^ (l.PageSize() - 1)
}

var entryBits = []struct {
	bit  Entry
	name string
}{
	{Present, "P"}, {ReadWrite, "RW"}, {User, "US"}, {WriteThrough, "PWT"},
	{CacheDisable, "PCD"}, {Accessed, "A"}, {Dirty, "D"}, {PageSize, "PS"},
	{Global, "G"}, {NoExecute, "NX"},
}

// String formats the entry as "0xADDR[P|RW|...]".
func (e Entry) String() string {
	var names []string
	for _, b := range entryBits {
		if e&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	return fmt.Sprintf("0x%X[%s]", e.Address(), strings.Join(names, "|"))
}
