package efi

import (
	"fmt"
	"strings"
)

// MemoryType is the EFI_MEMORY_TYPE use-class of a memory region.
type MemoryType uint32

const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	UnacceptedMemoryType
	MaxMemoryType
)

var memoryTypeNames = [...]string{
	ReservedMemoryType:      "Reserved",
	LoaderCode:              "LoaderCode",
	LoaderData:              "LoaderData",
	BootServicesCode:        "BootServicesCode",
	BootServicesData:        "BootServicesData",
	RuntimeServicesCode:     "RuntimeServicesCode",
	RuntimeServicesData:     "RuntimeServicesData",
	ConventionalMemory:      "Conventional",
	UnusableMemory:          "Unusable",
	ACPIReclaimMemory:       "ACPIReclaim",
	ACPIMemoryNVS:           "ACPINVS",
	MemoryMappedIO:          "MMIO",
	MemoryMappedIOPortSpace: "MMIOPortSpace",
	PalCode:                 "PalCode",
	PersistentMemory:        "Persistent",
	UnacceptedMemoryType:    "Unaccepted",
}

func (t MemoryType) String() string {
	if t < MaxMemoryType {
		return memoryTypeNames[t]
	}
	return fmt.Sprintf("MemoryType(0x%X)", uint32(t))
}

// IsRuntime reports whether regions of this type must stay mapped for the
// operating system after ExitBootServices.
func (t MemoryType) IsRuntime() bool {
	switch t {
	case RuntimeServicesCode, RuntimeServicesData, MemoryMappedIO, MemoryMappedIOPortSpace:
		return true
	}
	return false
}

// Attribute holds the EFI_MEMORY_* capability bits of a descriptor.
type Attribute uint64

const (
	AttrUC           Attribute = 0x0000000000000001
	AttrWC           Attribute = 0x0000000000000002
	AttrWT           Attribute = 0x0000000000000004
	AttrWB           Attribute = 0x0000000000000008
	AttrUCE          Attribute = 0x0000000000000010
	AttrWP           Attribute = 0x0000000000001000
	AttrRP           Attribute = 0x0000000000002000
	AttrXP           Attribute = 0x0000000000004000
	AttrNV           Attribute = 0x0000000000008000
	AttrMoreReliable Attribute = 0x0000000000010000
	AttrRO           Attribute = 0x0000000000020000
	AttrSP           Attribute = 0x0000000000040000
	AttrCPUCrypto    Attribute = 0x0000000000080000
	AttrRuntime      Attribute = 0x8000000000000000
)

var attributeNames = []struct {
	bit  Attribute
	name string
}{
	{AttrUC, "UC"},
	{AttrWC, "WC"},
	{AttrWT, "WT"},
	{AttrWB, "WB"},
	{AttrUCE, "UCE"},
	{AttrWP, "WP"},
	{AttrRP, "RP"},
	{AttrXP, "XP"},
	{AttrNV, "NV"},
	{AttrMoreReliable, "MR"},
	{AttrRO, "RO"},
	{AttrSP, "SP"},
	{AttrCPUCrypto, "CC"},
	{AttrRuntime, "RT"},
}

// Has reports whether all bits of mask are set.
func (a Attribute) Has(mask Attribute) bool {
	return a&mask == mask
}

func (a Attribute) String() string {
	if a == 0 {
		return "-"
	}
	var parts []string
	rest := a
	for _, n := range attributeNames {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

// AllocateType selects how AllocatePages interprets its address argument.
type AllocateType int

const (
	// AllocateAnyPages places the allocation anywhere.
	AllocateAnyPages AllocateType = iota
	// AllocateMaxAddress places the allocation entirely at or below the address.
	AllocateMaxAddress
	// AllocateAddress places the allocation exactly at the address.
	AllocateAddress
	MaxAllocateType
)
