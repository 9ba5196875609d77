package paging

// CPU is the control-register capability.
type CPU interface {
	ReadCR3() uint64
	WriteCR3(v uint64)
}

// CR3 bits besides the root address.
const (
	CR3WriteThrough = uint64(WriteThrough)
	CR3CacheDisable = uint64(CacheDisable)
)

// CurrentPageTable returns the active PML4 address and its PWT/PCD cache
// flags.
func CurrentPageTable(cpu CPU) (root, flags uint64) {
	cr3 := cpu.ReadCR3()
	return cr3 & AddressMask, cr3 & (CR3WriteThrough | CR3CacheDisable)
}
