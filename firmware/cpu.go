package firmware

// CPU holds the control register state the paging code reads and writes.
type CPU struct {
	// CR3 is the page-table base register including the PWT/PCD bits.
	CR3 uint64

	// Reloads counts writes to CR3, i.e. TLB flushes.
	Reloads int
}

// ReadCR3 returns CR3.
func (c *CPU) ReadCR3() uint64 { return c.CR3 }

// WriteCR3 loads CR3, flushing non-global translations.
func (c *CPU) WriteCR3(v uint64) {
	c.CR3 = v
	c.Reloads++
}
