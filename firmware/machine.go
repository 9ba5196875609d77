package firmware

import (
	"fmt"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/phys"
)

// Machine is a simulated platform: boot services, the RAM behind them and a
// CPU.
type Machine struct {
	Boot *Sim
	RAM  *phys.RAM
	CPU  *CPU
}

// NewMachine creates boot services over descs and backs the physical range
// spanned by every non-MMIO descriptor with zeroed RAM.
func NewMachine(descs []efi.Descriptor, opts *Options) (*Machine, error) {
	sim, err := NewSim(descs, opts)
	if err != nil {
		return nil, err
	}

	var lo, hi uint64
	found := false
	for _, d := range descs {
		if d.Type == efi.MemoryMappedIO || d.Type == efi.MemoryMappedIOPortSpace {
			continue
		}
		if !found || d.PhysicalStart < lo {
			lo = d.PhysicalStart
		}
		if !found || d.End() > hi {
			hi = d.End()
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("firmware: no RAM descriptors: %w", efi.ErrInvalidArgument)
	}

	ram, err := phys.NewRAM(lo, hi-lo)
	if err != nil {
		return nil, err
	}
	return &Machine{Boot: sim, RAM: ram, CPU: &CPU{}}, nil
}

// Close releases the machine's RAM.
func (m *Machine) Close() error {
	return m.RAM.Close()
}
