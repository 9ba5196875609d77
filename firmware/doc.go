// Package firmware is a software boot environment.
//
// Sim implements efi.BootServices over an ordered descriptor list with a map
// key that changes on every mutation, following the allocation rules of the
// EDK II page allocator closely enough for the library's algorithms to be
// exercised on a development host. CPU holds a CR3 register. Machine bundles
// both with a phys.RAM covering the simulated physical range.
//
//	m, err := firmware.NewMachine([]efi.Descriptor{
//	    {Type: efi.ConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 0x100},
//	}, nil)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
// Hooks in Options let tests inject concurrent map changes between the
// library's calls.
//
// # Thread Safety
//
// Nothing here is safe for concurrent use, matching the single-threaded
// boot environment it stands in for.
package firmware
