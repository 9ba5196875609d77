// Package efi holds the UEFI vocabulary shared by the rest of efimem: memory
// types and attributes, the memory descriptor record and its wire layout,
// page arithmetic, the error taxonomy, and the boot-environment capabilities
// the library consumes.
//
// # Capabilities
//
// Nothing in efimem talks to firmware directly. The boot environment is
// injected through two small interfaces:
//
//   - MapFetcher: the GetMemoryMap size-then-fill protocol
//   - BootServices: MapFetcher plus AllocatePages / FreePages
//
// The firmware package provides a software implementation of both for tests
// and host-side tooling.
//
// # Errors
//
// All packages report failures by wrapping one of the sentinel errors below,
// so callers can classify any failure with errors.Is:
//
//	if errors.Is(err, efi.ErrResourceExhausted) {
//	    // retry with fewer pages
//	}
package efi
