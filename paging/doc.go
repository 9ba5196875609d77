// Package paging walks and extends x86-64 4-level page tables.
//
// Tables are reached through a phys.Memory, so the same code runs against
// real identity-mapped memory or a host-backed phys.RAM. The Mapper only
// ever adds or replaces translations; there is no unmap. It never flushes
// the TLB on its own: call FlushCaches once a batch of changes is complete.
package paging
