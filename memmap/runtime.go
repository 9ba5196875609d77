package memmap

// CountRuntimePages returns the total number of pages in descriptors flagged
// with EFI_MEMORY_RUNTIME and how many such descriptors there are.
func CountRuntimePages(s *Snapshot) (pages uint64, count int) {
	for _, d := range s.All() {
		if d.IsRuntime() {
			pages += d.NumberOfPages
			count++
		}
	}
	return pages, count
}
