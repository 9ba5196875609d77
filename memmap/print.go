package memmap

import (
	"io"
	"sort"

	"github.com/joshuapare/efimem/efi"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Fprint writes a human-readable dump of s to w: a header line, one row per
// descriptor and a per-type page summary. Counts are digit-grouped.
func Fprint(w io.Writer, s *Snapshot) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "Memory map: %d descriptors, %d bytes, stride %d, version %d, key 0x%X\n",
		s.Len(), s.Size, s.DescriptorSize, s.DescriptorVersion, s.MapKey); err != nil {
		return err
	}

	totals := make(map[efi.MemoryType]uint64)
	for i, d := range s.All() {
		if _, err := p.Fprintf(w, "%4d  %-20s %016X-%016X %12d pages  %s\n",
			i, d.Type.String(), d.PhysicalStart, d.Last(), d.NumberOfPages, d.Attribute.String()); err != nil {
			return err
		}
		totals[d.Type] += d.NumberOfPages
	}

	types := make([]efi.MemoryType, 0, len(totals))
	for t := range totals {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	runtimePages, runtimeCount := CountRuntimePages(s)
	if _, err := p.Fprintf(w, "Summary (%d runtime pages in %d descriptors):\n", runtimePages, runtimeCount); err != nil {
		return err
	}
	for _, t := range types {
		if _, err := p.Fprintf(w, "  %-20s %12d pages %14d KiB\n",
			t.String(), totals[t], efi.PagesToSize(totals[t])/1024); err != nil {
			return err
		}
	}
	return nil
}
