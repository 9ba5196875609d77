package bootmem

const (
	// DefaultMaxMapRetries bounds how often a memory-map fill is retried after
	// the map outgrew the buffer.
	DefaultMaxMapRetries = 8

	// DefaultMaxAllocRetries bounds how often a top-down scan is repeated after
	// boot services rejected the chosen address.
	DefaultMaxAllocRetries = 8

	// DefaultMapHeadroomDescriptors is the number of extra descriptors every
	// map buffer is sized for.
	DefaultMapHeadroomDescriptors = 8
)

// Options configures an Allocator.
//
// Use DefaultOptions() for production-ready defaults.
type Options struct {
	// MaxMapRetries bounds GetMemoryMap fill attempts.
	// Default: 8
	MaxMapRetries int

	// MaxAllocRetries bounds top-down scans per allocation.
	// Default: 8
	MaxAllocRetries int

	// MapHeadroomDescriptors is the spare capacity, in descriptors, added to
	// every map buffer on top of the reported size. Negative means none.
	// Default: 8
	MapHeadroomDescriptors int
}

// DefaultOptions returns the default bounds.
func DefaultOptions() Options {
	return Options{
		MaxMapRetries:          DefaultMaxMapRetries,
		MaxAllocRetries:        DefaultMaxAllocRetries,
		MapHeadroomDescriptors: DefaultMapHeadroomDescriptors,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxMapRetries <= 0 {
		o.MaxMapRetries = d.MaxMapRetries
	}
	if o.MaxAllocRetries <= 0 {
		o.MaxAllocRetries = d.MaxAllocRetries
	}
	switch {
	case o.MapHeadroomDescriptors == 0:
		o.MapHeadroomDescriptors = d.MapHeadroomDescriptors
	case o.MapHeadroomDescriptors < 0:
		o.MapHeadroomDescriptors = 0
	}
	return o
}
