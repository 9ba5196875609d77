package bootmem

import "slices"

// RangeChecker vetoes candidate allocations. CheckRange reports whether
// [addr, addr+size) may be allocated.
type RangeChecker interface {
	CheckRange(addr, size uint64) bool
}

// RangeCheckFunc adapts a function to RangeChecker.
type RangeCheckFunc func(addr, size uint64) bool

// CheckRange calls f(addr, size).
func (f RangeCheckFunc) CheckRange(addr, size uint64) bool {
	return f(addr, size)
}

// RangeSkipper is optionally implemented by a RangeChecker that knows where
// the conflict is. SkipBelow returns an address the next candidate must end
// at or below; the allocator then avoids sliding one page at a time.
type RangeSkipper interface {
	SkipBelow(addr, size uint64) uint64
}

// Range is the half-open physical range [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) overlaps(addr, size uint64) bool {
	return addr < r.End && r.Start < addr+size
}

// Exclusions is a set of ranges that must not be allocated.
type Exclusions []Range

// CheckRange implements RangeChecker.
func (e Exclusions) CheckRange(addr, size uint64) bool {
	return !slices.ContainsFunc(e, func(r Range) bool { return r.overlaps(addr, size) })
}

// SkipBelow implements RangeSkipper. It returns the lowest start among the
// exclusions overlapping the candidate.
func (e Exclusions) SkipBelow(addr, size uint64) uint64 {
	below := addr + size
	for _, r := range e {
		if r.overlaps(addr, size) && r.Start < below {
			below = r.Start
		}
	}
	return below
}

var (
	_ RangeChecker = Exclusions(nil)
	_ RangeSkipper = Exclusions(nil)
)
