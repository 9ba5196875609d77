package buf

import (
	"fmt"
	"math"
)

// AddU64 adds a and b, returning ok = false when the sum wraps.
func AddU64(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// MulU64 multiplies a and b, returning ok = false when the product wraps.
func MulU64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// Window translates the absolute range [addr, addr+n) into offsets of a
// buffer that starts at base and holds size bytes. It fails when the range
// wraps or does not lie entirely inside the buffer.
func Window(base, size, addr, n uint64) (lo, hi uint64, err error) {
	end, ok := AddU64(addr, n)
	if !ok {
		return 0, 0, fmt.Errorf("overflow: addr=0x%X + len=0x%X", addr, n)
	}
	limit, ok := AddU64(base, size)
	if !ok {
		return 0, 0, fmt.Errorf("overflow: base=0x%X + size=0x%X", base, size)
	}
	if addr < base || end > limit {
		return 0, 0, fmt.Errorf("bounds: [0x%X, 0x%X) outside [0x%X, 0x%X)", addr, end, base, limit)
	}
	return addr - base, end - base, nil
}

// CheckRecords validates that count records of stride bytes fit in a buffer of
// bufLen bytes. stride must be at least minStride so every record can hold its
// fixed fields.
//
//	if err := buf.CheckRecords(len(data), n, stride, 40); err != nil {
//	    return fmt.Errorf("memmap: %w", err)
//	}
func CheckRecords(bufLen, count, stride, minStride int) error {
	if count < 0 {
		return fmt.Errorf("negative count: %d", count)
	}
	if stride < minStride {
		return fmt.Errorf("stride %d below minimum %d", stride, minStride)
	}
	total, ok := MulU64(uint64(count), uint64(stride))
	if !ok || total > uint64(bufLen) {
		return fmt.Errorf("bounds: %d records of %d bytes exceed len=%d", count, stride, bufLen)
	}
	return nil
}
