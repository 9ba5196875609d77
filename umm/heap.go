// Package umm is a small heap over a fixed arena, for use once boot services
// can no longer allocate.
//
// The arena is cut into 16-byte blocks. Every block run starts with an 8-byte
// header linking it to its neighbours by block index; free runs also carry
// free-list links in their first body bytes. Block 0 heads the free list and
// the last block terminates the chain, so neither is ever handed out.
package umm

import (
	"fmt"

	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/internal/buf"
	"github.com/joshuapare/efimem/logger"
	"github.com/joshuapare/efimem/phys"
)

const (
	blockSize  = 16
	headerSize = 8

	freeFlag  = 1 << 31
	indexMask = freeFlag - 1

	minBlocks = 3
	maxBlocks = indexMask

	// Alignment is the alignment of the arena base and of every pointer
	// Malloc returns.
	Alignment = 8
)

// header field offsets within a block
const (
	offNext     = 0
	offPrev     = 4
	offNextFree = 8
	offPrevFree = 12
)

// Heap is a fixed-arena allocator. The zero value is an uninitialized heap.
//
// NOT thread-safe.
type Heap struct {
	base   uint64
	arena  []byte
	blocks uint32
}

// SetHeap installs arena, which lives at physical address base, discarding
// any previous heap. Trailing bytes that do not fill a block are unused.
func (h *Heap) SetHeap(base uint64, arena []byte) error {
	n := len(arena) / blockSize
	if n < minBlocks || base%Alignment != 0 {
		return fmt.Errorf("umm: arena of %d bytes at 0x%X: %w", len(arena), base, efi.ErrInvalidArgument)
	}
	n = min(n, maxBlocks)
	if _, ok := buf.AddU64(base, uint64(n)*blockSize); !ok {
		return fmt.Errorf("umm: arena at 0x%X wraps: %w", base, efi.ErrInvalidArgument)
	}

	h.base = base
	h.arena = arena[: n*blockSize : n*blockSize]
	h.blocks = uint32(n)
	buf.Zero(h.arena)

	last := h.blocks - 1
	h.setLink(0, offNext, 1)
	h.setLink(0, offNextFree, 1)
	h.setLink(0, offPrevFree, 1)
	h.setLink(1, offNext, last)
	h.setLink(1, offPrev, 0)
	h.setFree(1, true)
	h.setLink(last, offPrev, 1)
	logger.Debug("umm: heap installed", "base", base, "blocks", n)
	return nil
}

// SetHeapAt installs the size bytes of mem at base as the arena.
func (h *Heap) SetHeapAt(mem phys.Memory, base, size uint64) error {
	b, err := mem.Slice(base, size)
	if err != nil {
		return fmt.Errorf("umm: arena: %w", err)
	}
	return h.SetHeap(base, b)
}

// Initialized reports whether SetHeap has installed an arena.
func (h *Heap) Initialized() bool { return h.arena != nil }

// Malloc returns the address of at least size free bytes.
//
// Returns efi.ErrInvalidArgument for size 0, efi.ErrUnsupported before
// SetHeap and efi.ErrResourceExhausted when no free run is large enough.
func (h *Heap) Malloc(size uint64) (uint64, error) {
	if !h.Initialized() {
		return 0, fmt.Errorf("umm: heap not installed: %w", efi.ErrUnsupported)
	}
	if size == 0 {
		return 0, fmt.Errorf("umm: zero-size allocation: %w", efi.ErrInvalidArgument)
	}
	need, ok := blocksFor(size)
	if !ok {
		return 0, fmt.Errorf("umm: %d bytes: %w", size, efi.ErrResourceExhausted)
	}

	// Best fit; an exact match ends the search.
	var best, bestLen uint32
	for c := h.link(0, offNextFree); c != 0; c = h.link(c, offNextFree) {
		n := h.next(c) - c
		if n >= need && (best == 0 || n < bestLen) {
			best, bestLen = c, n
			if n == need {
				break
			}
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("umm: %d bytes: %w", size, efi.ErrResourceExhausted)
	}

	if bestLen > need {
		// Keep the tail free in best's place on the free list.
		rest := best + need
		after := h.next(best)
		h.setLink(rest, offNext, after)
		h.setLink(rest, offPrev, best)
		h.setLink(after, offPrev, rest)
		h.setNext(best, rest)

		nf, pf := h.link(best, offNextFree), h.link(best, offPrevFree)
		h.setLink(rest, offNextFree, nf)
		h.setLink(rest, offPrevFree, pf)
		h.setLink(pf, offNextFree, rest)
		h.setLink(nf, offPrevFree, rest)
		h.setFree(rest, true)
		h.setFree(best, false)
	} else {
		h.unlinkFree(best)
	}
	return h.pointer(best), nil
}

// Free releases ptr. A zero ptr is a no-op that succeeds. Free reports false
// and leaves the heap untouched when ptr is not a live allocation of h.
func (h *Heap) Free(ptr uint64) bool {
	if ptr == 0 {
		return true
	}
	c, ok := h.lookup(ptr)
	if !ok {
		logger.Warn("umm: rejected free of foreign or released pointer", "ptr", ptr)
		return false
	}

	if n := h.next(c); h.isFree(n) {
		h.unlinkFree(n)
		h.absorbNext(c)
	}
	if p := h.link(c, offPrev); p != 0 && h.isFree(p) {
		h.absorbNext(p)
		return true
	}
	h.pushFree(c)
	return true
}

// Bytes returns the first n bytes of the live allocation at ptr.
func (h *Heap) Bytes(ptr, n uint64) ([]byte, error) {
	c, ok := h.lookup(ptr)
	if !ok {
		return nil, fmt.Errorf("umm: 0x%X is not allocated: %w", ptr, efi.ErrInvalidArgument)
	}
	if capacity := uint64(h.next(c)-c)*blockSize - headerSize; n > capacity {
		return nil, fmt.Errorf("umm: %d bytes exceed the %d byte allocation: %w", n, capacity, efi.ErrInvalidArgument)
	}
	off := uint64(c)*blockSize + headerSize
	return h.arena[off : off+n : off+n], nil
}

// Stats describes heap occupancy. Blocks are 16 bytes.
type Stats struct {
	UsedEntries int
	FreeEntries int
	UsedBlocks  uint64
	FreeBlocks  uint64
}

// FreeBytes returns the total size of the free runs, headers included.
func (s Stats) FreeBytes() uint64 { return s.FreeBlocks * blockSize }

// Stats walks the block chain.
func (h *Heap) Stats() Stats {
	var s Stats
	if !h.Initialized() {
		return s
	}
	for c := h.next(0); c != h.blocks-1; c = h.next(c) {
		n := uint64(h.next(c) - c)
		if h.isFree(c) {
			s.FreeEntries++
			s.FreeBlocks += n
		} else {
			s.UsedEntries++
			s.UsedBlocks += n
		}
	}
	return s
}

// blocksFor returns the run length holding size bytes after the header.
func blocksFor(size uint64) (uint32, bool) {
	if size > uint64(maxBlocks)*blockSize {
		return 0, false
	}
	if size <= blockSize-headerSize {
		return 1, true
	}
	return uint32(1 + (size-(blockSize-headerSize)+blockSize-1)/blockSize), true
}

func (h *Heap) pointer(c uint32) uint64 {
	return h.base + uint64(c)*blockSize + headerSize
}

// lookup maps ptr to the run it starts, if that run is allocated.
func (h *Heap) lookup(ptr uint64) (uint32, bool) {
	if !h.Initialized() || ptr < h.base+headerSize {
		return 0, false
	}
	off := ptr - h.base - headerSize
	if off%blockSize != 0 {
		return 0, false
	}
	idx := off / blockSize
	if idx == 0 || idx >= uint64(h.blocks-1) {
		return 0, false
	}
	c := uint32(idx)
	for b := h.next(0); b != 0 && b <= c; b = h.next(b) {
		if b == c {
			return c, !h.isFree(c)
		}
	}
	return 0, false
}

func (h *Heap) link(c uint32, off int) uint32 {
	return buf.U32LE(h.arena[int(c)*blockSize+off:])
}

func (h *Heap) setLink(c uint32, off int, v uint32) {
	buf.PutU32LE(h.arena[int(c)*blockSize+off:], v)
}

func (h *Heap) next(c uint32) uint32 { return h.link(c, offNext) & indexMask }

func (h *Heap) isFree(c uint32) bool { return h.link(c, offNext)&freeFlag != 0 }

// setNext changes the chain link and keeps the free flag.
func (h *Heap) setNext(c, n uint32) {
	h.setLink(c, offNext, h.link(c, offNext)&freeFlag|n)
}

func (h *Heap) setFree(c uint32, free bool) {
	v := h.link(c, offNext) & indexMask
	if free {
		v |= freeFlag
	}
	h.setLink(c, offNext, v)
}

// absorbNext merges the run after c into c.
func (h *Heap) absorbNext(c uint32) {
	after := h.next(h.next(c))
	h.setNext(c, after)
	h.setLink(after, offPrev, c)
}

func (h *Heap) pushFree(c uint32) {
	first := h.link(0, offNextFree)
	h.setLink(c, offNextFree, first)
	h.setLink(c, offPrevFree, 0)
	h.setLink(first, offPrevFree, c)
	h.setLink(0, offNextFree, c)
	h.setFree(c, true)
}

func (h *Heap) unlinkFree(c uint32) {
	nf, pf := h.link(c, offNextFree), h.link(c, offPrevFree)
	h.setLink(pf, offNextFree, nf)
	h.setLink(nf, offPrevFree, pf)
	h.setFree(c, false)
}
