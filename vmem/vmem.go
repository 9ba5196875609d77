// Package vmem is the page pool that backs page-table growth.
//
// A Context is a bump allocator over one block of pages reserved up front,
// so the paging code can add tables after general-purpose allocation is gone.
// Pages are never returned.
package vmem

import (
	"fmt"

	"github.com/joshuapare/efimem/bootmem"
	"github.com/joshuapare/efimem/efi"
	"github.com/joshuapare/efimem/internal/buf"
	"github.com/joshuapare/efimem/logger"
)

const (
	// DefaultPageCount is the pool size used when none is given (2 MiB).
	DefaultPageCount = 0x200

	// Ceiling is the bound below which pools are placed.
	Ceiling = efi.Base4GB
)

// Context is a page pool.
//
// NOT thread-safe.
type Context struct {
	base  uint64
	total uint64
	free  uint64
}

// NewContext manages numPages pages at base. The pages must already be
// reserved.
func NewContext(base, numPages uint64) (*Context, error) {
	if numPages == 0 || !efi.IsAligned(base) {
		return nil, fmt.Errorf("vmem: pool of %d pages at 0x%X: %w", numPages, base, efi.ErrInvalidArgument)
	}
	size, ok := buf.MulU64(numPages, efi.PageSize)
	if !ok {
		return nil, fmt.Errorf("vmem: %d pages overflow: %w", numPages, efi.ErrInvalidArgument)
	}
	if _, ok := buf.AddU64(base, size); !ok {
		return nil, fmt.Errorf("vmem: pool at 0x%X wraps: %w", base, efi.ErrInvalidArgument)
	}
	return &Context{base: base, total: numPages, free: numPages}, nil
}

// AllocateMemoryPool reserves numPages of boot-services data as high as
// possible below Ceiling and returns a context over them. numPages 0 means
// DefaultPageCount.
func AllocateMemoryPool(a *bootmem.Allocator, numPages uint64) (*Context, error) {
	if numPages == 0 {
		numPages = DefaultPageCount
	}
	addr := uint64(Ceiling)
	if err := a.AllocatePagesFromTop(efi.BootServicesData, numPages, &addr, nil, nil); err != nil {
		return nil, fmt.Errorf("vmem: reserve %d pages: %w", numPages, err)
	}
	logger.Info("vmem: pool reserved", "base", addr, "pages", numPages)
	return NewContext(addr, numPages)
}

// AllocatePages returns the base of the next n pages. On failure the pool is
// unchanged.
func (c *Context) AllocatePages(n uint64) (uint64, error) {
	if n == 0 {
		return 0, fmt.Errorf("vmem: allocate zero pages: %w", efi.ErrInvalidArgument)
	}
	if n > c.free {
		return 0, fmt.Errorf("vmem: %d pages requested, %d free: %w", n, c.free, efi.ErrResourceExhausted)
	}
	addr := c.base + efi.PagesToSize(c.total-c.free)
	c.free -= n
	return addr, nil
}

// Base returns the first address of the pool.
func (c *Context) Base() uint64 { return c.base }

// TotalPages returns the pool size in pages.
func (c *Context) TotalPages() uint64 { return c.total }

// FreePages returns the number of pages not yet handed out.
func (c *Context) FreePages() uint64 { return c.free }
