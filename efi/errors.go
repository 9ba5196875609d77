package efi

import "errors"

var (
	// ErrResourceExhausted indicates no memory, pages or heap space was available,
	// or the memory map kept growing past the bounded number of retries.
	ErrResourceExhausted = errors.New("efi: out of resources")

	// ErrNotFound indicates no region satisfied the allocation constraints, or a
	// page-table walk reached an absent entry.
	ErrNotFound = errors.New("efi: not found")

	// ErrInvalidArgument indicates a misaligned address, a zero-sized request or
	// a malformed snapshot.
	ErrInvalidArgument = errors.New("efi: invalid argument")

	// ErrUnsupported indicates the request needs something the table format
	// cannot encode.
	ErrUnsupported = errors.New("efi: unsupported")

	// ErrBufferTooSmall is returned by MapFetcher when the buffer cannot hold the
	// map. The accompanying MapInfo.Size carries the required size.
	ErrBufferTooSmall = errors.New("efi: buffer too small")

	// ErrMapChanged indicates the memory map changed between the snapshot a
	// decision was based on and the call that acted on it.
	ErrMapChanged = errors.New("efi: memory map changed")
)
