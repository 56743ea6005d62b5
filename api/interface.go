// Package api define types and interfaces consumed by the rest of the
// engine, ingest and query paths, to allocate small objects. Consumers
// shall depend only on this package and on the handle they obtain from
// the allocator instance owned by the process.
package api

// Mallocer interface for custom memory management. A Mallocer is bound
// to a single goroutine and is not safe for concurrent use, each
// goroutine shall obtain its own.
type Mallocer interface {
	// Alloc allocate a block of atleast `size` bytes whose address is
	// aligned to `align`, which must be zero or a power of two. Return
	// ErrorOutofMemory like errors only when the process cannot supply
	// more memory.
	Alloc(size, align int64) (Pointer, error)

	// Free block allocated via Alloc. Freeing a pointer that was not
	// obtained from the same allocator instance, or freeing it twice, is
	// a contract violation.
	Free(ptr Pointer)

	// Bytes return the memory backing `ptr`. Returned slice is valid
	// until `ptr` is freed.
	Bytes(ptr Pointer) []byte

	Epocher
}

// Epocher interface to bracket read operations that hold on to
// allocator memory across a potential reclamation window. Calls shall
// be paired.
type Epocher interface {
	// Enterepoch start observing the current epoch.
	Enterepoch()

	// Leaveepoch stop observing.
	Leaveepoch()
}
