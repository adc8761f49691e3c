package malloc

// Heap is the narrow host memory primitive the allocator is built against:
// a contiguous, monotonically extensible byte region, analogous to sbrk.
// See package sandbox for an OS-backed implementation.
//
// Addresses returned by Lo and Grow must be stable for the lifetime of the
// Heap and must not be moved or reclaimed by a garbage collector: the
// allocator dereferences them directly via unsafe.Pointer.
type Heap interface {
	// Lo is the start address of the reservation. Stable across the
	// Heap's lifetime.
	Lo() uintptr
	// Hi is one past the last valid, committed byte.
	Hi() uintptr
	// Size is the number of bytes currently committed (Hi - Lo).
	Size() int
	// Grow commits bytes additional bytes at the current Hi and returns
	// the address of the first new byte. The allocator may call Grow
	// multiple times in a row for a single logical request if Grow
	// enforces a smaller per-call maximum.
	Grow(bytes int) (uintptr, error)
	// Reset releases every committed byte, shrinking the reservation back
	// to empty. Used only to roll back a failed multi-part Grow.
	Reset() error
}
