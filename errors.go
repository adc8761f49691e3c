package malloc

import (
	"errors"
	"fmt"
)

// ErrHeapExhausted is returned, possibly wrapped, by Malloc and Realloc
// when the host Heap cannot grow far enough to satisfy a request. The
// allocator's own state is left exactly as it was before the call.
var ErrHeapExhausted = errors.New("malloc: heap exhausted")

// CorruptionError is the diagnostic panic value raised when Free or
// Realloc is handed a pointer that does not refer to a currently
// allocated block: a pointer never returned by this allocator, one
// already freed, or one whose boundary tag (double-linked layout) no
// longer agrees with its header. Per the package's error model this is a
// caller contract violation, not a recoverable condition.
type CorruptionError struct {
	Ptr    uintptr
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("malloc: %#x: %s", e.Ptr, e.Reason)
}
