package malloc

import (
	"fmt"
	"io"
	"unsafe"
)

// Allocator services Malloc, Free and Realloc against a Heap, maintaining
// the eleven segregated free lists and the implicit-heap cursor described
// in the package doc. Construct one with NewSingle or NewDouble; the zero
// value is not ready for use, unlike the host heap it wraps.
type Allocator struct {
	heap  Heap
	next  uintptr
	lists freeLists
	lay   layout
	trace io.Writer

	allocs int // outstanding Malloc/Realloc calls not yet Freed, diagnostics only
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithTrace causes every public entry point to log its arguments and
// result to w, mirroring the teacher library's trace-gated instrumentation
// in Malloc/Free/Realloc.
func WithTrace(w io.Writer) Option {
	return func(a *Allocator) { a.trace = w }
}

// NewSingle builds an allocator over the single-linked heap variant:
// blocks carry a header only, and Realloc coalesces forward only.
func NewSingle(h Heap, opts ...Option) *Allocator {
	return newAllocator(h, singleLayout{}, opts)
}

// NewDouble builds an allocator over the double-linked heap variant:
// blocks additionally carry a boundary-tag footer, enabling backward
// traversal and bidirectional coalescing in Realloc.
func NewDouble(h Heap, opts ...Option) *Allocator {
	return newAllocator(h, doubleLayout{}, opts)
}

func newAllocator(h Heap, lay layout, opts []Option) *Allocator {
	a := &Allocator{heap: h, next: h.Lo(), lay: lay}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Allocator) tracef(format string, args ...interface{}) {
	if a.trace == nil {
		return
	}
	fmt.Fprintf(a.trace, format+"\n", args...)
}

// Malloc allocates n bytes and returns an unaligned-to-caller-type,
// unit-aligned pointer to them, or a non-nil error if the heap could not
// grow far enough. Malloc panics for n < 0, and returns (nil, nil),
// successfully, for n == 0.
func (a *Allocator) Malloc(n int) (unsafe.Pointer, error) {
	if n < 0 {
		panic("malloc: invalid size")
	}
	if n == 0 {
		return nil, nil
	}

	b, err := a.allocate(encodeSize(n))
	if err != nil {
		a.tracef("Malloc(%#x) error=%v", n, err)
		return nil, err
	}

	a.allocs++
	p := unsafe.Pointer(b.payload())
	a.tracef("Malloc(%#x) = %p", n, p)
	return p, nil
}

// Free deallocates the block at p, which must have been returned by
// Malloc or Realloc on this Allocator and not already freed. Free is a
// no-op for a nil p.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	b := a.headerOfPayload(p)
	a.freeBlock(b)
	a.allocs--
	a.tracef("Free(%p)", p)
}

// Realloc resizes the block at p to n bytes, preserving the first
// min(old, n) bytes of content, and returns a pointer to the (possibly
// relocated) block. p == nil behaves like Malloc(n); n == 0 behaves like
// Free(p) and returns nil. On allocation failure during growth, Realloc
// returns (nil, err) and leaves the original block untouched.
func (a *Allocator) Realloc(p unsafe.Pointer, n int) (unsafe.Pointer, error) {
	if p == nil {
		return a.Malloc(n)
	}
	if n == 0 {
		a.Free(p)
		return nil, nil
	}

	b := a.headerOfPayload(p)
	oldEnc := b.size()
	newEnc := encodeSize(n)

	var (
		result unsafe.Pointer
		err    error
	)
	switch {
	case newEnc == oldEnc:
		result = p
	case newEnc < oldEnc:
		a.shrink(b, newEnc)
		result = p
	default:
		result, err = a.grow(b, oldEnc, newEnc, p)
	}

	if err != nil {
		a.tracef("Realloc(%p, %#x) error=%v", p, n, err)
		return nil, err
	}
	a.tracef("Realloc(%p, %#x) = %p", p, n, result)
	return result, nil
}

// headerOfPayload recovers and validates the header of the block backing
// payload pointer p, panicking with a *CorruptionError if p does not
// refer to a currently allocated block.
func (a *Allocator) headerOfPayload(p unsafe.Pointer) block {
	b := block(uintptr(p) - unitBytes)
	if a.lay.hasFooter() && !a.lay.verifyFooter(b) {
		panic(&CorruptionError{Ptr: uintptr(p), Reason: "header/footer mismatch: not a valid block"})
	}
	if !b.isAlloc() {
		panic(&CorruptionError{Ptr: uintptr(p), Reason: "payload of an already-freed block"})
	}
	return b
}
