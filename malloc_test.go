package malloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variants() map[string]func(Heap, ...Option) *Allocator {
	return map[string]func(Heap, ...Option) *Allocator{
		"single": NewSingle,
		"double": NewDouble,
	}
}

func view(p unsafe.Pointer, n int) []byte { return unsafe.Slice((*byte)(p), n) }

func fill(p unsafe.Pointer, n int, seed byte) {
	b := view(p, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func checkFill(t *testing.T, p unsafe.Pointer, n int, seed byte) {
	t.Helper()
	b := view(p, n)
	for i, g := range b {
		require.Equalf(t, seed+byte(i), g, "byte %d", i)
	}
}

func TestMallocZero(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			p, err := a.Malloc(0)
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestMallocNegativePanics(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			assert.Panics(t, func() { a.Malloc(-1) })
		})
	}
}

func TestFreeNilIsNoop(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			assert.NotPanics(t, func() { a.Free(nil) })
		})
	}
}

// TestMallocFreeRoundTrip exercises the size classes up to 31 payload
// units (1 to 200 bytes is 1 to 25 units: the seven exact classes plus the
// 8-15 and 16-31 unit classes) across both layouts, writing and reading
// back a distinct pattern per block before freeing everything.
func TestMallocFreeRoundTrip(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 20))
			var ptrs []unsafe.Pointer
			var sizes []int
			for n := 1; n <= 200; n++ {
				p, err := a.Malloc(n)
				require.NoError(t, err)
				require.NotNil(t, p)
				fill(p, n, byte(n))
				ptrs = append(ptrs, p)
				sizes = append(sizes, n)
			}
			for i, p := range ptrs {
				checkFill(t, p, sizes[i], byte(sizes[i]))
			}
			for _, p := range ptrs {
				a.Free(p)
			}
		})
	}
}

// TestSplitReuse confirms that freeing a large block and then asking for
// two smaller ones is served by splitting the freed space rather than
// growing the heap further.
func TestSplitReuse(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			h := newTestHeap(1 << 16)
			a := ctor(h)

			big, err := a.Malloc(200)
			require.NoError(t, err)
			sizeAfterBig := h.Size()

			a.Free(big)

			p1, err := a.Malloc(16)
			require.NoError(t, err)
			p2, err := a.Malloc(16)
			require.NoError(t, err)

			assert.Equal(t, sizeAfterBig, h.Size(), "reuse of freed space should not grow the heap")
			assert.NotEqual(t, p1, p2)

			a.Free(p1)
			a.Free(p2)
		})
	}
}

func TestReallocEqualClassIsNoop(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			p, err := a.Malloc(10)
			require.NoError(t, err)
			fill(p, 10, 7)

			p2, err := a.Realloc(p, 10)
			require.NoError(t, err)
			assert.Equal(t, p, p2)
			checkFill(t, p2, 10, 7)
		})
	}
}

func TestReallocShrinkThenGrowPreservesContent(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			p, err := a.Malloc(100)
			require.NoError(t, err)
			fill(p, 100, 3)

			p, err = a.Realloc(p, 20)
			require.NoError(t, err)
			checkFill(t, p, 20, 3)

			p, err = a.Realloc(p, 90)
			require.NoError(t, err)
			checkFill(t, p, 20, 3)
		})
	}
}

func TestReallocNilIsMalloc(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			p, err := a.Realloc(nil, 32)
			require.NoError(t, err)
			require.NotNil(t, p)
			a.Free(p)
		})
	}
}

func TestReallocZeroIsFree(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			p, err := a.Malloc(32)
			require.NoError(t, err)
			p2, err := a.Realloc(p, 0)
			require.NoError(t, err)
			assert.Nil(t, p2)
		})
	}
}

// TestReallocForwardCoalesce grows an allocation into an immediately
// following block that has since been freed, without moving it or
// growing the heap.
func TestReallocForwardCoalesce(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			h := newTestHeap(1 << 16)
			a := ctor(h)

			p1, err := a.Malloc(32)
			require.NoError(t, err)
			p2, err := a.Malloc(32)
			require.NoError(t, err)
			fill(p1, 32, 11)

			a.Free(p2)
			sizeBefore := h.Size()

			grown, err := a.Realloc(p1, 48)
			require.NoError(t, err)
			assert.Equal(t, p1, grown, "forward coalesce should grow in place")
			assert.Equal(t, sizeBefore, h.Size(), "forward coalesce should not need more heap")
			checkFill(t, grown, 32, 11)
		})
	}
}

// TestReallocBackwardCoalesce only exercises the double-linked layout's
// backward coalesce: grow a block that is neither at the heap's top nor
// followed by free space, with only a freed predecessor able to supply
// the room.
func TestReallocBackwardCoalesce(t *testing.T) {
	h := newTestHeap(1 << 16)
	a := NewDouble(h)

	p1, err := a.Malloc(32)
	require.NoError(t, err)
	p2, err := a.Malloc(32)
	require.NoError(t, err)
	_, err = a.Malloc(32) // pins p2 away from the heap's top
	require.NoError(t, err)

	fill(p2, 32, 21)
	a.Free(p1)
	sizeBefore := h.Size()

	grown, err := a.Realloc(p2, 48)
	require.NoError(t, err)
	assert.Equal(t, sizeBefore, h.Size(), "backward coalesce should not need more heap")
	checkFill(t, grown, 32, 21)
}

// TestReallocHeapExtend grows the single block sitting at the heap's top,
// which must fall through to extending the heap since there is nothing
// adjacent to absorb.
func TestReallocHeapExtend(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			h := newTestHeap(1 << 16)
			a := ctor(h)

			p, err := a.Malloc(16)
			require.NoError(t, err)
			fill(p, 16, 5)
			sizeBefore := h.Size()

			grown, err := a.Realloc(p, 128)
			require.NoError(t, err)
			assert.Equal(t, p, grown, "heap-extend should grow in place")
			assert.Greater(t, h.Size(), sizeBefore)
			checkFill(t, grown, 16, 5)
		})
	}
}

// TestReallocFallback forces a relocating realloc: two live neighbors on
// both sides leave nothing to coalesce with or extend into.
func TestReallocFallback(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			p1, err := a.Malloc(16)
			require.NoError(t, err)
			p2, err := a.Malloc(16)
			require.NoError(t, err)
			_, err = a.Malloc(16)
			require.NoError(t, err)

			fill(p2, 16, 9)
			grown, err := a.Realloc(p2, 64)
			require.NoError(t, err)
			assert.NotEqual(t, p2, grown)
			checkFill(t, grown, 16, 9)
			_ = p1
		})
	}
}

func TestFreeUnknownPointerPanics(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			var x [64]byte
			assert.Panics(t, func() { a.Free(unsafe.Pointer(&x[unitBytes])) })
		})
	}
}

func TestDoubleFreePanics(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(1 << 16))
			p, err := a.Malloc(16)
			require.NoError(t, err)
			a.Free(p)
			assert.Panics(t, func() { a.Free(p) })
		})
	}
}

func TestHeapExhaustedIsSentinel(t *testing.T) {
	for name, ctor := range variants() {
		t.Run(name, func(t *testing.T) {
			a := ctor(newTestHeap(64))
			_, err := a.Malloc(1 << 20)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrHeapExhausted)
		})
	}
}
