package malloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// checkHeapInvariants walks the live heap from lo to the allocator's
// current top and checks the structural properties that must hold after
// any sequence of Malloc/Free/Realloc calls: every block is unit-aligned
// and accounted for by the walk (no overrun, no gap), a double-linked
// block's footer still agrees with its header, every free block's class
// index matches its size, and the set of free blocks the walk finds is
// exactly the set reachable by traversing the size-class lists.
func checkHeapInvariants(t *testing.T, a *Allocator) {
	t.Helper()

	lo := a.heap.Lo()
	top := a.next
	require.Zerof(t, lo%unitBytes, "heap_lo %#x is not unit-aligned", lo)
	require.Zerof(t, top%unitBytes, "heap top %#x is not unit-aligned", top)

	freeByWalk := map[uintptr]int32{}
	addr := lo
	for addr < top {
		require.Zerof(t, addr%unitBytes, "block at %#x is not unit-aligned", addr)
		b := block(addr)
		if a.lay.hasFooter() {
			require.Truef(t, a.lay.verifyFooter(b), "block at %#x: footer disagrees with header", addr)
		}
		if !b.isAlloc() {
			ci := b.classIndex()
			require.Equalf(t, classOf(b.size()), int(ci), "block at %#x: stale class index %d", addr, ci)
			freeByWalk[addr] = ci
		}
		total := a.lay.totalUnits(b)
		require.Greaterf(t, total, 0, "block at %#x: non-positive footprint", addr)
		next := addr + uintptr(total)*unitBytes
		require.LessOrEqualf(t, next, top, "block at %#x overruns the heap's top", addr)
		addr = next
	}
	require.Equalf(t, top, addr, "heap walk must land exactly on the heap's top, not stop short or run past it")

	freeByList := map[uintptr]int32{}
	for i := 0; i < numClasses; i++ {
		for a2 := a.lists.heads[i]; a2 != 0; a2 = block(a2).linkNext() {
			require.Falsef(t, block(a2).isAlloc(), "class %d list contains an allocated block at %#x", i, a2)
			freeByList[a2] = int32(i)
		}
	}
	require.Equalf(t, freeByWalk, freeByList, "free blocks found by walking the heap must match free-list membership exactly")
}
