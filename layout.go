package malloc

import "unsafe"

// layout abstracts the one structural difference between the two heap
// variants named in the spec: whether a block carries a boundary-tag
// footer, and therefore whether backward traversal is possible at all.
type layout interface {
	// minBlockUnits is the total unit count of a block with a zero-valued
	// size field (one payload unit): 2 for the single-linked heap, 3 for
	// the double-linked one (header, +1 payload, +footer).
	minBlockUnits() int
	hasFooter() bool
	// totalUnits returns a block's footprint in the heap, header through
	// footer (if any) inclusive.
	totalUnits(b block) int
	// writeFooter mirrors b's header into its footer. A no-op for the
	// single-linked layout.
	writeFooter(b block)
	// verifyFooter reports whether a block's footer still agrees with its
	// header. Always true for the single-linked layout, which has none.
	verifyFooter(b block) bool
	// prevInHeap returns the block immediately preceding b in heap order,
	// using its footer to recover the size. ok is false at heap_lo or for
	// the single-linked layout, which cannot traverse backward.
	prevInHeap(heapLo uintptr, b block) (prev block, ok bool)
}

type singleLayout struct{}

func (singleLayout) minBlockUnits() int { return 2 }
func (singleLayout) hasFooter() bool    { return false }

func (singleLayout) totalUnits(b block) int { return int(b.size()) + 2 }

func (singleLayout) writeFooter(block) {}

func (singleLayout) verifyFooter(block) bool { return true }

func (singleLayout) prevInHeap(uintptr, block) (block, bool) { return 0, false }

type doubleLayout struct{}

func (doubleLayout) minBlockUnits() int { return 3 }
func (doubleLayout) hasFooter() bool    { return true }

func (doubleLayout) totalUnits(b block) int { return int(b.size()) + 3 }

// footerAddr is the unit immediately after the payload: header (1 unit) +
// payload (size+1 units).
func (doubleLayout) footerAddr(b block) uintptr {
	return b.addr() + uintptr(b.size()+2)*unitBytes
}

func (d doubleLayout) writeFooter(b block) {
	*(*uint64)(unsafe.Pointer(d.footerAddr(b))) = b.headerWord()
}

func (d doubleLayout) verifyFooter(b block) bool {
	return *(*uint64)(unsafe.Pointer(d.footerAddr(b))) == b.headerWord()
}

func (d doubleLayout) prevInHeap(heapLo uintptr, b block) (block, bool) {
	if b.addr() == heapLo {
		return 0, false
	}
	footerWord := *(*uint64)(unsafe.Pointer(b.addr() - unitBytes))
	prevSize, _, _ := unpackHeader(footerWord)
	prevAddr := b.addr() - uintptr(prevSize+3)*unitBytes
	return block(prevAddr), true
}
