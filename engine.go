package malloc

import (
	"fmt"
	"math"
)

// maxGrowChunk bounds a single call to Heap.Grow, mirroring the original
// allocator's INT_MAX-chunked calls to its sbrk-like primitive so a huge
// request can't overflow an implementation's internal byte-count type. A
// var, not a const, so tests can shrink it to exercise multi-chunk growth
// and rollback without committing gigabytes of real heap.
var maxGrowChunk = math.MaxInt32

// allocate finds or carves a free block of at least enc+1 payload units
// and returns it marked allocated. enc is the caller's request already
// rounded up to a unit count and expressed as an encoded size (payload
// units minus one).
func (a *Allocator) allocate(enc uint32) (block, error) {
	i := classOf(enc)

	if i < numSmall {
		// Exact classes hold only blocks whose size equals the class
		// index; any head is already the right size.
		if b, ok := a.lists.head(i); ok {
			a.lists.unlink(i, b)
			return a.finishAllocate(b, enc), nil
		}
		return a.allocateFromLarger(i+1, enc)
	}

	if b, ok := a.lists.scanFit(i, enc); ok {
		a.lists.unlink(i, b)
		return a.finishAllocate(b, enc), nil
	}
	return a.allocateFromLarger(i+1, enc)
}

// allocateFromLarger takes the head of the first nonempty class at or
// above start: any block there is, by construction of the class
// boundaries, large enough to satisfy enc. Falls through to extending the
// heap if every larger class is empty too.
func (a *Allocator) allocateFromLarger(start int, enc uint32) (block, error) {
	for i := start; i < numClasses; i++ {
		if b, ok := a.lists.head(i); ok {
			a.lists.unlink(i, b)
			return a.finishAllocate(b, enc), nil
		}
	}
	return a.allocateNext(enc)
}

// finishAllocate carves b down to enc payload units when the leftover is
// large enough to host a legitimate free block of its own, otherwise
// hands the whole block over unsplit, and marks the result allocated.
func (a *Allocator) finishAllocate(b block, enc uint32) block {
	remainder := b.size() - enc
	if remainder >= uint32(a.lay.minBlockUnits()) {
		a.splitBlock(b, enc)
		return b
	}
	b.setFields(b.size(), true, -1)
	if a.lay.hasFooter() {
		a.lay.writeFooter(b)
	}
	return b
}

// splitBlock carves an allocated block of leftEnc payload units off the
// front of b, and returns the remaining tail as a new free block on its
// own size class. b's own size field must already be the pre-split,
// un-carved size.
func (a *Allocator) splitBlock(b block, leftEnc uint32) {
	origEnc := b.size()
	min := uint32(a.lay.minBlockUnits())
	rightEnc := origEnc - leftEnc - min

	leftTotalUnits := int(leftEnc) + a.lay.minBlockUnits()
	rightAddr := b.addr() + uintptr(leftTotalUnits)*unitBytes

	b.setFields(leftEnc, true, -1)
	if a.lay.hasFooter() {
		a.lay.writeFooter(b)
	}

	right := block(rightAddr)
	ci := classOf(rightEnc)
	right.setFields(rightEnc, false, int32(ci))
	if a.lay.hasFooter() {
		a.lay.writeFooter(right)
	}
	a.lists.insertTail(ci, right)
}

// allocateNext extends the heap by exactly enough units for a new block
// of enc payload units and returns it marked allocated.
func (a *Allocator) allocateNext(enc uint32) (block, error) {
	units := int(enc) + a.lay.minBlockUnits()
	addr, err := a.growHeapBy(units)
	if err != nil {
		return 0, err
	}

	b := block(addr)
	b.setFields(enc, true, -1)
	if a.lay.hasFooter() {
		a.lay.writeFooter(b)
	}
	return b, nil
}

// growHeapBy commits units worth of fresh heap space, chunking the
// underlying Heap.Grow calls at maxGrowChunk bytes and rolling the
// reservation back to its prior extent on failure, and returns the
// address of the first new unit.
func (a *Allocator) growHeapBy(units int) (uintptr, error) {
	want := units * unitBytes
	start := a.next
	priorSize := a.heap.Size()
	grown := 0
	for grown < want {
		chunk := want - grown
		if chunk > maxGrowChunk {
			chunk = maxGrowChunk
		}
		if _, err := a.heap.Grow(chunk); err != nil {
			if grown > 0 {
				if rerr := a.heap.Reset(); rerr == nil {
					a.heap.Grow(priorSize)
				}
			}
			a.next = a.heap.Hi()
			return 0, fmt.Errorf("%w: %v", ErrHeapExhausted, err)
		}
		grown += chunk
	}
	a.next = a.heap.Hi()
	return start, nil
}

// freeBlock marks b free and files it on its size class. The allocator
// never coalesces on Free; adjacent free space is only folded back
// together lazily, by Realloc's growth path.
func (a *Allocator) freeBlock(b block) {
	enc := b.size()
	ci := classOf(enc)
	b.setFields(enc, false, int32(ci))
	if a.lay.hasFooter() {
		a.lay.writeFooter(b)
	}
	a.lists.insertTail(ci, b)
}

// nextInHeap returns the block immediately following b in heap address
// order, or ok == false if b is the last block before the heap's current
// top.
func (a *Allocator) nextInHeap(b block) (next block, ok bool) {
	addr := b.addr() + uintptr(a.lay.totalUnits(b))*unitBytes
	if addr >= a.next {
		return 0, false
	}
	return block(addr), true
}
