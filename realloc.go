package malloc

import "unsafe"

// shrink carves the tail off an allocated block down to newEnc payload
// units, filing the remainder as free, when the remainder is large enough
// to stand as a block of its own. Otherwise the block is left at its
// current size; Realloc's contract only promises at-least-n bytes.
func (a *Allocator) shrink(b block, newEnc uint32) {
	if excess := b.size() - newEnc; excess >= uint32(a.lay.minBlockUnits()) {
		a.splitBlock(b, newEnc)
	}
}

// growPlan is the outcome of a read-only survey of the space available to
// grow a block in place, computed by planGrow and carried out by
// commitGrow. Keeping survey and mutation separate means the one step
// that can fail — extending the heap — always happens before anything is
// unlinked from a free list, so a failed grow never leaves the allocator
// needing to roll anything back.
type growPlan struct {
	useBackward bool
	backNeed    uint32
	growUnits   int
	finalEnc    uint32
}

// planGrow surveys the free space immediately surrounding b — forward
// always, and backward too when the layout carries boundary tags — and
// reports whether newEnc payload units are reachable by some combination
// of absorbing that space and extending the heap, without mutating
// anything.
func (a *Allocator) planGrow(b block, oldEnc, newEnc uint32, top uintptr) (growPlan, bool) {
	addrAfterB := b.addr() + uintptr(a.lay.totalUnits(b))*unitBytes
	fwdUnits, reachedTop := a.scanForward(addrAfterB, top, false)
	haveEnc := oldEnc + fwdUnits
	need := newEnc

	if haveEnc >= need {
		return growPlan{finalEnc: haveEnc}, true
	}

	if a.lay.hasFooter() {
		backNeed := need - haveEnc
		_, gained := a.scanBackward(b, backNeed, false)
		total := haveEnc + gained
		if total >= need {
			return growPlan{useBackward: true, backNeed: backNeed, finalEnc: total}, true
		}
		if reachedTop {
			return growPlan{useBackward: true, backNeed: backNeed, growUnits: int(need - total), finalEnc: need}, true
		}
		return growPlan{}, false
	}

	if reachedTop {
		return growPlan{growUnits: int(need - haveEnc), finalEnc: need}, true
	}
	return growPlan{}, false
}

// commitGrow replays the same deterministic walk planGrow surveyed, this
// time actually unlinking absorbed blocks (and, for the backward edge,
// splitting off whatever of it wasn't needed), and returns the merged,
// freshly-allocated block.
func (a *Allocator) commitGrow(b block, plan growPlan, top uintptr) block {
	addrAfterB := b.addr() + uintptr(a.lay.totalUnits(b))*unitBytes
	a.scanForward(addrAfterB, top, true)

	left := b
	if plan.useBackward {
		left, _ = a.scanBackward(b, plan.backNeed, true)
	}

	left.setFields(plan.finalEnc, true, -1)
	if a.lay.hasFooter() {
		a.lay.writeFooter(left)
	}
	return left
}

// grow implements Realloc's GROW case: it tries, in order, pure forward
// coalescing, backward-plus-forward coalescing (double-linked layout
// only), and extending the heap at the block's trailing edge, before
// falling back to a fresh allocation elsewhere with a copy.
func (a *Allocator) grow(b block, oldEnc, newEnc uint32, p unsafe.Pointer) (unsafe.Pointer, error) {
	top := a.next

	plan, ok := a.planGrow(b, oldEnc, newEnc, top)
	if !ok {
		return a.reallocFallback(b, oldEnc, newEnc, p)
	}
	if plan.growUnits > 0 {
		if _, err := a.growHeapBy(plan.growUnits); err != nil {
			return a.reallocFallback(b, oldEnc, newEnc, p)
		}
	}

	left := a.commitGrow(b, plan, top)
	if excess := left.size() - newEnc; excess >= uint32(a.lay.minBlockUnits()) {
		a.splitBlock(left, newEnc)
	}

	newPayload := unsafe.Pointer(left.payload())
	if left.addr() != b.addr() {
		moveBytes(newPayload, p, payloadBytes(oldEnc))
	}
	return newPayload, nil
}

// reallocFallback services a GROW that could not be satisfied in place:
// it allocates a fresh block of the requested size elsewhere, copies over
// min(old, new) bytes of content, and frees the original block.
func (a *Allocator) reallocFallback(b block, oldEnc, newEnc uint32, p unsafe.Pointer) (unsafe.Pointer, error) {
	nb, err := a.allocate(newEnc)
	if err != nil {
		return nil, err
	}

	n := payloadBytes(oldEnc)
	if nn := payloadBytes(newEnc); nn < n {
		n = nn
	}
	newPayload := unsafe.Pointer(nb.payload())
	moveBytes(newPayload, p, n)

	a.freeBlock(b)
	return newPayload, nil
}

// scanForward walks the free run starting at address from, up to the
// exclusive bound top, stopping at the first allocated block. In commit
// mode every free block it crosses is unlinked from its size class.
func (a *Allocator) scanForward(from, top uintptr, commit bool) (units uint32, reachedTop bool) {
	addr := from
	for addr < top {
		b := block(addr)
		if b.isAlloc() {
			return units, false
		}
		total := uint32(a.lay.totalUnits(b))
		if commit {
			a.lists.unlink(int(b.classIndex()), b)
		}
		units += total
		addr += uintptr(total) * unitBytes
	}
	return units, true
}

// scanBackward walks free blocks immediately preceding from, via the
// layout's boundary tags, absorbing whole blocks until need total units
// have been gained. The last block it needs only part of is shrunk in
// place to a smaller free remnant at its original address (when the
// remnant would itself be a legitimate block) instead of being absorbed
// whole, so the caller ends up carving no more than it asked for. In
// commit mode the absorbed blocks are unlinked and the remnant, if any,
// is re-filed on its (possibly new) size class.
func (a *Allocator) scanBackward(from block, need uint32, commit bool) (left block, gained uint32) {
	left = from
	for gained < need {
		prev, ok := a.lay.prevInHeap(a.heap.Lo(), left)
		if !ok || prev.isAlloc() {
			return left, gained
		}

		prevTotal := uint32(a.lay.totalUnits(prev))
		remaining := need - gained
		if prevTotal <= remaining || prevTotal-remaining < uint32(a.lay.minBlockUnits()) {
			if commit {
				a.lists.unlink(int(prev.classIndex()), prev)
			}
			gained += prevTotal
			left = prev
			continue
		}

		if commit {
			a.lists.unlink(int(prev.classIndex()), prev)
		}
		remainderTotal := prevTotal - remaining
		newLeft := block(prev.addr() + uintptr(remainderTotal)*unitBytes)
		if commit {
			remEnc := remainderTotal - uint32(a.lay.minBlockUnits())
			remCI := classOf(remEnc)
			prev.setFields(remEnc, false, int32(remCI))
			if a.lay.hasFooter() {
				a.lay.writeFooter(prev)
			}
			a.lists.insertTail(remCI, prev)
		}
		left = newLeft
		gained = need
	}
	return left, gained
}

// moveBytes copies n bytes from src to dst; the two regions may overlap,
// as when a grow's backward coalesce shifts a live payload leftward.
func moveBytes(dst, src unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
