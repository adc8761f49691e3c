package malloc

import "unsafe"

// unitBytes is the allocator's fundamental granule: 8 bytes, matching a
// native pointer/word on the 64-bit targets this package supports.
const unitBytes = 8

const (
	sizeBits   = 29
	sizeMask   = 1<<sizeBits - 1
	allocBit   = 1 << sizeBits
	numSmall   = 7
	numClasses = 11
)

// roundup rounds n up to the next multiple of m, where m is a power of 2.
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

// encodeSize converts a requested byte count into the header's "size"
// field: the payload length in units, minus one. bytes must be > 0.
func encodeSize(bytes int) uint32 {
	units := roundup(bytes, unitBytes) / unitBytes
	if units < 1 {
		units = 1
	}
	return uint32(units - 1)
}

// payloadBytes returns the usable byte capacity of a block whose header
// "size" field is enc.
func payloadBytes(enc uint32) int { return (int(enc) + 1) * unitBytes }

// classOf returns the size-class index (0..10) for a header "size" field
// (payload units minus one), per the eleven-class table:
//
//	0..6   -> exactly that size field (payload 1..7 units)
//	7      -> size field 7..14   (payload 8..15 units)
//	8      -> size field 15..30  (payload 16..31 units)
//	9      -> size field 31..62  (payload 32..63 units)
//	10     -> size field >= 63   (payload >= 64 units)
func classOf(enc uint32) int {
	switch {
	case enc <= 6:
		return int(enc)
	case enc <= 14:
		return 7
	case enc <= 30:
		return 8
	case enc <= 62:
		return 9
	default:
		return 10
	}
}

// packHeader bit-packs a block header word: size in the low 29 bits, the
// alloc flag in bit 29, two unused bits above it, and the size-class index
// in the high 32 bits. Header and footer words are both this shape.
func packHeader(size uint32, alloc bool, classIndex int32) uint64 {
	lo := size & sizeMask
	if alloc {
		lo |= allocBit
	}
	return uint64(lo) | uint64(uint32(classIndex))<<32
}

func unpackHeader(v uint64) (size uint32, alloc bool, classIndex int32) {
	lo := uint32(v)
	size = lo & sizeMask
	alloc = lo&allocBit != 0
	classIndex = int32(v >> 32)
	return
}

// block addresses a header word directly in the host heap's memory. It is
// a thin, unsafe-pointer view, not an owned value: every method reads or
// writes live bytes at the block's address.
type block uintptr

func (b block) addr() uintptr { return uintptr(b) }

func (b block) headerWord() uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(b)))
}

func (b block) setHeaderWord(v uint64) {
	*(*uint64)(unsafe.Pointer(uintptr(b))) = v
}

func (b block) size() uint32 {
	size, _, _ := unpackHeader(b.headerWord())
	return size
}

func (b block) isAlloc() bool {
	_, alloc, _ := unpackHeader(b.headerWord())
	return alloc
}

func (b block) classIndex() int32 {
	_, _, classIndex := unpackHeader(b.headerWord())
	return classIndex
}

// setFields overwrites every header field at once; used when a block is
// freshly carved (allocateNext, splitBlock, the realloc coalesce paths).
func (b block) setFields(size uint32, alloc bool, classIndex int32) {
	b.setHeaderWord(packHeader(size, alloc, classIndex))
}

func (b block) payload() uintptr { return uintptr(b) + unitBytes }

func (b block) payloadUnits() int { return int(b.size()) + 1 }

// Free-list intrusive links. Only meaningful while the block is free; they
// alias the first two units of the payload, which is safe because a free
// block's payload is never handed out to a caller.
func (b block) linkPrev() uintptr {
	return *(*uintptr)(unsafe.Pointer(b.payload()))
}

func (b block) setLinkPrev(p uintptr) {
	*(*uintptr)(unsafe.Pointer(b.payload())) = p
}

func (b block) linkNext() uintptr {
	return *(*uintptr)(unsafe.Pointer(b.payload() + unitBytes))
}

func (b block) setLinkNext(p uintptr) {
	*(*uintptr)(unsafe.Pointer(b.payload() + unitBytes)) = p
}
