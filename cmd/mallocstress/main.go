// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mallocstress drives an Allocator through a seeded
// allocate/verify/shuffle/free cycle until a byte quota is exhausted,
// reporting heap utilization at the end. It exists to exercise both heap
// layouts outside of go test, against a real OS-backed sandbox rather
// than an in-process fake.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"unsafe"

	"github.com/cznic/mathutil"
	"github.com/tenyoung795/malloclab"
	"github.com/tenyoung795/malloclab/sandbox"
)

func unsafePointer(p uintptr) unsafe.Pointer { return unsafe.Pointer(p) }

func unsafeView(p unsafe.Pointer, n int) []byte { return unsafe.Slice((*byte)(p), n) }

func main() {
	var (
		variant = flag.String("variant", "double", "heap layout to exercise: single or double")
		quota   = flag.Int("quota", 64<<20, "bytes to allocate before freeing everything")
		maxSize = flag.Int("max", 4096, "largest single allocation, in bytes")
		seed    = flag.Int64("seed", 42, "PRNG seed")
		reserve = flag.Int("reserve", 1<<30, "virtual address space to reserve for the sandbox")
		trace   = flag.Bool("trace", false, "log every Malloc/Free/Realloc call")
	)
	flag.Parse()
	log.SetFlags(0)

	heap, err := sandbox.New(sandbox.WithReserve(*reserve))
	if err != nil {
		log.Fatalf("sandbox.New: %v", err)
	}
	defer heap.Close()

	var opts []malloc.Option
	if *trace {
		opts = append(opts, malloc.WithTrace(logWriter{}))
	}

	var a *malloc.Allocator
	switch *variant {
	case "single":
		a = malloc.NewSingle(heap, opts...)
	case "double":
		a = malloc.NewDouble(heap, opts...)
	default:
		log.Fatalf("unknown -variant %q, want single or double", *variant)
	}

	if err := run(a, *quota, *maxSize, *seed); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("ok: committed %d bytes at quota exhaustion, 0 bytes live afterward\n", heap.Size())
}

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Print(string(p))
	return len(p), nil
}

// run allocates pseudo-random block sizes, filling each with a
// reproducible byte pattern, until rem bytes of quota have been spent;
// verifies every block's content against the same PRNG sequence replayed
// from the start; shuffles the allocation order; and frees everything,
// failing loudly on any corruption or content mismatch along the way.
func run(a *malloc.Allocator, quota, max int, seed int64) error {
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		return err
	}
	rng.Seed(seed)
	pos := rng.Pos()

	type block struct {
		ptr  uintptr
		size int
	}
	var blocks []block

	rem := quota
	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size

		p, err := a.Malloc(size)
		if err != nil {
			return fmt.Errorf("malloc(%d): %w", size, err)
		}
		blocks = append(blocks, block{uintptr(p), size})
		view := unsafeView(p, size)
		for i := range view {
			view[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for i, b := range blocks {
		if g, e := b.size, rng.Next()%max+1; g != e {
			return fmt.Errorf("block %d: size %d, want %d", i, g, e)
		}
		view := unsafeView(unsafePointer(b.ptr), b.size)
		for j, g := range view {
			if e := byte(rng.Next()); g != e {
				return fmt.Errorf("block %d byte %d: got %#02x, want %#02x", i, j, g, e)
			}
		}
	}

	for i := range blocks {
		j := rng.Next() % len(blocks)
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}

	for _, b := range blocks {
		a.Free(unsafePointer(b.ptr))
	}
	return nil
}
