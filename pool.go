// pool.go: Scratch buffer pooling for intermediate secret material
//
// Pooled buffers always hold secret intermediates (PRF blocks, XOR
// temporaries, MAC tags), so every buffer is cleared before it goes back.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"sync"
)

const (
	smallScratchSize  = 64   // one digest or MAC tag, SHA-512 included
	mediumScratchSize = 512  // a handful of blocks
	largeScratchSize  = 4096 // bulk XOR temporaries
)

var (
	smallScratchPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, smallScratchSize)
			return &buf
		},
	}

	mediumScratchPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, mediumScratchSize)
			return &buf
		},
	}

	largeScratchPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, largeScratchSize)
			return &buf
		},
	}
)

// getScratch retrieves a buffer of exactly size bytes from the matching size
// class. Sizes above the largest class are allocated directly.
func getScratch(size int) *[]byte {
	switch {
	case size <= smallScratchSize:
		buf := smallScratchPool.Get().(*[]byte)
		*buf = (*buf)[:size]
		return buf
	case size <= mediumScratchSize:
		buf := mediumScratchPool.Get().(*[]byte)
		*buf = (*buf)[:size]
		return buf
	case size <= largeScratchSize:
		buf := largeScratchPool.Get().(*[]byte)
		*buf = (*buf)[:size]
		return buf
	default:
		buf := make([]byte, size)
		return &buf
	}
}

// clearBuffer zeroes the full capacity of buf, not only its visible length,
// so bytes from an earlier, longer use cannot survive.
func clearBuffer(buf []byte) {
	full := buf[:cap(buf)]
	if len(full) <= 64 {
		for i := range full {
			full[i] = 0
		}
		return
	}

	// Unrolled for cache line sized runs
	i := 0
	for i < len(full)-7 {
		full[i] = 0
		full[i+1] = 0
		full[i+2] = 0
		full[i+3] = 0
		full[i+4] = 0
		full[i+5] = 0
		full[i+6] = 0
		full[i+7] = 0
		i += 8
	}
	for i < len(full) {
		full[i] = 0
		i++
	}
}

// putScratch clears buf and returns it to its size class. Buffers of any
// other capacity are cleared and dropped.
func putScratch(buf *[]byte) {
	if buf == nil {
		return
	}
	clearBuffer(*buf)

	switch cap(*buf) {
	case smallScratchSize:
		smallScratchPool.Put(buf)
	case mediumScratchSize:
		mediumScratchPool.Put(buf)
	case largeScratchSize:
		largeScratchPool.Put(buf)
	}
}

// WarmupPools pre-allocates scratch buffers to reduce first-use latency.
func WarmupPools(count int) {
	bufs := make([]*[]byte, 0, 3*count)
	for i := 0; i < count; i++ {
		bufs = append(bufs,
			getScratch(smallScratchSize),
			getScratch(mediumScratchSize),
			getScratch(largeScratchSize))
	}
	for _, b := range bufs {
		putScratch(b)
	}
}
