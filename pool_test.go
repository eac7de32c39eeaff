// pool_test.go: Scratch buffer pooling tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"sync"
	"testing"
)

// TestScratchPoolSizes verifies that every size class returns a buffer of the requested length
func TestScratchPoolSizes(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"MAC tag (16B)", 16, smallScratchSize},
		{"SHA-512 block (64B)", 64, smallScratchSize},
		{"TLS chunk (80B)", 80, mediumScratchSize},
		{"Bulk (4KB)", 4096, largeScratchSize},
		{"Oversized (8KB)", 8192, 8192},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := getScratch(tt.size)
			if buf == nil {
				t.Fatal("getScratch returned nil")
			}
			if len(*buf) != tt.size {
				t.Errorf("length %d, want %d", len(*buf), tt.size)
			}
			if cap(*buf) != tt.wantCap {
				t.Errorf("capacity %d, want %d", cap(*buf), tt.wantCap)
			}
			putScratch(buf)
		})
	}
}

// TestScratchPoolClearsSecrets verifies that returned buffers never leak their contents
func TestScratchPoolClearsSecrets(t *testing.T) {
	buf := getScratch(48)
	for i := range *buf {
		(*buf)[i] = 0xaa
	}
	putScratch(buf)

	for i, b := range (*buf)[:cap(*buf)] {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %#x", i, b)
		}
	}
}

// TestClearBufferFullCapacity verifies that bytes beyond the visible length are cleared
func TestClearBufferFullCapacity(t *testing.T) {
	for _, size := range []int{7, 64, 65, 517} {
		backing := make([]byte, size)
		for i := range backing {
			backing[i] = 0xff
		}
		clearBuffer(backing[:1])

		for i, b := range backing {
			if b != 0 {
				t.Fatalf("size %d: byte %d not cleared", size, i)
			}
		}
	}
}

func TestPutScratchNil(t *testing.T) {
	putScratch(nil)
}

func TestWarmupPools(t *testing.T) {
	WarmupPools(4)

	buf := getScratch(smallScratchSize)
	defer putScratch(buf)
	for _, b := range *buf {
		if b != 0 {
			t.Fatal("warmed buffer is not zeroed")
		}
	}
}

// TestScratchPoolConcurrency verifies thread-safety of the pools
func TestScratchPoolConcurrency(t *testing.T) {
	const numGoroutines = 64
	const numOpsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < numOpsPerGoroutine; j++ {
				small := getScratch(32)
				(*small)[0] = byte(id)
				putScratch(small)

				medium := getScratch(mediumScratchSize)
				(*medium)[0] = byte(j)
				putScratch(medium)

				large := getScratch(largeScratchSize)
				(*large)[largeScratchSize-1] = byte(id ^ j)
				putScratch(large)
			}
		}(i)
	}

	wg.Wait()
}

func BenchmarkScratchPool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := getScratch(smallScratchSize)
		putScratch(buf)
	}
}
