// entropy.go: Continuous duplicate-block test over an external entropy source
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"

	goerrors "github.com/agilira/go-errors"
)

// ContinuousVariation is the variation tag of the continuous entropy test.
const ContinuousVariation = "Continuous"

// EntropySource yields fixed-size samples of entropy.
type EntropySource interface {
	GetEntropy() ([]byte, error)
	EntropySize() int
}

type readerEntropySource struct {
	r    io.Reader
	size int
}

// NewReaderEntropySource adapts r into an EntropySource returning size-byte
// samples. A nil r reads crypto/rand; a non-positive size uses
// DefaultEntropyBlockSize.
func NewReaderEntropySource(r io.Reader, size int) EntropySource {
	if r == nil {
		r = rand.Reader
	}
	if size <= 0 {
		size = DefaultEntropyBlockSize
	}
	return &readerEntropySource{r: r, size: size}
}

func (s *readerEntropySource) GetEntropy() ([]byte, error) {
	b := make([]byte, s.size)
	if _, err := io.ReadFull(s.r, b); err != nil {
		return nil, goerrors.Wrap(err, ErrCodeEntropySource, "failed to read entropy")
	}
	return b, nil
}

func (s *readerEntropySource) EntropySize() int {
	return s.size
}

// failFunc latches a module failure and returns the latched error.
type failFunc func(id AlgorithmIdentity, cause error) error

// ContinuousEntropySource compares every sample with the previous one. Two
// identical consecutive samples are a module-fatal condition: the fail
// callback latches the module and every later call returns that error.
//
// The first call fetches two samples so there is a baseline to compare with.
type ContinuousEntropySource struct {
	mu     sync.Mutex // fetch, compare and store happen atomically
	src    EntropySource
	last   []byte
	fail    failFunc
	latched func() error // module latch, checked before every sample
	err     error
	logger  *slog.Logger
}

func newContinuousEntropySource(src EntropySource, fail failFunc, latched func() error, logger *slog.Logger) *ContinuousEntropySource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ContinuousEntropySource{src: src, fail: fail, latched: latched, logger: logger}
}

// EntropySize returns the sample size of the wrapped source.
func (c *ContinuousEntropySource) EntropySize() int {
	return c.src.EntropySize()
}

// GetEntropy returns the next sample once it differs from the previous one.
// Once the owning module has failed it returns the module's latched error.
func (c *ContinuousEntropySource) GetEntropy() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if c.latched != nil {
		if err := c.latched(); err != nil {
			return nil, err
		}
	}

	if c.last == nil {
		first, err := c.fetch()
		if err != nil {
			return nil, err
		}
		c.last = first
	}

	sample, err := c.fetch()
	if err != nil {
		return nil, err
	}

	if equalBytes(sample, c.last) {
		Zeroize(sample)
		id := NewIdentity(FamilyEntropy, ContinuousVariation)
		cause := fmt.Errorf("%w: %w", ErrDuplicateEntropy,
			goerrors.New(ErrCodeDuplicateEntropy, "consecutive entropy samples are identical"))
		c.logger.Error("themis duplicate entropy block", "identity", id.String(), "size", len(sample))
		if c.fail != nil {
			c.err = c.fail(id, cause)
		} else {
			c.err = cause
		}
		return nil, c.err
	}

	Zeroize(c.last)
	c.last = sample
	out := make([]byte, len(sample))
	copy(out, sample)
	return out, nil
}

func (c *ContinuousEntropySource) fetch() ([]byte, error) {
	b, err := c.src.GetEntropy()
	if err != nil {
		return nil, err
	}
	if len(b) != c.src.EntropySize() {
		return nil, goerrors.New(ErrCodeEntropySource,
			fmt.Sprintf("entropy source returned %d bytes, want %d", len(b), c.src.EntropySize()))
	}
	// The source may reuse its buffer; keep a private copy for comparison.
	own := make([]byte, len(b))
	copy(own, b)
	return own, nil
}

// Read fills p with tested entropy.
func (c *ContinuousEntropySource) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		sample, err := c.GetEntropy()
		if err != nil {
			return n, err
		}
		n += copy(p[n:], sample)
		Zeroize(sample)
	}
	return n, nil
}
