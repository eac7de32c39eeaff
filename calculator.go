// calculator.go: Streaming derivation calculator shared by every KDF engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"fmt"
	"hash"

	goerrors "github.com/agilira/go-errors"
)

// DerivationParameters is the parameter set of one KDF mode. Implementations
// own their key material: Destroy zeroes it. Calculators copy what they need
// at construction, so parameters may be destroyed right after.
type DerivationParameters interface {
	// Identity returns the algorithm identity the parameters select.
	Identity() AlgorithmIdentity
	// Validate checks the parameters without touching an engine.
	Validate() error
	// Destroy zeroes the key material held by the parameters.
	Destroy()

	newGenerator(p EngineProvider) (blockGenerator, error)
}

// blockGenerator produces the keystream of a KDF one block at a time.
type blockGenerator interface {
	// next returns a fresh buffer holding the next block. The caller owns it.
	next() ([]byte, error)
	// maxOutput is the total number of bytes the construction can produce,
	// 0 meaning unbounded.
	maxOutput() uint64
	// destroy zeroes the generator's chaining state.
	destroy()
}

// DerivationCalculator produces the keystream of one KDF instance.
//
// Each GenerateBytes call continues where the previous call stopped, so
// GenerateBytes(a) followed by GenerateBytes(n-a) equals GenerateBytes(n) on
// a fresh calculator. A calculator cannot be restarted and must not be used
// from several goroutines at once.
type DerivationCalculator struct {
	id        AlgorithmIdentity
	gen       blockGenerator
	pending   []byte // unread tail of the current block
	produced  uint64
	limit     uint64
	destroyed bool
	latched   func() error // module latch, nil for self-test calculators
}

func newDerivationCalculator(id AlgorithmIdentity, gen blockGenerator) *DerivationCalculator {
	return &DerivationCalculator{id: id, gen: gen, limit: gen.maxOutput()}
}

// Identity returns the algorithm identity the calculator was built for.
func (c *DerivationCalculator) Identity() AlgorithmIdentity {
	return c.id
}

// GenerateBytes returns the next n bytes of the keystream. n == 0 returns an
// empty slice and leaves the stream untouched. Once the owning module has
// failed every call returns the module's latched error.
func (c *DerivationCalculator) GenerateBytes(n int) ([]byte, error) {
	if c.destroyed {
		return nil, fmt.Errorf("%w: %w", ErrCalculatorDestroyed,
			goerrors.New(ErrCodeDestroyed, fmt.Sprintf("calculator for %s has been destroyed", c.id)))
	}
	if c.latched != nil {
		if err := c.latched(); err != nil {
			return nil, err
		}
	}
	if n < 0 {
		return nil, invalidParameter(c.id, "requested length must not be negative")
	}
	if n == 0 {
		return []byte{}, nil
	}
	if c.limit > 0 && uint64(n) > c.limit-c.produced {
		return nil, fmt.Errorf("%w: %w", ErrOutputLimitExceeded,
			goerrors.New(ErrCodeOutputLimit, fmt.Sprintf("%s can produce %d more bytes, %d requested",
				c.id, c.limit-c.produced, n)))
	}

	out := make([]byte, n)
	off := 0
	for off < n {
		if len(c.pending) == 0 {
			block, err := nextBlock(c.gen)
			if err != nil {
				Zeroize(out)
				return nil, err
			}
			c.pending = block
		}
		k := copy(out[off:], c.pending)
		Zeroize(c.pending[:k])
		c.pending = c.pending[k:]
		off += k
	}
	c.produced += uint64(n)
	return out, nil
}

// GenerateSecret is GenerateBytes with the output wrapped in a *Secret.
func (c *DerivationCalculator) GenerateSecret(n int) (*Secret, error) {
	b, err := c.GenerateBytes(n)
	if err != nil {
		return nil, err
	}
	return NewSecret(b), nil
}

// Destroy zeroes the chaining state and any buffered keystream. Further
// calls to GenerateBytes fail with ErrCalculatorDestroyed.
func (c *DerivationCalculator) Destroy() {
	if c.destroyed {
		return
	}
	Zeroize(c.pending)
	c.pending = nil
	c.gen.destroy()
	c.destroyed = true
}

// engineFault carries an engine error through interfaces that cannot return
// one, such as hash.Hash. It is raised with panic and turned back into an
// error by catchEngineFault at the package boundary.
type engineFault struct {
	err error
}

func catchEngineFault(err *error) {
	if r := recover(); r != nil {
		f, ok := r.(engineFault)
		if !ok {
			panic(r)
		}
		*err = f.err
	}
}

func buildGenerator(params DerivationParameters, p EngineProvider) (gen blockGenerator, err error) {
	defer catchEngineFault(&err)
	return params.newGenerator(p)
}

func nextBlock(gen blockGenerator) (block []byte, err error) {
	defer catchEngineFault(&err)
	return gen.next()
}

// keyedPRF wraps a MAC engine keyed once with the KDF input key.
type keyedPRF struct {
	mac hash.Hash
}

// sum returns PRF(key, parts...) appended to dst.
func (k *keyedPRF) sum(dst []byte, parts ...[]byte) []byte {
	k.mac.Reset()
	for _, p := range parts {
		k.mac.Write(p)
	}
	return k.mac.Sum(dst)
}

func (k *keyedPRF) size() int {
	return k.mac.Size()
}

func newKeyedPRF(p EngineProvider, prf PRF, key []byte) (*keyedPRF, error) {
	mac, err := p.NewMAC(prf, key)
	if err != nil {
		return nil, err
	}
	return &keyedPRF{mac: mac}, nil
}

// encodeCounter writes i big-endian into dst, which is r/8 bytes long.
func encodeCounter(dst []byte, i uint64) {
	for j := len(dst) - 1; j >= 0; j-- {
		dst[j] = byte(i)
		i >>= 8
	}
}

func invalidParameter(id AlgorithmIdentity, msg string) error {
	return fmt.Errorf("%w: %w", ErrInvalidParameter,
		goerrors.New(ErrCodeInvalidParameter, fmt.Sprintf("%s: %s", id, msg)))
}

func blockLimit(blocks uint64, blockSize int) uint64 {
	return blocks * uint64(blockSize)
}
