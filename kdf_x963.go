// kdf_x963.go: ANSI X9.63 and NIST SP800-56 concatenation KDFs
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"hash"
)

// digestKDFMaxBlocks is the 32-bit counter limit shared by both constructions.
const digestKDFMaxBlocks = 1<<32 - 1

// X963Parameters configures the X9.63 KDF:
//
//	K(i) = Hash(Z ‖ [i]_32 ‖ SharedInfo)
type X963Parameters struct {
	Digest     Digest
	Z          []byte
	SharedInfo []byte
}

// Identity returns {X9.63-KDF, digest}.
func (p *X963Parameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyX963KDF, string(p.Digest))
}

// Validate checks the digest and that Z is present.
func (p *X963Parameters) Validate() error {
	if !p.Digest.valid() {
		return unsupportedDigest(p.Digest)
	}
	if len(p.Z) == 0 {
		return invalidParameter(p.Identity(), "Z must not be empty")
	}
	return nil
}

// Destroy zeroes Z.
func (p *X963Parameters) Destroy() {
	Zeroize(p.Z)
}

func (p *X963Parameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	h, err := ep.NewDigest(p.Digest)
	if err != nil {
		return nil, err
	}
	return &digestKDFGenerator{
		h:       h,
		z:       cloneBytes(p.Z),
		info:    cloneBytes(p.SharedInfo),
		zFirst:  true,
		counter: make([]byte, 4),
		limit:   blockLimit(digestKDFMaxBlocks, h.Size()),
	}, nil
}

// ConcatenationParameters configures the SP800-56A/C single-step KDF:
//
//	K(i) = Hash([i]_32 ‖ Z ‖ OtherInfo)
type ConcatenationParameters struct {
	Digest    Digest
	Z         []byte
	OtherInfo []byte
}

// Identity returns {Concatenation-KDF, digest}.
func (p *ConcatenationParameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyConcatenationKDF, string(p.Digest))
}

// Validate checks the digest and that Z is present.
func (p *ConcatenationParameters) Validate() error {
	if !p.Digest.valid() {
		return unsupportedDigest(p.Digest)
	}
	if len(p.Z) == 0 {
		return invalidParameter(p.Identity(), "Z must not be empty")
	}
	return nil
}

// Destroy zeroes Z.
func (p *ConcatenationParameters) Destroy() {
	Zeroize(p.Z)
}

func (p *ConcatenationParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	h, err := ep.NewDigest(p.Digest)
	if err != nil {
		return nil, err
	}
	return &digestKDFGenerator{
		h:       h,
		z:       cloneBytes(p.Z),
		info:    cloneBytes(p.OtherInfo),
		counter: make([]byte, 4),
		limit:   blockLimit(digestKDFMaxBlocks, h.Size()),
	}, nil
}

type digestKDFGenerator struct {
	h       hash.Hash
	z, info []byte
	zFirst  bool // X9.63 order
	counter []byte
	i       uint64
	limit   uint64
}

func (g *digestKDFGenerator) next() ([]byte, error) {
	g.i++
	encodeCounter(g.counter, g.i)
	g.h.Reset()
	if g.zFirst {
		g.h.Write(g.z)
		g.h.Write(g.counter)
	} else {
		g.h.Write(g.counter)
		g.h.Write(g.z)
	}
	g.h.Write(g.info)
	return g.h.Sum(nil), nil
}

func (g *digestKDFGenerator) maxOutput() uint64 { return g.limit }

func (g *digestKDFGenerator) destroy() {
	Zeroize(g.z)
	g.z = nil
	g.h = nil
}
