// kdf_hkdf.go: HKDF extract-and-expand (RFC 5869)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"hash"
	"io"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/crypto/hkdf"
)

// hkdfMaxBlocks is the RFC 5869 limit of 255 hash lengths.
const hkdfMaxBlocks = 255

// HKDFParameters configures HKDF over an HMAC digest. An empty Salt is
// replaced by HashLen zero bytes, as the RFC specifies.
type HKDFParameters struct {
	Digest Digest
	IKM    []byte
	Salt   []byte
	Info   []byte
}

// Identity returns {HKDF, digest}.
func (p *HKDFParameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyHKDF, string(p.Digest))
}

// Validate checks the digest and that IKM is present.
func (p *HKDFParameters) Validate() error {
	if !p.Digest.valid() {
		return unsupportedDigest(p.Digest)
	}
	if len(p.IKM) == 0 {
		return invalidParameter(p.Identity(), "IKM must not be empty")
	}
	return nil
}

// Destroy zeroes IKM.
func (p *HKDFParameters) Destroy() {
	Zeroize(p.IKM)
}

func (p *HKDFParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	first, err := ep.NewDigest(p.Digest)
	if err != nil {
		return nil, err
	}
	size := first.Size()
	newHash := func() hash.Hash {
		h, err := ep.NewDigest(p.Digest)
		if err != nil {
			panic(engineFault{err})
		}
		return h
	}
	return &hkdfGenerator{
		r:     hkdf.New(newHash, p.IKM, cloneBytes(p.Salt), cloneBytes(p.Info)),
		size:  size,
		limit: blockLimit(hkdfMaxBlocks, size),
	}, nil
}

type hkdfGenerator struct {
	r     io.Reader
	size  int
	limit uint64
}

func (g *hkdfGenerator) next() ([]byte, error) {
	block := make([]byte, g.size)
	if _, err := io.ReadFull(g.r, block); err != nil {
		return nil, goerrors.Wrap(err, ErrCodeOutputLimit, "HKDF expansion failed")
	}
	return block, nil
}

func (g *hkdfGenerator) maxOutput() uint64 { return g.limit }

func (g *hkdfGenerator) destroy() {
	g.r = nil
}
