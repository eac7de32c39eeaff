// kdf_tls.go: TLS 1.0/1.1 and TLS 1.2 pseudorandom functions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"crypto/subtle"
)

// TLSLegacyVariation is the variation tag of the TLS 1.0/1.1 PRF identity.
const TLSLegacyVariation = "MD5-SHA1"

// TLSPRFParameters configures the TLS PRF.
//
// An empty PRF selects the TLS 1.0/1.1 construction:
//
//	PRF(secret, label, seed) = P_MD5(S1, label ‖ seed) XOR P_SHA1(S2, label ‖ seed)
//
// where S1 and S2 are the first and last ceil(len(secret)/2) bytes of the
// secret. Otherwise PRF must be HMAC-SHA256, HMAC-SHA384 or HMAC-SHA512 and
// the TLS 1.2 construction P_hash(secret, label ‖ seed) is used.
type TLSPRFParameters struct {
	PRF    PRF
	Secret []byte
	Label  string
	Seed   []byte
}

// IsLegacy reports whether the parameters select the TLS 1.0/1.1 PRF.
func (p *TLSPRFParameters) IsLegacy() bool {
	return p.PRF == ""
}

// Identity returns {TLS-PRF-1.0, MD5-SHA1} for the legacy PRF and
// {TLS-PRF-1.2, PRF} otherwise.
func (p *TLSPRFParameters) Identity() AlgorithmIdentity {
	if p.IsLegacy() {
		return NewIdentity(FamilyTLSPRFLegacy, TLSLegacyVariation)
	}
	return NewIdentity(FamilyTLSPRF12, string(p.PRF))
}

// Validate accepts the legacy PRF or a TLS 1.2 HMAC and requires a label.
func (p *TLSPRFParameters) Validate() error {
	switch p.PRF {
	case "", PRFHMACSHA256, PRFHMACSHA384, PRFHMACSHA512:
	default:
		return unsupportedPRF(p.PRF)
	}
	if len(p.Label) == 0 {
		return invalidParameter(p.Identity(), "label must not be empty")
	}
	return nil
}

// Destroy zeroes the secret.
func (p *TLSPRFParameters) Destroy() {
	Zeroize(p.Secret)
}

func (p *TLSPRFParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	seed := make([]byte, 0, len(p.Label)+len(p.Seed))
	seed = append(seed, p.Label...)
	seed = append(seed, p.Seed...)

	if !p.IsLegacy() {
		return newPHash(ep, p.PRF, p.Secret, seed)
	}

	half := (len(p.Secret) + 1) / 2
	md5Stream, err := newPHash(ep, prfHMACMD5, p.Secret[:half], seed)
	if err != nil {
		return nil, err
	}
	sha1Stream, err := newPHash(ep, PRFHMACSHA1, p.Secret[len(p.Secret)-half:], seed)
	if err != nil {
		return nil, err
	}
	return &legacyTLSGenerator{
		md5:  newDerivationCalculator(NewIdentity(FamilyTLSPRFLegacy, "P_MD5"), md5Stream),
		sha1: newDerivationCalculator(NewIdentity(FamilyTLSPRFLegacy, "P_SHA1"), sha1Stream),
	}, nil
}

// pHashGenerator is P_hash from RFC 5246 section 5:
//
//	A(0) = seed, A(i) = HMAC(secret, A(i-1))
//	block(i) = HMAC(secret, A(i) ‖ seed)
type pHashGenerator struct {
	prf  *keyedPRF
	a    []byte
	seed []byte
}

func newPHash(ep EngineProvider, prf PRF, secret, seed []byte) (*pHashGenerator, error) {
	kp, err := newKeyedPRF(ep, prf, secret)
	if err != nil {
		return nil, err
	}
	return &pHashGenerator{prf: kp, a: cloneBytes(seed), seed: cloneBytes(seed)}, nil
}

func (g *pHashGenerator) next() ([]byte, error) {
	a := g.prf.sum(nil, g.a)
	Zeroize(g.a)
	g.a = a
	return g.prf.sum(nil, g.a, g.seed), nil
}

func (g *pHashGenerator) maxOutput() uint64 { return 0 }

func (g *pHashGenerator) destroy() {
	Zeroize(g.a)
	g.a = nil
	g.prf = nil
}

// legacyChunk is the least common multiple of the MD5 and SHA-1 sizes, so
// every chunk consumes whole blocks of both streams.
const legacyChunk = 80

// legacyTLSGenerator XORs the P_MD5 and P_SHA1 streams chunk by chunk.
type legacyTLSGenerator struct {
	md5  *DerivationCalculator
	sha1 *DerivationCalculator
}

func (g *legacyTLSGenerator) next() ([]byte, error) {
	left, err := g.md5.GenerateBytes(legacyChunk)
	if err != nil {
		return nil, err
	}
	defer Zeroize(left)

	right, err := g.sha1.GenerateBytes(legacyChunk)
	if err != nil {
		return nil, err
	}
	defer Zeroize(right)

	scratch := getScratch(legacyChunk)
	defer putScratch(scratch)
	subtle.XORBytes(*scratch, left, right)

	block := make([]byte, legacyChunk)
	copy(block, *scratch)
	return block, nil
}

func (g *legacyTLSGenerator) maxOutput() uint64 { return 0 }

func (g *legacyTLSGenerator) destroy() {
	g.md5.Destroy()
	g.sha1.Destroy()
}
