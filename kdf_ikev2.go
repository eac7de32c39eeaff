// kdf_ikev2.go: IKEv2 key derivation (RFC 7296 section 2.13)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

// ikev2MaxBlocks is the prf+ limit imposed by its one byte counter.
const ikev2MaxBlocks = 255

// IKEv2Parameters configures the IKEv2 KDF.
//
// Without PRFPlus the output is a single HMAC(SharedKey, KeyPad) truncated to
// the requested length. With PRFPlus the prf+ expansion is used:
//
//	T1     = HMAC(SharedKey, KeyPad ‖ 0x01)
//	T(i+1) = HMAC(SharedKey, Ti ‖ KeyPad ‖ i+1)
type IKEv2Parameters struct {
	PRF       PRF
	SharedKey []byte
	KeyPad    []byte
	PRFPlus   bool
}

// Identity returns {IKEv2-KDF, PRF}.
func (p *IKEv2Parameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyIKEv2KDF, string(p.PRF))
}

// Validate requires an approved HMAC PRF and a non-empty shared key.
func (p *IKEv2Parameters) Validate() error {
	if !p.PRF.IsHMAC() || !p.PRF.valid() {
		return unsupportedPRF(p.PRF)
	}
	if len(p.SharedKey) == 0 {
		return invalidParameter(p.Identity(), "shared key must not be empty")
	}
	return nil
}

// Destroy zeroes the shared key.
func (p *IKEv2Parameters) Destroy() {
	Zeroize(p.SharedKey)
}

func (p *IKEv2Parameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	prf, err := newKeyedPRF(ep, p.PRF, p.SharedKey)
	if err != nil {
		return nil, err
	}
	blocks := uint64(1)
	if p.PRFPlus {
		blocks = ikev2MaxBlocks
	}
	return &ikev2Generator{
		prf:   prf,
		pad:   cloneBytes(p.KeyPad),
		plus:  p.PRFPlus,
		limit: blockLimit(blocks, prf.size()),
	}, nil
}

type ikev2Generator struct {
	prf   *keyedPRF
	pad   []byte
	plus  bool
	t     []byte
	i     int
	limit uint64
}

func (g *ikev2Generator) next() ([]byte, error) {
	g.i++
	if !g.plus {
		return g.prf.sum(nil, g.pad), nil
	}

	t := g.prf.sum(nil, g.t, g.pad, []byte{byte(g.i)})
	Zeroize(g.t)
	g.t = t
	block := make([]byte, len(t))
	copy(block, t)
	return block, nil
}

func (g *ikev2Generator) maxOutput() uint64 { return g.limit }

func (g *ikev2Generator) destroy() {
	Zeroize(g.t)
	g.t = nil
	g.prf = nil
}
