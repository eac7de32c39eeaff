// kdf_srtp.go: SRTP key derivation (RFC 3711 section 4.3)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"crypto/cipher"
	"fmt"
	"math/big"
)

// SRTP key derivation labels.
const (
	SRTPLabelEncryption      byte = 0x00
	SRTPLabelAuthentication  byte = 0x01
	SRTPLabelSalt            byte = 0x02
	SRTCPLabelEncryption     byte = 0x03
	SRTCPLabelAuthentication byte = 0x04
	SRTCPLabelSalt           byte = 0x05
)

const (
	srtpSaltSize  = 14
	srtpLabelByte = 7 // byte of the 112-bit salt that receives the label
	// keystream blocks available to one derivation
	srtpMaxBlocks = 1 << 16
)

// SRTPParameters configures the SRTP KDF. The key material is the AES-CTR
// keystream over zeros under MasterKey with
//
//	IV = (MasterSalt XOR (label << 48) XOR (Index DIV KDR)) << 16
//
// Index is a big-endian packet index (48 bits for SRTP, 32 for SRTCP, any
// length up to 14 bytes accepted). KDR == 0 uses the index undivided.
type SRTPParameters struct {
	MasterKey  []byte
	MasterSalt []byte
	KDR        uint64
	Index      []byte
	Label      byte
}

// Identity returns {SRTP-KDF, AES-<key bits>}.
func (p *SRTPParameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilySRTPKDF, fmt.Sprintf("AES-%d", len(p.MasterKey)*8))
}

// Validate checks the master key and salt sizes and the index length.
func (p *SRTPParameters) Validate() error {
	id := p.Identity()
	switch len(p.MasterKey) {
	case 16, 24, 32:
	default:
		return invalidKeySize("SRTP master", len(p.MasterKey))
	}
	if len(p.MasterSalt) != srtpSaltSize {
		return invalidParameter(id, fmt.Sprintf("master salt must be %d bytes, got %d", srtpSaltSize, len(p.MasterSalt)))
	}
	if len(p.Index) > srtpSaltSize {
		return invalidParameter(id, fmt.Sprintf("index longer than %d bytes", srtpSaltSize))
	}
	return nil
}

// Destroy zeroes the master key and salt.
func (p *SRTPParameters) Destroy() {
	zeroizeAll(p.MasterKey, p.MasterSalt)
}

func (p *SRTPParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	block, err := ep.NewBlockCipher(CipherAES, p.MasterKey)
	if err != nil {
		return nil, err
	}
	iv := srtpIV(p.MasterSalt, p.Label, divideIndex(p.Index, p.KDR))
	defer Zeroize(iv)
	return &srtpGenerator{
		stream: cipher.NewCTR(block, iv),
		size:   block.BlockSize(),
		limit:  blockLimit(srtpMaxBlocks, block.BlockSize()),
	}, nil
}

// divideIndex returns floor(index / kdr) encoded in len(index) bytes. Short
// indexes take a uint64 path; longer ones use math/big.
func divideIndex(index []byte, kdr uint64) []byte {
	out := make([]byte, len(index))
	if kdr == 0 {
		copy(out, index)
		return out
	}

	if len(index) <= 7 {
		var v uint64
		for _, b := range index {
			v = v<<8 | uint64(b)
		}
		encodeCounter(out, v/kdr)
		return out
	}

	n := new(big.Int).SetBytes(index)
	n.Quo(n, new(big.Int).SetUint64(kdr))
	n.FillBytes(out)
	return out
}

// srtpIV lays out the 16-byte counter block: salt in bytes 0..13, label
// XORed into byte 7, the divided index XORed right-aligned at byte 13, and
// two zero bytes for the block counter.
func srtpIV(salt []byte, label byte, divided []byte) []byte {
	iv := make([]byte, 16)
	copy(iv, salt)
	iv[srtpLabelByte] ^= label
	off := srtpSaltSize - len(divided)
	for j, b := range divided {
		iv[off+j] ^= b
	}
	return iv
}

type srtpGenerator struct {
	stream cipher.Stream
	size   int
	limit  uint64
}

func (g *srtpGenerator) next() ([]byte, error) {
	block := make([]byte, g.size)
	g.stream.XORKeyStream(block, block)
	return block, nil
}

func (g *srtpGenerator) maxOutput() uint64 { return g.limit }

func (g *srtpGenerator) destroy() {
	g.stream = nil
}
