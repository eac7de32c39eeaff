// kdf_ssh.go: SSH transport key derivation (RFC 4253 section 7.2)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"fmt"
	"hash"
)

// SSHKeyType is the single letter that selects one of the six keys derived
// from an SSH key exchange.
type SSHKeyType byte

const (
	SSHInitialIVClientToServer     SSHKeyType = 'A'
	SSHInitialIVServerToClient     SSHKeyType = 'B'
	SSHEncryptionKeyClientToServer SSHKeyType = 'C'
	SSHEncryptionKeyServerToClient SSHKeyType = 'D'
	SSHIntegrityKeyClientToServer  SSHKeyType = 'E'
	SSHIntegrityKeyServerToClient  SSHKeyType = 'F'
)

// SSHParameters configures the SSH KDF:
//
//	K1     = HASH(K ‖ H ‖ X ‖ session_id)
//	K(n+1) = HASH(K ‖ H ‖ K1 ‖ ... ‖ Kn)
//
// SharedKey is K already encoded as an SSH mpint.
type SSHParameters struct {
	Digest       Digest
	SharedKey    []byte
	ExchangeHash []byte
	SessionID    []byte
	KeyType      SSHKeyType
}

// Identity returns {SSH-KDF, digest}.
func (p *SSHParameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilySSHKDF, string(p.Digest))
}

// Validate checks the digest, the key type and the required inputs.
func (p *SSHParameters) Validate() error {
	id := p.Identity()
	if !p.Digest.valid() {
		return unsupportedDigest(p.Digest)
	}
	if len(p.SharedKey) == 0 {
		return invalidParameter(id, "shared key must not be empty")
	}
	if len(p.ExchangeHash) == 0 {
		return invalidParameter(id, "exchange hash must not be empty")
	}
	if len(p.SessionID) == 0 {
		return invalidParameter(id, "session id must not be empty")
	}
	if p.KeyType < SSHInitialIVClientToServer || p.KeyType > SSHIntegrityKeyServerToClient {
		return invalidParameter(id, fmt.Sprintf("key type %q not in 'A'..'F'", rune(p.KeyType)))
	}
	return nil
}

// Destroy zeroes the shared key.
func (p *SSHParameters) Destroy() {
	Zeroize(p.SharedKey)
}

func (p *SSHParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	h, err := ep.NewDigest(p.Digest)
	if err != nil {
		return nil, err
	}
	return &sshGenerator{
		h:         h,
		k:         cloneBytes(p.SharedKey),
		xh:        cloneBytes(p.ExchangeHash),
		sessionID: cloneBytes(p.SessionID),
		keyType:   byte(p.KeyType),
	}, nil
}

type sshGenerator struct {
	h         hash.Hash
	k, xh     []byte
	sessionID []byte
	keyType   byte
	acc       []byte // K1 ‖ ... ‖ Kn
}

func (g *sshGenerator) next() ([]byte, error) {
	g.h.Reset()
	g.h.Write(g.k)
	g.h.Write(g.xh)
	if len(g.acc) == 0 {
		g.h.Write([]byte{g.keyType})
		g.h.Write(g.sessionID)
	} else {
		g.h.Write(g.acc)
	}
	block := g.h.Sum(nil)

	grown := make([]byte, len(g.acc)+len(block))
	copy(grown, g.acc)
	copy(grown[len(g.acc):], block)
	Zeroize(g.acc)
	g.acc = grown

	return block, nil
}

func (g *sshGenerator) maxOutput() uint64 { return 0 }

func (g *sshGenerator) destroy() {
	zeroizeAll(g.k, g.acc)
	g.k, g.acc = nil, nil
	g.h = nil
}
