// prf.go: PRF, digest and block cipher catalogue
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"crypto/md5"  // #nosec G501 TLS 1.0/1.1 PRF only
	"crypto/sha1" // #nosec G505
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/crypto/sha3"
)

// PRF names a keyed pseudorandom function usable by the SP800-108 modes and
// the protocol KDFs.
type PRF string

const (
	PRFAESCMAC       PRF = "AES-CMAC"
	PRFTripleDESCMAC PRF = "TripleDES-CMAC"
	PRFHMACSHA1      PRF = "HMAC-SHA1"
	PRFHMACSHA224    PRF = "HMAC-SHA224"
	PRFHMACSHA256    PRF = "HMAC-SHA256"
	PRFHMACSHA384    PRF = "HMAC-SHA384"
	PRFHMACSHA512    PRF = "HMAC-SHA512"
	PRFHMACSHA512224 PRF = "HMAC-SHA512-224"
	PRFHMACSHA512256 PRF = "HMAC-SHA512-256"
	PRFHMACSHA3224   PRF = "HMAC-SHA3-224"
	PRFHMACSHA3256   PRF = "HMAC-SHA3-256"
	PRFHMACSHA3384   PRF = "HMAC-SHA3-384"
	PRFHMACSHA3512   PRF = "HMAC-SHA3-512"

	// internal, TLS 1.0/1.1 only
	prfHMACMD5 PRF = "HMAC-MD5"
)

// Digest names an unkeyed hash function.
type Digest string

const (
	DigestSHA1      Digest = "SHA-1"
	DigestSHA224    Digest = "SHA-224"
	DigestSHA256    Digest = "SHA-256"
	DigestSHA384    Digest = "SHA-384"
	DigestSHA512    Digest = "SHA-512"
	DigestSHA512224 Digest = "SHA-512/224"
	DigestSHA512256 Digest = "SHA-512/256"
	DigestSHA3224   Digest = "SHA3-224"
	DigestSHA3256   Digest = "SHA3-256"
	DigestSHA3384   Digest = "SHA3-384"
	DigestSHA3512   Digest = "SHA3-512"

	digestMD5 Digest = "MD5"
)

// BlockCipher names a block cipher engine.
type BlockCipher string

const (
	CipherAES       BlockCipher = "AES"
	CipherTripleDES BlockCipher = "TripleDES"
)

type digestInfo struct {
	newHash   func() hash.Hash
	size      int
	blockSize int
}

var digests = map[Digest]digestInfo{
	DigestSHA1:      {sha1.New, sha1.Size, sha1.BlockSize},
	DigestSHA224:    {sha256.New224, sha256.Size224, sha256.BlockSize},
	DigestSHA256:    {sha256.New, sha256.Size, sha256.BlockSize},
	DigestSHA384:    {sha512.New384, sha512.Size384, sha512.BlockSize},
	DigestSHA512:    {sha512.New, sha512.Size, sha512.BlockSize},
	DigestSHA512224: {sha512.New512_224, sha512.Size224, sha512.BlockSize},
	DigestSHA512256: {sha512.New512_256, sha512.Size256, sha512.BlockSize},
	DigestSHA3224:   {sha3.New224, 28, 144},
	DigestSHA3256:   {sha3.New256, 32, 136},
	DigestSHA3384:   {sha3.New384, 48, 104},
	DigestSHA3512:   {sha3.New512, 64, 72},
	digestMD5:       {md5.New, md5.Size, md5.BlockSize},
}

var hmacDigests = map[PRF]Digest{
	PRFHMACSHA1:      DigestSHA1,
	PRFHMACSHA224:    DigestSHA224,
	PRFHMACSHA256:    DigestSHA256,
	PRFHMACSHA384:    DigestSHA384,
	PRFHMACSHA512:    DigestSHA512,
	PRFHMACSHA512224: DigestSHA512224,
	PRFHMACSHA512256: DigestSHA512256,
	PRFHMACSHA3224:   DigestSHA3224,
	PRFHMACSHA3256:   DigestSHA3256,
	PRFHMACSHA3384:   DigestSHA3384,
	PRFHMACSHA3512:   DigestSHA3512,
	prfHMACMD5:       digestMD5,
}

// SupportedPRFs lists the public PRFs in catalogue order.
func SupportedPRFs() []PRF {
	return []PRF{
		PRFAESCMAC, PRFTripleDESCMAC,
		PRFHMACSHA1, PRFHMACSHA224, PRFHMACSHA256, PRFHMACSHA384, PRFHMACSHA512,
		PRFHMACSHA512224, PRFHMACSHA512256,
		PRFHMACSHA3224, PRFHMACSHA3256, PRFHMACSHA3384, PRFHMACSHA3512,
	}
}

// SupportedDigests lists the public digests in catalogue order.
func SupportedDigests() []Digest {
	return []Digest{
		DigestSHA1, DigestSHA224, DigestSHA256, DigestSHA384, DigestSHA512,
		DigestSHA512224, DigestSHA512256,
		DigestSHA3224, DigestSHA3256, DigestSHA3384, DigestSHA3512,
	}
}

// IsHMAC reports whether p is an HMAC construction.
func (p PRF) IsHMAC() bool {
	_, ok := hmacDigests[p]
	return ok
}

// IsCMAC reports whether p is a block cipher CMAC.
func (p PRF) IsCMAC() bool {
	return p == PRFAESCMAC || p == PRFTripleDESCMAC
}

// Digest returns the underlying digest of an HMAC PRF.
func (p PRF) Digest() (Digest, bool) {
	d, ok := hmacDigests[p]
	return d, ok
}

// Size returns the PRF output length in bytes, or 0 for an unknown PRF.
func (p PRF) Size() int {
	switch p {
	case PRFAESCMAC:
		return 16
	case PRFTripleDESCMAC:
		return 8
	}
	if d, ok := hmacDigests[p]; ok {
		return digests[d].size
	}
	return 0
}

// zeroKeySize is the length of the all-zero key used by MAC agreement
// post-processing when no salt is supplied.
func (p PRF) zeroKeySize() int {
	switch p {
	case PRFAESCMAC:
		return 16
	case PRFTripleDESCMAC:
		return 24
	}
	if d, ok := hmacDigests[p]; ok {
		return digests[d].blockSize
	}
	return 0
}

// checkKeySize rejects key lengths a CMAC PRF cannot be keyed with. HMAC
// accepts any length.
func (p PRF) checkKeySize(n int) error {
	switch p {
	case PRFAESCMAC:
		if n == 16 || n == 24 || n == 32 {
			return nil
		}
		return invalidKeySize(string(CipherAES), n)
	case PRFTripleDESCMAC:
		if n == 16 || n == 24 {
			return nil
		}
		return invalidKeySize(string(CipherTripleDES), n)
	}
	return nil
}

func (p PRF) valid() bool {
	return p.IsCMAC() || (p.IsHMAC() && p != prfHMACMD5)
}

// Size returns the digest length in bytes, or 0 for an unknown digest.
func (d Digest) Size() int {
	return digests[d].size
}

// BlockSize returns the digest's internal block size in bytes.
func (d Digest) BlockSize() int {
	return digests[d].blockSize
}

func (d Digest) valid() bool {
	_, ok := digests[d]
	return ok && d != digestMD5
}

func unsupportedPRF(p PRF) error {
	return fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm,
		goerrors.New(ErrCodeUnsupported, fmt.Sprintf("unsupported PRF %q", string(p))))
}

func unsupportedDigest(d Digest) error {
	return fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm,
		goerrors.New(ErrCodeUnsupported, fmt.Sprintf("unsupported digest %q", string(d))))
}
