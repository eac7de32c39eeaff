// keyutils.go: Key material helpers for hex encoding, zeroization and comparison.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"io"

	goerrors "github.com/agilira/go-errors"
)

// KeyToHex encodes key material as a lowercase hexadecimal string.
//
// Example:
//
//	out, _ := calc.GenerateBytes(16)
//	fmt.Println(themis.KeyToHex(out))
func KeyToHex(key []byte) string {
	return hex.EncodeToString(key)
}

// KeyFromHex decodes a hexadecimal string into key material. Both upper and
// lower case digits are accepted.
//
// Example:
//
//	ki, err := themis.KeyFromHex("dff1e50ac0b69dc40f1051d46c2b069c")
//	if err != nil {
//		log.Fatal(err)
//	}
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, goerrors.Wrap(err, "HEX_DECODE_ERROR", "failed to decode hex key")
	}
	return key, nil
}

// Zeroize securely wipes a byte slice from memory.
//
// This function overwrites all bytes in the slice with zeros to prevent
// sensitive data from remaining in memory after use. Every intermediate
// buffer holding a PRF block, a pipeline value or a raw agreement value
// passes through here before it is released.
//
// Note: This function modifies the original slice in place.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// zeroizeAll wipes several buffers at once.
func zeroizeAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zeroize(b)
	}
}

// cloneBytes returns a private copy of b, or nil for an empty input.
func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// equalBytes compares two buffers in constant time.
func equalBytes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// mustHex decodes a baked-in hex constant. It panics on malformed input, so
// it is only used for self-test vectors.
func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("themis: bad hex constant: " + s)
	}
	return b
}

// randomBytes reads n bytes from crypto/rand. Used for throwaway key pairs
// in consistency tests.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, goerrors.Wrap(err, "RANDOM_GEN_ERROR", "failed to generate random bytes")
	}
	return b, nil
}
