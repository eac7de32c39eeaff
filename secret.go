// secret.go: Owned secret byte buffers that zero themselves on Destroy.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"fmt"
	"sync"

	goerrors "github.com/agilira/go-errors"
)

// noCopy may be embedded into structs which must not be copied after first
// use. go vet's copylocks checker reports value copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Secret owns a buffer of secret key material. Derivation and agreement
// outputs are handed to the caller as *Secret values; ownership moves with
// the pointer.
//
// Destroy zeroes the buffer. After Destroy every accessor fails with
// ErrSecretDestroyed instead of returning zeroed bytes.
type Secret struct {
	_ noCopy

	mu        sync.Mutex
	buf       []byte
	destroyed bool
}

// NewSecret adopts b without copying. Destroying the secret zeroes b, which
// is how callers observe that an agreement value was consumed.
func NewSecret(b []byte) *Secret {
	return &Secret{buf: b}
}

// CopySecret returns a secret holding a private copy of b.
func CopySecret(b []byte) *Secret {
	c := make([]byte, len(b))
	copy(c, b)
	return &Secret{buf: c}
}

// Bytes returns the live backing buffer. The slice is invalidated by Destroy.
func (s *Secret) Bytes() ([]byte, error) {
	if s == nil {
		return nil, secretDestroyedError()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, secretDestroyedError()
	}
	return s.buf, nil
}

// Copy returns a fresh copy of the secret bytes.
func (s *Secret) Copy() ([]byte, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Len returns the secret length, or 0 once destroyed.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return 0
	}
	return len(s.buf)
}

// Destroy zeroes the buffer. It is safe to call more than once.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	Zeroize(s.buf)
	s.destroyed = true
}

// IsDestroyed reports whether Destroy has been called.
func (s *Secret) IsDestroyed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func secretDestroyedError() error {
	return fmt.Errorf("%w: %w", ErrSecretDestroyed,
		goerrors.New(ErrCodeDestroyed, "secret buffer has been destroyed"))
}
