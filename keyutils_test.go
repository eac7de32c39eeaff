// keyutils_test.go: Test cases for key utilities and secret buffers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis_test

import (
	"sync"
	"testing"

	"github.com/agilira/themis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyHexRoundTrip(t *testing.T) {
	key := seq(0xf0, 16)
	hexStr := themis.KeyToHex(key)
	if hexStr != "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff" {
		t.Errorf("unexpected hex encoding %s", hexStr)
	}

	restored, err := themis.KeyFromHex(hexStr)
	if err != nil {
		t.Fatalf("KeyFromHex() error: %v", err)
	}
	defer themis.Zeroize(restored)
	if string(key) != string(restored) {
		t.Errorf("Hex round-trip failed: expected %x, got %x", key, restored)
	}

	upper, err := themis.KeyFromHex("F0F1")
	if err != nil || len(upper) != 2 || upper[0] != 0xf0 {
		t.Errorf("upper case hex not accepted: %x, %v", upper, err)
	}

	for _, bad := range []string{"not-hex!!", "abc"} {
		if _, err := themis.KeyFromHex(bad); err == nil {
			t.Errorf("Expected error for invalid hex input %q", bad)
		}
	}
}

func TestZeroize(t *testing.T) {
	data := []byte("sensitive-key-material")
	themis.Zeroize(data)
	for i, b := range data {
		if b != 0 {
			t.Errorf("Zeroize failed at index %d: got %d", i, b)
		}
	}

	themis.Zeroize(nil)
	themis.Zeroize([]byte{})
}

func TestSecretAdoptsBuffer(t *testing.T) {
	raw := seq(1, 32)
	s := themis.NewSecret(raw)
	assert.Equal(t, 32, s.Len())
	assert.False(t, s.IsDestroyed())

	live, err := s.Bytes()
	require.NoError(t, err)
	live[0] = 0xee
	assert.Equal(t, byte(0xee), raw[0], "NewSecret does not copy")

	s.Destroy()
	assert.Equal(t, make([]byte, 32), raw)
	assert.True(t, s.IsDestroyed())
	assert.Equal(t, 0, s.Len())

	_, err = s.Bytes()
	assert.ErrorIs(t, err, themis.ErrSecretDestroyed)
	_, err = s.Copy()
	assert.ErrorIs(t, err, themis.ErrSecretDestroyed)

	s.Destroy()
}

func TestCopySecret(t *testing.T) {
	raw := seq(1, 16)
	s := themis.CopySecret(raw)

	c, err := s.Copy()
	require.NoError(t, err)
	c[0] = 0

	s.Destroy()
	assert.Equal(t, seq(1, 16), raw, "CopySecret leaves the source intact")
}

func TestNilSecret(t *testing.T) {
	var s *themis.Secret
	_, err := s.Bytes()
	assert.ErrorIs(t, err, themis.ErrSecretDestroyed)
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.IsDestroyed())
	s.Destroy()
}

func TestSecretConcurrentDestroy(t *testing.T) {
	s := themis.NewSecret(seq(0, 64))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Destroy()
		}()
		go func() {
			defer wg.Done()
			_ = s.Len()
			_, _ = s.Copy()
		}()
	}
	wg.Wait()

	assert.True(t, s.IsDestroyed())
}
