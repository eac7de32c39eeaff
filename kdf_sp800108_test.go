// kdf_sp800108_test.go: SP800-108 known answers and block layout tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hmacSHA256(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func derive(t *testing.T, m *Module, params DerivationParameters, n int) []byte {
	t.Helper()
	calc, err := m.NewDerivationCalculator(params)
	require.NoError(t, err)
	defer calc.Destroy()
	out, err := calc.GenerateBytes(n)
	require.NoError(t, err)
	return out
}

func TestSP800108KnownAnswers(t *testing.T) {
	m := testModule(t)

	for _, v := range sp800108Vectors {
		expected := []string{v.counter, v.feedback, v.pipeline}
		for i, params := range SP800108KATParameters(v.prf) {
			params, want := params, mustHex(expected[i])
			t.Run(params.Identity().String(), func(t *testing.T) {
				assert.Equal(t, want, derive(t, m, params, len(want)))

				_, ok := m.ValidatedAt(params.Identity())
				assert.True(t, ok, "identity should be cached as validated")
			})
		}
	}
}

func TestCounterModeBlockLayout(t *testing.T) {
	m := testModule(t)
	ki := seqBytes(0x40, 32)
	prefix, suffix := []byte("label"), []byte("context")

	got := derive(t, m, &CounterParameters{
		PRF:              PRFHMACSHA256,
		KI:               ki,
		FixedInputPrefix: prefix,
		FixedInputSuffix: suffix,
		R:                16,
	}, 40)

	want := concat(
		hmacSHA256(ki, prefix, []byte{0x00, 0x01}, suffix),
		hmacSHA256(ki, prefix, []byte{0x00, 0x02}, suffix),
	)[:40]
	assert.Equal(t, want, got)
}

func TestFeedbackModeBlockLayout(t *testing.T) {
	m := testModule(t)
	ki := seqBytes(0x10, 16)
	iv := seqBytes(0xa0, 32)
	fixed := []byte("fixed input")

	t.Run("NoCounter", func(t *testing.T) {
		got := derive(t, m, &FeedbackParameters{PRF: PRFHMACSHA256, KI: ki, IV: iv, FixedInput: fixed}, 64)

		k1 := hmacSHA256(ki, iv, fixed)
		k2 := hmacSHA256(ki, k1, fixed)
		assert.Equal(t, concat(k1, k2), got)
	})

	t.Run("CounterBeforeIteration", func(t *testing.T) {
		got := derive(t, m, &FeedbackParameters{
			PRF: PRFHMACSHA256, KI: ki, IV: iv, FixedInput: fixed,
			R: 16, Location: CounterBeforeIteration,
		}, 50)

		k1 := hmacSHA256(ki, []byte{0, 1}, iv, fixed)
		k2 := hmacSHA256(ki, []byte{0, 2}, k1, fixed)
		assert.Equal(t, concat(k1, k2)[:50], got)
	})

	t.Run("CounterAfterFixedEmptyIV", func(t *testing.T) {
		got := derive(t, m, &FeedbackParameters{
			PRF: PRFHMACSHA256, KI: ki, FixedInput: fixed,
			R: 8, Location: CounterAfterFixed,
		}, 64)

		k1 := hmacSHA256(ki, fixed, []byte{1})
		k2 := hmacSHA256(ki, k1, fixed, []byte{2})
		assert.Equal(t, concat(k1, k2), got)
	})
}

func TestDoublePipelineBlockLayout(t *testing.T) {
	m := testModule(t)
	ki := seqBytes(0x77, 20)
	fixed := []byte("pipeline fixed input")

	t.Run("CounterAfterIteration", func(t *testing.T) {
		got := derive(t, m, &DoublePipelineParameters{
			PRF: PRFHMACSHA256, KI: ki, FixedInput: fixed,
			R: 32, Location: CounterAfterIteration,
		}, 64)

		a1 := hmacSHA256(ki, fixed)
		a2 := hmacSHA256(ki, a1)
		k1 := hmacSHA256(ki, a1, []byte{0, 0, 0, 1}, fixed)
		k2 := hmacSHA256(ki, a2, []byte{0, 0, 0, 2}, fixed)
		assert.Equal(t, concat(k1, k2), got)
	})

	t.Run("NoCounter", func(t *testing.T) {
		got := derive(t, m, &DoublePipelineParameters{PRF: PRFHMACSHA256, KI: ki, FixedInput: fixed}, 32)

		a1 := hmacSHA256(ki, fixed)
		assert.Equal(t, hmacSHA256(ki, a1, fixed), got)
	})
}

func TestEncodeCounter(t *testing.T) {
	tests := []struct {
		bits int
		i    uint64
		want []byte
	}{
		{8, 1, []byte{0x01}},
		{8, 255, []byte{0xff}},
		{16, 0x0102, []byte{0x01, 0x02}},
		{24, 0x010203, []byte{0x01, 0x02, 0x03}},
		{32, 0xdeadbeef, []byte{0xde, 0xad, 0xbe, 0xef}},
	}

	for _, tt := range tests {
		dst := make([]byte, tt.bits/8)
		encodeCounter(dst, tt.i)
		assert.Equal(t, tt.want, dst)
	}
}

func TestCounterLimits(t *testing.T) {
	assert.Equal(t, uint64(255), counterBlocks(8))
	assert.Equal(t, uint64(1<<32-1), counterBlocks(32))
	assert.Equal(t, uint64(maxBlocksNoCounter), counterBlocks(0))

	assert.True(t, validCounterBits(24, false))
	assert.False(t, validCounterBits(0, false))
	assert.True(t, validCounterBits(0, true))
	assert.False(t, validCounterBits(12, true))
}
