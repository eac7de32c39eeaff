// selftest_test.go: Self-test framework, registry and validated cache tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testID = NewIdentity("Test", "unit")

func TestKATPrefixMatch(t *testing.T) {
	want := []byte{1, 2, 3}

	pass := NewKAT(testID, want, func() ([]byte, error) { return []byte{1, 2, 3, 4, 5}, nil })
	assert.Equal(t, KindKAT, pass.Kind)
	assert.NoError(t, pass.Run(), "extra output bytes are ignored")

	mismatch := NewKAT(testID, want, func() ([]byte, error) { return []byte{1, 2, 4}, nil })
	assert.ErrorIs(t, mismatch.Run(), ErrSelfTestFailed)

	short := NewKAT(testID, want, func() ([]byte, error) { return []byte{1, 2}, nil })
	assert.ErrorIs(t, short.Run(), ErrSelfTestFailed)

	cause := errors.New("engine offline")
	failing := NewKAT(testID, want, func() ([]byte, error) { return nil, cause })
	err := failing.Run()
	assert.ErrorIs(t, err, ErrSelfTestFailed)
	ste, ok := asSelfTestError(err)
	require.True(t, ok)
	assert.NotNil(t, ste.Err)
}

func TestKATCopiesExpected(t *testing.T) {
	want := []byte{9, 9}
	kat := NewKAT(testID, want, func() ([]byte, error) { return []byte{9, 9}, nil })
	want[0] = 0
	assert.NoError(t, kat.Run())
}

func TestConsistencyAndVariantTests(t *testing.T) {
	ok := NewConsistencyTest(testID, func() (bool, error) { return true, nil })
	assert.Equal(t, KindConsistency, ok.Kind)
	assert.NoError(t, ok.Run())

	mismatch := NewConsistencyTest(testID, func() (bool, error) { return false, nil })
	assert.ErrorIs(t, mismatch.Run(), ErrSelfTestFailed)

	raised := NewConsistencyTest(testID, func() (bool, error) { return true, errors.New("boom") })
	assert.ErrorIs(t, raised.Run(), ErrSelfTestFailed)

	variant := NewVariantTest(testID, func() error { return errors.New("variant broke") })
	assert.Equal(t, KindVariant, variant.Kind)
	err := variant.Run()
	require.Error(t, err)

	ste, isSTE := asSelfTestError(err)
	require.True(t, isSTE)
	assert.Equal(t, testID, ste.Identity)
	assert.Equal(t, KindVariant, ste.Kind)
	assert.Equal(t, "variant broke", ste.Reason)
	assert.Contains(t, err.Error(), "variant self-test failed for Test/unit")
}

func TestSelfTestRecoversPanic(t *testing.T) {
	st := NewVariantTest(testID, func() error { panic("index out of range") })
	err := st.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSelfTestFailed)
	assert.Contains(t, err.Error(), "panic: index out of range")
}

func TestSelfTestWithoutBody(t *testing.T) {
	var st SelfTest
	assert.ErrorIs(t, st.Run(), ErrSelfTestFailed)
}

func TestSelfTestKindString(t *testing.T) {
	assert.Equal(t, "KAT", KindKAT.String())
	assert.Equal(t, "consistency", KindConsistency.String())
	assert.Equal(t, "variant", KindVariant.String())
	assert.Equal(t, "unknown", SelfTestKind(0).String())
}

func TestRegistryOrderAndLookup(t *testing.T) {
	r := NewRegistry()
	var trace []string
	record := func(name string) SelfTest {
		return NewVariantTest(NewIdentity(name, ""), func() error {
			trace = append(trace, name)
			return nil
		})
	}

	r.Register("B", record("b1"))
	r.Register("A", record("a1"))
	r.Register("B", record("b2"))

	assert.Equal(t, []string{"B", "A"}, r.Families())
	assert.Len(t, r.Tests("B"), 2)
	assert.Empty(t, r.Tests("missing"))

	require.NoError(t, r.RunFamily("B"))
	assert.Equal(t, []string{"b1", "b2"}, trace)

	require.NoError(t, r.RunIdentity(NewIdentity("a1", "")))
	assert.Equal(t, []string{"b1", "b2", "a1"}, trace)

	assert.NoError(t, r.RunIdentity(NewIdentity("untested", "x")), "identities without tests pass")
}

func TestRegistryStopsAtFirstFailure(t *testing.T) {
	r := NewRegistry()
	var ran int32
	r.Register("F",
		NewVariantTest(testID, func() error { return errors.New("first") }),
		NewVariantTest(testID, func() error {
			atomic.AddInt32(&ran, 1)
			return nil
		}),
	)

	assert.Error(t, r.RunFamily("F"))
	assert.Error(t, r.RunIdentity(testID))
	assert.Zero(t, atomic.LoadInt32(&ran))
}

func TestBuiltinSelfTestsPass(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltinSelfTests(r, NewSoftwareProvider())

	assert.Equal(t, []string{
		FamilyKDFCounter, FamilyKDFFeedback, FamilyKDFDoublePipeline,
		FamilyTLSPRFLegacy, FamilyTLSPRF12, FamilySSHKDF, FamilyIKEv2KDF,
		FamilySRTPKDF, FamilyX963KDF, FamilyConcatenationKDF, FamilyHKDF,
		FamilyAgreement, FamilyX25519, FamilyEntropy,
	}, r.Families())

	assert.Len(t, r.Tests(FamilyKDFCounter), len(SupportedPRFs()))

	for _, family := range r.Families() {
		t.Run(family, func(t *testing.T) {
			assert.NoError(t, r.RunFamily(family))
		})
	}
}

func TestValidatedCacheRunsOnce(t *testing.T) {
	c, err := newValidatedCache(0)
	require.NoError(t, err)

	var runs int32
	test := func() error {
		atomic.AddInt32(&runs, 1)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.ensure(testID, test))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	_, ok := c.validatedAt(testID)
	assert.True(t, ok)
}

func TestValidatedCacheFailureIsNotCached(t *testing.T) {
	c, err := newValidatedCache(16)
	require.NoError(t, err)

	calls := 0
	fail := func() error {
		calls++
		return errors.New("mismatch")
	}
	assert.Error(t, c.ensure(testID, fail))
	assert.Error(t, c.ensure(testID, fail))
	assert.Equal(t, 2, calls)

	_, ok := c.validatedAt(testID)
	assert.False(t, ok)
}

func TestValidatedCacheEviction(t *testing.T) {
	c, err := newValidatedCache(16)
	require.NoError(t, err)

	pass := func() error { return nil }
	for i := 0; i < 17; i++ {
		require.NoError(t, c.ensure(NewIdentity("Evict", fmt.Sprint(i)), pass))
	}

	_, ok := c.validatedAt(NewIdentity("Evict", "0"))
	assert.False(t, ok, "the oldest identity is evicted")
	_, ok = c.validatedAt(NewIdentity("Evict", "16"))
	assert.True(t, ok)
}
