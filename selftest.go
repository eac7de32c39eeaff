// selftest.go: Self-test framework, boot registry and validated-identity cache
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"errors"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/agilira/go-errors"
	timecache "github.com/agilira/go-timecache"
	lru "github.com/hashicorp/golang-lru"
)

// SelfTestKind is the evaluation shape of a self-test.
type SelfTestKind int

const (
	KindKAT         SelfTestKind = iota + 1 // known-answer comparison
	KindConsistency                         // round trip between two engines
	KindVariant                             // free-form check of a variation
)

// String returns "KAT", "consistency" or "variant".
func (k SelfTestKind) String() string {
	switch k {
	case KindKAT:
		return "KAT"
	case KindConsistency:
		return "consistency"
	case KindVariant:
		return "variant"
	default:
		return "unknown"
	}
}

// SelfTest is one test bound to exactly one algorithm identity.
type SelfTest struct {
	Identity AlgorithmIdentity
	Kind     SelfTestKind
	run      func() error
}

// SelfTestError reports a failed self-test. It unwraps to ErrSelfTestFailed
// and to the underlying cause, if any.
type SelfTestError struct {
	Identity AlgorithmIdentity
	Kind     SelfTestKind
	Reason   string
	Err      error
}

// Error reports the kind, identity and reason of the failure.
func (e *SelfTestError) Error() string {
	return fmt.Sprintf("themis: %s self-test failed for %s: %s", e.Kind, e.Identity, e.Reason)
}

// Unwrap returns ErrSelfTestFailed and the cause, if any.
func (e *SelfTestError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSelfTestFailed}
	}
	return []error{ErrSelfTestFailed, e.Err}
}

func asSelfTestError(err error) (*SelfTestError, bool) {
	var ste *SelfTestError
	ok := errors.As(err, &ste)
	return ste, ok
}

// NewKAT returns a known-answer test. compute must produce at least
// len(expected) bytes; the leading bytes must equal expected exactly.
func NewKAT(id AlgorithmIdentity, expected []byte, compute func() ([]byte, error)) SelfTest {
	want := cloneBytes(expected)
	return SelfTest{
		Identity: id,
		Kind:     KindKAT,
		run: func() error {
			got, err := compute()
			defer Zeroize(got)
			if err != nil {
				return goerrors.Wrap(err, ErrCodeSelfTest, "KAT computation failed")
			}
			if len(got) < len(want) || !equalBytes(got[:len(want)], want) {
				return goerrors.New(ErrCodeSelfTest, "KAT output mismatch")
			}
			return nil
		},
	}
}

// NewConsistencyTest returns a round-trip test. check builds its own
// throwaway objects and reports whether both sides agreed.
func NewConsistencyTest(id AlgorithmIdentity, check func() (bool, error)) SelfTest {
	return SelfTest{
		Identity: id,
		Kind:     KindConsistency,
		run: func() error {
			ok, err := check()
			if err != nil {
				return goerrors.Wrap(err, ErrCodeSelfTest, "consistency check raised an error")
			}
			if !ok {
				return goerrors.New(ErrCodeSelfTest, "consistency check mismatch")
			}
			return nil
		},
	}
}

// NewVariantTest returns a free-form test that signals failure by returning
// an error.
func NewVariantTest(id AlgorithmIdentity, check func() error) SelfTest {
	return SelfTest{
		Identity: id,
		Kind:     KindVariant,
		run:      check,
	}
}

// Run executes the test. Any error or panic becomes a *SelfTestError.
func (t SelfTest) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SelfTestError{Identity: t.Identity, Kind: t.Kind, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if t.run == nil {
		return &SelfTestError{Identity: t.Identity, Kind: t.Kind, Reason: "test has no body"}
	}
	if cause := t.run(); cause != nil {
		return &SelfTestError{Identity: t.Identity, Kind: t.Kind, Reason: cause.Error(), Err: cause}
	}
	return nil
}

// Registry is the explicit, ordered list of algorithm families and their
// static self-tests run by the boot sequence.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	byFam   map[string][]SelfTest
	byIdent map[AlgorithmIdentity][]SelfTest
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byFam:   make(map[string][]SelfTest),
		byIdent: make(map[AlgorithmIdentity][]SelfTest),
	}
}

// Register appends tests to family. Families run in first-registration order.
func (r *Registry) Register(family string, tests ...SelfTest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byFam[family]; !ok {
		r.order = append(r.order, family)
	}
	r.byFam[family] = append(r.byFam[family], tests...)
	for _, t := range tests {
		r.byIdent[t.Identity] = append(r.byIdent[t.Identity], t)
	}
}

// Families returns the registered families in boot order.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tests returns the tests registered for family.
func (r *Registry) Tests(family string) []SelfTest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SelfTest(nil), r.byFam[family]...)
}

// RunFamily runs every test of family and stops at the first failure.
func (r *Registry) RunFamily(family string) error {
	for _, t := range r.Tests(family) {
		if err := t.Run(); err != nil {
			return err
		}
	}
	return nil
}

// RunIdentity runs the tests bound to id. An identity without dedicated
// tests passes; its family was covered at boot.
func (r *Registry) RunIdentity(id AlgorithmIdentity) error {
	r.mu.RLock()
	tests := append([]SelfTest(nil), r.byIdent[id]...)
	r.mu.RUnlock()

	for _, t := range tests {
		if err := t.Run(); err != nil {
			return err
		}
	}
	return nil
}

// validatedCache remembers which identities passed their first-construction
// self-tests. Entries evicted from the bounded cache are simply retested.
type validatedCache struct {
	mu    sync.Mutex // held while a test runs so it never runs twice concurrently
	cache *lru.Cache
}

func newValidatedCache(size int) (*validatedCache, error) {
	if size <= 0 {
		size = DefaultSelfTestCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrCodeConfig, "failed to create self-test cache")
	}
	return &validatedCache{cache: c}, nil
}

// ensure runs test for id unless id is already validated.
func (c *validatedCache) ensure(id AlgorithmIdentity, test func() error) error {
	if c.cache.Contains(id) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache.Contains(id) {
		return nil
	}
	if err := test(); err != nil {
		return err
	}
	c.cache.Add(id, timecache.CachedTime())
	return nil
}

// validatedAt returns when id was validated, if it is cached.
func (c *validatedCache) validatedAt(id AlgorithmIdentity) (time.Time, bool) {
	v, ok := c.cache.Peek(id)
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}
