// status.go: Module status gate (Booting -> Ready | Error)
//
// The gate runs the boot self-tests exactly once under a single lock.
// Concurrent callers block until boot completes. Error is terminal, and
// once latched the same *ModuleError is returned to every caller without
// taking the lock again.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	timecache "github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// State is the module lifecycle state.
type State int32

const (
	// StateBooting is the initial state; boot has not completed.
	StateBooting State = iota
	// StateReady means every boot self-test passed.
	StateReady
	// StateError is terminal. Every guarded call returns the latched error.
	StateError
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateBooting:
		return "booting"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ModuleStatus is a point in time snapshot of the gate.
type ModuleStatus struct {
	State    State             `json:"state"`
	Message  string            `json:"message,omitempty"`
	Identity AlgorithmIdentity `json:"identity,omitempty"` // failed algorithm, if any
	BootID   string            `json:"boot_id"`
	Since    time.Time         `json:"since"` // time of the last transition
}

// Gate is the module status state machine. The zero value is not usable;
// create gates with NewGate.
type Gate struct {
	mu       sync.Mutex // serializes boot
	state    atomic.Int32
	latched  atomic.Pointer[ModuleError]
	since    atomic.Int64 // unix nanos of last transition
	bootID   string
	registry *Registry
	logger   *slog.Logger
}

// NewGate returns a gate in the Booting state that will run every family of
// registry on the first IsReady call.
func NewGate(registry *Registry, logger *slog.Logger) *Gate {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Gate{
		bootID:   uuid.NewString(),
		registry: registry,
		logger:   logger,
	}
	g.since.Store(timecache.CachedTime().UnixNano())
	return g
}

// IsReady boots the module on first call and afterwards reports the stored
// outcome. It returns the latched *ModuleError once the gate is in Error.
func (g *Gate) IsReady() (bool, error) {
	if ok, done, err := g.settled(); done {
		return ok, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if ok, done, err := g.settled(); done {
		return ok, err
	}
	return g.boot()
}

func (g *Gate) settled() (ok, done bool, err error) {
	switch State(g.state.Load()) {
	case StateReady:
		return true, true, nil
	case StateError:
		return false, true, g.latched.Load()
	}
	return false, false, nil
}

// boot runs under g.mu.
func (g *Gate) boot() (bool, error) {
	start := time.Now()
	families := g.registry.Families()
	g.logger.Info("themis boot started", "boot_id", g.bootID, "families", len(families))

	for _, family := range families {
		if err := g.registry.RunFamily(family); err != nil {
			var id AlgorithmIdentity
			if ste, ok := asSelfTestError(err); ok {
				id = ste.Identity
			} else {
				id = NewIdentity(family, "")
			}
			return false, g.Fail(id, err)
		}
	}

	if !g.state.CompareAndSwap(int32(StateBooting), int32(StateReady)) {
		// Fail raced with boot from another path; report the latch.
		return false, g.latched.Load()
	}
	g.since.Store(timecache.CachedTime().UnixNano())
	g.logger.Info("themis boot completed", "boot_id", g.bootID,
		"duration", time.Since(start), "state", StateReady.String())
	return true, nil
}

// Fail latches the gate into Error for cause and returns the latched error.
// Only the first failure is recorded; later calls return the original
// *ModuleError. Fail never takes the boot lock, so self-tests and entropy
// checks may call it while boot is in progress.
func (g *Gate) Fail(id AlgorithmIdentity, cause error) error {
	msg := "unspecified failure"
	if cause != nil {
		msg = cause.Error()
	}
	e := &ModuleError{Identity: id, Message: msg, Err: cause}
	if !g.latched.CompareAndSwap(nil, e) {
		return g.latched.Load()
	}
	g.state.Store(int32(StateError))
	g.since.Store(timecache.CachedTime().UnixNano())
	g.logger.Error("themis module failed", "boot_id", g.bootID,
		"identity", id.String(), "error", msg)
	return e
}

// Err returns the latched *ModuleError, or nil while the gate has not failed.
// It never boots and never blocks.
func (g *Gate) Err() error {
	if e := g.latched.Load(); e != nil {
		return e
	}
	return nil
}

// Status returns a snapshot without triggering boot.
func (g *Gate) Status() ModuleStatus {
	st := ModuleStatus{
		State:  State(g.state.Load()),
		BootID: g.bootID,
		Since:  time.Unix(0, g.since.Load()),
	}
	if e := g.latched.Load(); e != nil {
		st.State = StateError
		st.Message = e.Message
		st.Identity = e.Identity
	}
	return st
}

// WaitReady boots the gate unless ctx is already done. Boot itself is
// bounded CPU work and is not interrupted.
func (g *Gate) WaitReady(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.IsReady()
	return err
}
