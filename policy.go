// policy.go: Approved-only mode and the guarded construction path
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"fmt"
	"sync/atomic"

	goerrors "github.com/agilira/go-errors"
)

var approvedOnlyMode atomic.Bool

// SetApprovedOnlyMode switches the process-wide approved-only policy.
func SetApprovedOnlyMode(enabled bool) {
	approvedOnlyMode.Store(enabled)
}

// IsApprovedOnlyMode reports the process-wide approved-only policy.
func IsApprovedOnlyMode() bool {
	return approvedOnlyMode.Load()
}

// IsApproved reports whether id is on the approved list. Every derivation
// family is approved, including the TLS 1.0/1.1 PRF. X25519 and pass-through
// agreement are not.
func IsApproved(id AlgorithmIdentity) bool {
	switch id.Family {
	case FamilyKDFCounter, FamilyKDFFeedback, FamilyKDFDoublePipeline,
		FamilyTLSPRFLegacy, FamilyTLSPRF12, FamilySSHKDF, FamilyIKEv2KDF,
		FamilySRTPKDF, FamilyX963KDF, FamilyConcatenationKDF, FamilyHKDF,
		FamilyEntropy:
		return true
	case FamilyAgreement:
		return id.Variation != string(AgreementPassThrough)
	default:
		return false
	}
}

// weakForAgreement reports PRFs whose strength is insufficient to condition
// an agreement value in approved-only mode.
func weakForAgreement(prf PRF) bool {
	return prf == PRFTripleDESCMAC
}

func checkApproved(id AlgorithmIdentity) error {
	if IsApproved(id) {
		return nil
	}
	reason := "not on the approved list"
	return &PolicyError{
		Identity: id,
		Reason:   reason,
		Err:      fmt.Errorf("%w: %w", ErrNotApproved, goerrors.New(ErrCodeNotApproved, reason)),
	}
}

func prfNotPermitted(id AlgorithmIdentity, prf PRF) error {
	reason := fmt.Sprintf("%s is not permitted for agreement post-processing", prf)
	return &PolicyError{
		Identity: id,
		Reason:   reason,
		Err:      fmt.Errorf("%w: %w", ErrPRFNotPermitted, goerrors.New(ErrCodePRFNotPermitted, reason)),
	}
}

// guarded runs the construction discipline shared by every factory:
//
//  1. the module status gate must report ready
//  2. in approved-only mode, policy must accept the request
//  3. the identity's first-construction self-tests must pass
//  4. build runs against the module's engine provider
//
// It runs on every call. A self-test failure in step 3 latches the gate.
func guarded[T any](m *Module, id AlgorithmIdentity, policy func() error, build func(EngineProvider) (T, error)) (T, error) {
	var zero T

	if _, err := m.gate.IsReady(); err != nil {
		return zero, err
	}

	if m.approvedOnly() {
		if policy == nil {
			policy = func() error { return checkApproved(id) }
		}
		if err := policy(); err != nil {
			m.logger.Debug("themis policy rejection", "identity", id.String(), "error", err.Error())
			return zero, err
		}
	}

	provider, err := m.providers.GetProvider(m.providerName)
	if err != nil {
		return zero, err
	}

	if err := m.validated.ensure(id, func() error { return m.registry.RunIdentity(id) }); err != nil {
		return zero, m.gate.Fail(id, err)
	}

	return build(provider)
}
