// errors.go: Error taxonomy for the themis cryptographic module.
//
// Module fatal errors latch the status gate, policy and input validation
// errors are per call, and contract errors flag misuse of destroyed objects.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"errors"
	"fmt"
)

// Public standard errors. Every error returned by the module wraps exactly one
// of these, so callers can classify failures with errors.Is.
var (
	// ErrModuleFailed is returned by every guarded operation once the module
	// status gate has latched into the error state.
	ErrModuleFailed = errors.New("themis: module in error state")

	// ErrSelfTestFailed is returned when a KAT, consistency or variant test fails.
	ErrSelfTestFailed = errors.New("themis: self-test failed")

	// ErrDuplicateEntropy is returned when two consecutive entropy samples match.
	ErrDuplicateEntropy = errors.New("themis: duplicate entropy block")

	// ErrNotApproved is returned in approved-only mode for algorithms outside
	// the approved list.
	ErrNotApproved = errors.New("themis: algorithm not approved")

	// ErrPRFNotPermitted is returned in approved-only mode for PRFs that are too
	// weak for the requested use.
	ErrPRFNotPermitted = errors.New("themis: PRF not permitted")

	// ErrInvalidParameter is returned for malformed derivation or agreement parameters.
	ErrInvalidParameter = errors.New("themis: invalid parameter")

	// ErrInvalidKeySize is returned when key material has an unsupported length.
	ErrInvalidKeySize = errors.New("themis: invalid key size")

	// ErrUnsupportedAlgorithm is returned for unknown PRF, digest or mode values.
	ErrUnsupportedAlgorithm = errors.New("themis: unsupported algorithm")

	// ErrOutputLimitExceeded is returned when a calculator is asked for more
	// output than its counter or block limit allows.
	ErrOutputLimitExceeded = errors.New("themis: output limit exceeded")

	// ErrCalculatorDestroyed is returned when a destroyed calculator is used.
	ErrCalculatorDestroyed = errors.New("themis: calculator destroyed")

	// ErrSecretDestroyed is returned when a destroyed secret is read.
	ErrSecretDestroyed = errors.New("themis: secret destroyed")

	// ErrProviderUnavailable is returned when the engine provider is missing,
	// failed to initialize or reports itself unhealthy.
	ErrProviderUnavailable = errors.New("themis: engine provider unavailable")
)

// Error codes for rich error handling
const (
	ErrCodeModuleFailed      = "THEMIS_MODULE_FAILED"
	ErrCodeSelfTest          = "THEMIS_SELF_TEST"
	ErrCodeDuplicateEntropy  = "THEMIS_DUPLICATE_ENTROPY"
	ErrCodeEntropySource     = "THEMIS_ENTROPY_SOURCE"
	ErrCodeNotApproved       = "THEMIS_NOT_APPROVED"
	ErrCodePRFNotPermitted   = "THEMIS_PRF_NOT_PERMITTED"
	ErrCodeInvalidParameter  = "THEMIS_INVALID_PARAMETER"
	ErrCodeInvalidKeySize    = "THEMIS_INVALID_KEY_SIZE"
	ErrCodeUnsupported       = "THEMIS_UNSUPPORTED"
	ErrCodeOutputLimit       = "THEMIS_OUTPUT_LIMIT"
	ErrCodeDestroyed         = "THEMIS_DESTROYED"
	ErrCodeProvider          = "THEMIS_PROVIDER"
	ErrCodeProviderNotFound  = "THEMIS_PROVIDER_NOT_FOUND"
	ErrCodeProviderUnhealthy = "THEMIS_PROVIDER_UNHEALTHY"
	ErrCodeConfig            = "THEMIS_CONFIG"
)

// ModuleError is the latched failure of the module status gate. The same
// *ModuleError value is returned by every guarded call after the latch.
type ModuleError struct {
	Identity AlgorithmIdentity // algorithm whose test failed, zero if not tied to one
	Message  string
	Err      error
}

func (e *ModuleError) Error() string {
	if e.Identity.IsZero() {
		return fmt.Sprintf("themis: module failed: %s", e.Message)
	}
	return fmt.Sprintf("themis: module failed [%s]: %s", e.Identity, e.Message)
}

// Unwrap exposes ErrModuleFailed together with the original cause.
func (e *ModuleError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrModuleFailed}
	}
	return []error{ErrModuleFailed, e.Err}
}

// PolicyError is a per-call rejection by the approved-only policy. It does
// not affect module status.
type PolicyError struct {
	Identity AlgorithmIdentity
	Reason   string
	Err      error // ErrNotApproved or ErrPRFNotPermitted
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("themis: policy rejected %s: %s", e.Identity, e.Reason)
}

// Unwrap returns ErrNotApproved or ErrPRFNotPermitted.
func (e *PolicyError) Unwrap() error {
	return e.Err
}
