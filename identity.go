// identity.go: Algorithm identities used as dispatch keys and self-test labels.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

// Algorithm families known to the module. Each family owns a set of static
// self-tests that must pass before the module reports ready.
const (
	FamilyKDFCounter        = "SP800-108-Counter"
	FamilyKDFFeedback       = "SP800-108-Feedback"
	FamilyKDFDoublePipeline = "SP800-108-DoublePipeline"
	FamilyTLSPRFLegacy      = "TLS-PRF-1.0"
	FamilyTLSPRF12          = "TLS-PRF-1.2"
	FamilySSHKDF            = "SSH-KDF"
	FamilyIKEv2KDF          = "IKEv2-KDF"
	FamilySRTPKDF           = "SRTP-KDF"
	FamilyX963KDF           = "X9.63-KDF"
	FamilyConcatenationKDF  = "Concatenation-KDF"
	FamilyHKDF              = "HKDF"
	FamilyAgreement         = "Agreement"
	FamilyX25519            = "X25519"
	FamilyEntropy           = "Entropy"
)

// AlgorithmIdentity is an immutable (family, variation) pair, for example
// {SP800-108-Counter, HMAC-SHA256}.
//
// Two identities are equal iff both fields match, so the type can be used
// directly as a map key. Every self-test failure and policy rejection carries
// the identity it concerns.
type AlgorithmIdentity struct {
	Family    string `json:"family"`
	Variation string `json:"variation,omitempty"`
}

// NewIdentity returns the identity for family and variation.
func NewIdentity(family, variation string) AlgorithmIdentity {
	return AlgorithmIdentity{Family: family, Variation: variation}
}

// String renders the identity as "family/variation", or just the family when
// the variation is empty.
func (a AlgorithmIdentity) String() string {
	if a.Variation == "" {
		return a.Family
	}
	return a.Family + "/" + a.Variation
}

// IsZero reports whether the identity is unset.
func (a AlgorithmIdentity) IsZero() bool {
	return a.Family == "" && a.Variation == ""
}
