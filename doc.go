// Package themis is a self-testing cryptographic module for key derivation
// and key agreement post-processing.
//
// Every engine the package hands out is constructed under a validated-operation
// discipline:
//   - a module status gate runs the known-answer, consistency and variant
//     self-tests of every algorithm family once, and refuses all work forever
//     after the first failure
//   - an approved-only policy rejects algorithms and PRFs outside the approved list
//   - the first construction of each algorithm identity re-runs its own KATs
//   - intermediate secret buffers are zeroed, and raw agreement values are
//     destroyed in place once consumed
//
// Derivation engines:
//   - SP800-108 counter, feedback and double-pipeline modes over AES-CMAC,
//     TripleDES-CMAC, HMAC-SHA1/SHA2 and HMAC-SHA3
//   - TLS 1.0/1.1 and TLS 1.2 PRFs
//   - SSH, IKEv2 and SRTP key derivation
//   - X9.63, SP800-56 concatenation and HKDF
//
// # Quick Start
//
//	m, err := themis.NewModule(nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//
//	ki, _ := themis.KeyFromHex("dff1e50ac0b69dc40f1051d46c2b069c")
//	calc, err := m.NewDerivationCalculator(&themis.CounterParameters{
//		PRF:              themis.PRFHMACSHA256,
//		KI:               ki,
//		FixedInputPrefix: []byte{0x01},
//		FixedInputSuffix: []byte{0x02},
//		R:                8,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer calc.Destroy()
//
//	key, _ := calc.GenerateBytes(10)
//	fmt.Println(themis.KeyToHex(key)) // Output: 3a46d9be7ab8ea092558
//
// Calculators are streams: asking for 4 bytes and then 6 more yields the same
// 10 bytes as a single request.
//
// # Agreement Post-Processing
//
// A raw agreement value Z is consumed by an AgreementPostProcessor. Z is
// zeroed in place once it has been read, whatever the outcome:
//
//	pp, err := m.NewAgreementPostProcessor(themis.AgreementConfig{
//		Mode:         themis.AgreementKDF,
//		KDF:          themis.KDFHKDF,
//		Digest:       themis.DigestSHA256,
//		Salt:         salt,
//		OutputLength: 32,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	key, err := pp.Process(themis.NewSecret(z)) // z now reads as zeros
//
// # Module Status
//
// IsReady boots the module on first use. A failed self-test or a duplicate
// entropy block latches the module into the error state; every guarded call
// then returns the same *ModuleError, which matches ErrModuleFailed with
// errors.Is.
//
// # Approved-Only Mode
//
//	themis.SetApprovedOnlyMode(true)
//
// In approved-only mode X25519 and pass-through agreement are refused with
// ErrNotApproved, and TripleDES-CMAC is refused for agreement
// post-processing with ErrPRFNotPermitted.
//
// # Engine Providers
//
// MACs, digests and block ciphers come from an EngineProvider. The built-in
// SoftwareProvider is registered automatically; other providers are added
// with WithProvider or a ProviderManager, and the boot self-tests validate
// whichever provider is selected.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package themis
