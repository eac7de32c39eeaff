// selftest_builtin.go: Built-in boot self-tests and known-answer vectors
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"bytes"
	"errors"
	"fmt"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/crypto/curve25519"
)

// KAT key material shared by the SP800-108 vectors.
const (
	katKey16 = "dff1e50ac0b69dc40f1051d46c2b069c"
	katKey24 = "dff1e50ac0b69dc40f1051d46c2b069c7b8a35d8e4c2f1a6" // TripleDES-CMAC
)

// sp800108Vectors holds 32-byte outputs for each PRF:
//
//	counter:  prefix 01, suffix 02, r = 8
//	feedback: IV 000102..0f, fixed input 02, r = 8, counter after iteration
//	pipeline: fixed input 0102, r = 8, counter after fixed input
var sp800108Vectors = []struct {
	prf      PRF
	counter  string
	feedback string
	pipeline string
}{
	{PRFAESCMAC,
		"53023e21d00cc5046b15711bf768ab07aae915683abfbc39b9a0591fa9e0bf55",
		"e30c3e196fc54aef65fd9830ee60c82e49f7ef9ce5aa8719ef2d432efda13320",
		"116e29891fa2a96418e64882631c6139f29beed96b384ca6da1648dba52adcca"},
	{PRFTripleDESCMAC,
		"df9849616c7675c9f66e4ebd5a4581f2e0d46ee61192e5d44315b36d84bdeed4",
		"dc67f04ef8758c0353e8bada0067cadfc00a4816a7b26032e26ebe865bed3bb3",
		"a59a06eba7eced4c0833a5fec7ae51e77b1e4a193436bd57b8790febbd45b7e5"},
	{PRFHMACSHA1,
		"76f881b780e4939d485a5e00dbea1dc3212690c132ebf39757a2e69e9f356f31",
		"4d6b2cc56235b8e1293bd1376b0c355eab3363db1947ac12b746fd3a43ff3d6c",
		"7c297020b48e27c7a8dd778453d53455cdf4052a854b65b55ab79ab0f4aa0253"},
	{PRFHMACSHA224,
		"66db824abdf2b4e85de28b5b20f606fdef885d3b59cfd66c060fa645a53f4242",
		"76a4d27edc53a83ef187432dcf52754052b083631587360f3283ad0e83ca3227",
		"631f7cb18df2724bcf6f3309a0a61db7b42001cdf282e390eb3a13faf04186eb"},
	{PRFHMACSHA256,
		"3a46d9be7ab8ea0925589106f3cad6ec4669b352ef8198719dee7af002d28d35",
		"8dde8b641b28a2d5bcbfda717229fe383dddeb4e6120ea8870cba5292d6112b3",
		"3884f279e3ff4f91b0c78df09bcbf77fee502e97ed977c378ed263ccf2cef25d"},
	{PRFHMACSHA384,
		"d209b2f985ff77301fd1704c766c2859818723934f3e91ab399fcf8aae632e7d",
		"76b1dbe263ab1263ed7c64c5fb1700bdef0c4d0968774b2929a4a4c407c8a710",
		"71e554f58e46592fd297459596de4a26af8dde8cd71524fce0bbb27c682ba1a8"},
	{PRFHMACSHA512,
		"0c51da7c89503acc00505ffaba2866cf58262172a26c79eb54dcf1d3597bd334",
		"0005dd61da1b2e61ae90eb23c524f980cd1cae04c5f73bebe11ffb4d7190d35b",
		"4fa28acbfbcdd9f12cddb2b2aa2c5ed03423fb299eb3e5af743685f24ca719a9"},
	{PRFHMACSHA512224,
		"86e14446abd90b94c8283a6369ef1769dd770c1d0fdf7d5e54aee2d6541e2ba5",
		"e646dbcf0da360e0b21cfa5b1044a3c254550e2540f3fe0f415db46f6bc7de0f",
		"4c57ec3c745ce0e79cd02b22b599fac0886922260220892755a872c6f0c6739f"},
	{PRFHMACSHA512256,
		"26593c9ef9b39d94bafc2dfb6f06aad34034dec6802c747f0655945883d45f54",
		"55adae4b730f81f4cd8dd0fe9fab018ac4b49afbaebed6aaa794dde56d7114f0",
		"72d6c3aab0dc7e3bfdc3a0f020fbde7208db06ff6f50ab17718eed705eab9c95"},
	{PRFHMACSHA3224,
		"5d3b03f88c4e34efded68ca4aaf31870a0d37f45d49e1b997c60ea0a220424c4",
		"7f11c5d135ebb1d6a06dddca0ac0503a07a9a4419f1900f2b56af1ad2a620ede",
		"f0cb622f2f7eb567b57b979eee5c0e99ff78076cbb26d73ddc853ca1c7acaf35"},
	{PRFHMACSHA3256,
		"24a7d8773d12374c9907b715978266c728da0b345de4f8aac71db6f7e153f3c2",
		"52df273139e7b8bbfeeea228d22de74a5cc080482135dc02c3abe8bd4d08efb1",
		"8c8275e6b20467c80399d0a8e29cd31422599b3fbc35bd9afc8bb2817fac2629"},
	{PRFHMACSHA3384,
		"97896d8bcc5df341c156e5b093c9b198b3391e46c5832383bb9dfd8fca19e72e",
		"60d678c95b03465a0dc7eabf94ea73b3cb1f874727ee9bcbd4e184c5d5cb5e47",
		"1f9402b9db671a530c4d10792b4bc0115f62d652aebb9c5085ef62aa54f46f91"},
	{PRFHMACSHA3512,
		"174d4923b0d8bb50c9692889a7b307a378593de9928ac8926aedc6fb94fe0459",
		"32b01a8ba6a71108f7ef05cd563816cc0e1457d3675bfb05ea23fe275b306581",
		"8b68f4c3680466f6d31e3053ddb36d54e46b16cca0063bb02f948dbe622b93ad"},
}

// seqBytes returns n bytes counting up from start.
func seqBytes(start, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(start + i)
	}
	return b
}

func katKeyFor(prf PRF) []byte {
	if prf == PRFTripleDESCMAC {
		return mustHex(katKey24)
	}
	return mustHex(katKey16)
}

// SP800108KATParameters returns the built-in KAT parameter sets for prf in
// counter, feedback and double-pipeline order.
func SP800108KATParameters(prf PRF) []DerivationParameters {
	return []DerivationParameters{
		&CounterParameters{PRF: prf, KI: katKeyFor(prf),
			FixedInputPrefix: []byte{0x01}, FixedInputSuffix: []byte{0x02}, R: 8},
		&FeedbackParameters{PRF: prf, KI: katKeyFor(prf), IV: seqBytes(0, 16),
			FixedInput: []byte{0x02}, R: 8, Location: CounterAfterIteration},
		&DoublePipelineParameters{PRF: prf, KI: katKeyFor(prf),
			FixedInput: []byte{0x01, 0x02}, R: 8, Location: CounterAfterFixed},
	}
}

// deriveWith builds a calculator straight from params and provider, outside
// the guarded path, and returns n bytes.
func deriveWith(p EngineProvider, params DerivationParameters, n int) func() ([]byte, error) {
	return func() ([]byte, error) {
		if err := params.Validate(); err != nil {
			return nil, err
		}
		gen, err := buildGenerator(params, p)
		if err != nil {
			return nil, err
		}
		calc := newDerivationCalculator(params.Identity(), gen)
		defer calc.Destroy()
		return calc.GenerateBytes(n)
	}
}

func derivationKAT(p EngineProvider, params DerivationParameters, expected string) SelfTest {
	want := mustHex(expected)
	return NewKAT(params.Identity(), want, deriveWith(p, params, len(want)))
}

// RegisterBuiltinSelfTests registers every built-in family with tests that
// run against provider.
func RegisterBuiltinSelfTests(r *Registry, provider EngineProvider) {
	for _, v := range sp800108Vectors {
		params := SP800108KATParameters(v.prf)
		r.Register(FamilyKDFCounter, derivationKAT(provider, params[0], v.counter))
		r.Register(FamilyKDFFeedback, derivationKAT(provider, params[1], v.feedback))
		r.Register(FamilyKDFDoublePipeline, derivationKAT(provider, params[2], v.pipeline))
	}

	r.Register(FamilyTLSPRFLegacy, derivationKAT(provider, &TLSPRFParameters{
		Secret: seqBytes(0, 47),
		Label:  "master secret",
		Seed:   seqBytes(64, 32),
	}, "1b68116d9b48d4431a761c808c53f287bc7c9a90d9277b261442c1ceaf50252c06066a6a8258bedb28c5a66796c7bc19"))

	r.Register(FamilyTLSPRF12, derivationKAT(provider, &TLSPRFParameters{
		PRF:    PRFHMACSHA256,
		Secret: seqBytes(0, 48),
		Label:  "key expansion",
		Seed:   seqBytes(64, 64),
	}, "25b8932c0824c8f2962638ec1c6ec99e1b07457bc265278c23064c1d63c61e04"+
		"17053567ed3a0d6c431f60219bcc5357c4451e2e158a5edb30d23cd1f2e3b267"))

	r.Register(FamilySSHKDF, derivationKAT(provider, &SSHParameters{
		Digest:       DigestSHA256,
		SharedKey:    append(mustHex("0000002100"), bytes.Repeat([]byte{0xab}, 32)...),
		ExchangeHash: seqBytes(0, 32),
		SessionID:    seqBytes(100, 32),
		KeyType:      SSHInitialIVClientToServer,
	}, "5b44990ff21a76980bd0a7f7541fd34cedd830040c7c78c7f1e5ff8e1fcdc4851ae4c121cd2d3a85"))

	r.Register(FamilyIKEv2KDF,
		derivationKAT(provider, &IKEv2Parameters{
			PRF:       PRFHMACSHA256,
			SharedKey: seqBytes(0, 32),
			KeyPad:    []byte("IKEv2 key pad"),
			PRFPlus:   true,
		}, "3bdd147ac218a9960db693e47bcf12bc249a9bb7f14c42880a266483d42ad7e7b136968a60286d56a91e42f94b9287fe"),
		derivationKAT(provider, &IKEv2Parameters{
			PRF:       PRFHMACSHA256,
			SharedKey: seqBytes(0, 32),
			KeyPad:    []byte("IKEv2 key pad"),
		}, "3051d22efdba40789f40862d29b98866743785b1df8918687565ca0d16559729"))

	// RFC 3711 appendix B.3
	srtp := func(label byte, expected string) SelfTest {
		return derivationKAT(provider, &SRTPParameters{
			MasterKey:  mustHex("e1f97a0d3e018be0d64fa32c06de4139"),
			MasterSalt: mustHex("0ec675ad498afeebb6960b3aabe6"),
			Index:      make([]byte, 6),
			Label:      label,
		}, expected)
	}
	r.Register(FamilySRTPKDF,
		srtp(SRTPLabelEncryption, "c61e7a93744f39ee10734afe3ff7a087"),
		srtp(SRTPLabelSalt, "30cbbc08863d8c85d49db34a9ae1"),
		srtp(SRTPLabelAuthentication, "cebe321f6ff7716b6fd4ab49af256a156d38baa4"))

	r.Register(FamilyX963KDF, derivationKAT(provider, &X963Parameters{
		Digest:     DigestSHA256,
		Z:          seqBytes(0, 32),
		SharedInfo: []byte("shared info"),
	}, "a2ba25392f91013464ed530b7260876d7d85630fd24cd7894a49600ab4c7a8c33354555992b455eb"))

	r.Register(FamilyConcatenationKDF, derivationKAT(provider, &ConcatenationParameters{
		Digest:    DigestSHA256,
		Z:         seqBytes(0, 32),
		OtherInfo: []byte("other info"),
	}, "aeef5c9139c3631e52a140b69c6e0638e51afa133fc7245acc309f8cbb79e8afc39057eba9aa1a0d"))

	// RFC 5869 test case 1
	r.Register(FamilyHKDF, derivationKAT(provider, &HKDFParameters{
		Digest: DigestSHA256,
		IKM:    bytes.Repeat([]byte{0x0b}, 22),
		Salt:   seqBytes(0, 13),
		Info:   seqBytes(0xf0, 10),
	}, "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865"))

	r.Register(FamilyAgreement, agreementConsistencyTest(provider))

	// RFC 7748 section 6.1
	r.Register(FamilyX25519, NewKAT(NewIdentity(FamilyX25519, ""),
		mustHex("4a5d9d5ba4ce2de1728e3bf480350f25e07e21c947d19e3376f09b3c1e161742"),
		func() ([]byte, error) {
			return curve25519.X25519(
				mustHex("77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a"),
				mustHex("de9edb7d7b7dc1b4d35b61c2ece435373f8343c85b78674dadfc7e146f882b4f"))
		}))

	r.Register(FamilyEntropy, entropyVariantTest())
}

// agreementConsistencyTest agrees on a throwaway X25519 pair from both sides
// and checks that MAC post-processing of both values matches.
func agreementConsistencyTest(provider EngineProvider) SelfTest {
	cfg := AgreementConfig{Mode: AgreementMAC, PRF: PRFHMACSHA256}
	return NewConsistencyTest(cfg.Identity(), func() (bool, error) {
		a, err := randomBytes(curve25519.ScalarSize)
		if err != nil {
			return false, err
		}
		b, err := randomBytes(curve25519.ScalarSize)
		if err != nil {
			return false, err
		}
		defer zeroizeAll(a, b)

		pubA, err := curve25519.X25519(a, curve25519.Basepoint)
		if err != nil {
			return false, err
		}
		pubB, err := curve25519.X25519(b, curve25519.Basepoint)
		if err != nil {
			return false, err
		}

		zA, err := curve25519.X25519(a, pubB)
		if err != nil {
			return false, err
		}
		zB, err := curve25519.X25519(b, pubA)
		if err != nil {
			return false, err
		}
		defer zeroizeAll(zA, zB)

		outA, err := postProcess(provider, cfg, zA)
		if err != nil {
			return false, err
		}
		defer outA.Destroy()
		outB, err := postProcess(provider, cfg, zB)
		if err != nil {
			return false, err
		}
		defer outB.Destroy()

		ka, _ := outA.Bytes()
		kb, _ := outB.Bytes()
		return len(ka) > 0 && equalBytes(ka, kb), nil
	})
}

// repeatingSource returns the same sample on every call.
type repeatingSource struct{ sample []byte }

func (s *repeatingSource) GetEntropy() ([]byte, error) { return s.sample, nil }
func (s *repeatingSource) EntropySize() int            { return len(s.sample) }

// countingSource returns distinct samples.
type countingSource struct{ n byte }

func (s *countingSource) GetEntropy() ([]byte, error) {
	s.n++
	return bytes.Repeat([]byte{s.n}, 16), nil
}
func (s *countingSource) EntropySize() int { return 16 }

// entropyVariantTest checks the continuous tester itself: distinct samples
// must pass and an injected repeat must be reported. It uses a private fail
// callback, so a detected repeat does not latch the module.
func entropyVariantTest() SelfTest {
	id := NewIdentity(FamilyEntropy, ContinuousVariation)
	return NewVariantTest(id, func() error {
		good := newContinuousEntropySource(&countingSource{}, nil, nil, nil)
		for i := 0; i < 3; i++ {
			if _, err := good.GetEntropy(); err != nil {
				return goerrors.Wrap(err, ErrCodeSelfTest, "distinct samples rejected")
			}
		}

		latched := 0
		bad := newContinuousEntropySource(&repeatingSource{sample: bytes.Repeat([]byte{0x5a}, 16)},
			func(_ AlgorithmIdentity, cause error) error {
				latched++
				return cause
			}, nil, nil)
		_, err := bad.GetEntropy()
		if !errors.Is(err, ErrDuplicateEntropy) || latched != 1 {
			return goerrors.New(ErrCodeSelfTest, fmt.Sprintf("repeated sample not detected (err=%v)", err))
		}
		return nil
	})
}
