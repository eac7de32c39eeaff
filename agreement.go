// agreement.go: Post-processing of raw key agreement values
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// AgreementMode selects how a raw agreement value Z becomes key material.
type AgreementMode string

const (
	// AgreementMAC: output = MAC(salt or zero key, Z)
	AgreementMAC AgreementMode = "MAC"
	// AgreementDigest: output = Hash(Z)
	AgreementDigest AgreementMode = "Digest"
	// AgreementKDF: Z is the input key of a KDF, salt is its IV or context
	AgreementKDF AgreementMode = "KDF"
	// AgreementPassThrough: output = Z, refused in approved-only mode
	AgreementPassThrough AgreementMode = "PassThrough"
)

// KDFAlgorithm selects the engine used in AgreementKDF mode.
type KDFAlgorithm string

const (
	KDFCounter        KDFAlgorithm = "Counter"        // SP800-108 counter mode, Salt is the fixed input
	KDFFeedback       KDFAlgorithm = "Feedback"       // SP800-108 feedback mode, Salt is the IV
	KDFDoublePipeline KDFAlgorithm = "DoublePipeline" // SP800-108 double-pipeline mode, Salt is the fixed input
	KDFX963           KDFAlgorithm = "X9.63"          // Salt is SharedInfo
	KDFConcatenation  KDFAlgorithm = "Concatenation"  // Salt is OtherInfo
	KDFHKDF           KDFAlgorithm = "HKDF"           // Salt is the HKDF salt
)

// agreementCounterBits is the counter length used by the SP800-108 modes
// when they condition an agreement value.
const agreementCounterBits = 32

// AgreementConfig is the post-processing policy of an agreement. Salt is
// the MAC key in MAC mode and the IV or context input of the KDF in KDF
// mode:
//
//	Counter        fixed input suffix
//	Feedback       IV (counter after iteration)
//	DoublePipeline fixed input
//	X9.63          SharedInfo
//	Concatenation  OtherInfo
//	HKDF           salt
type AgreementConfig struct {
	Mode         AgreementMode
	PRF          PRF          // MAC mode and the SP800-108 KDFs
	Digest       Digest       // Digest mode, X9.63, Concatenation and HKDF
	KDF          KDFAlgorithm // KDF mode
	Salt         []byte
	OutputLength int // KDF mode
}

// Identity returns {Agreement, mode}.
func (c AgreementConfig) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyAgreement, string(c.Mode))
}

func (c AgreementConfig) usesPRF() bool {
	switch c.Mode {
	case AgreementMAC:
		return true
	case AgreementKDF:
		return c.KDF == KDFCounter || c.KDF == KDFFeedback || c.KDF == KDFDoublePipeline
	}
	return false
}

// Validate checks the configuration shape.
func (c AgreementConfig) Validate() error {
	id := c.Identity()
	switch c.Mode {
	case AgreementMAC:
		if !c.PRF.valid() {
			return unsupportedPRF(c.PRF)
		}
		if len(c.Salt) > 0 {
			if err := c.PRF.checkKeySize(len(c.Salt)); err != nil {
				return err
			}
		}
	case AgreementDigest:
		if !c.Digest.valid() {
			return unsupportedDigest(c.Digest)
		}
	case AgreementKDF:
		switch c.KDF {
		case KDFCounter, KDFFeedback, KDFDoublePipeline:
			if !c.PRF.valid() {
				return unsupportedPRF(c.PRF)
			}
		case KDFX963, KDFConcatenation, KDFHKDF:
			if !c.Digest.valid() {
				return unsupportedDigest(c.Digest)
			}
		default:
			return fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm,
				goerrors.New(ErrCodeUnsupported, fmt.Sprintf("unsupported agreement KDF %q", string(c.KDF))))
		}
		if c.OutputLength <= 0 {
			return invalidParameter(id, "KDF output length must be positive")
		}
		if limit := c.kdfOutputLimit(); uint64(c.OutputLength) > limit {
			return fmt.Errorf("%w: %w", ErrOutputLimitExceeded,
				goerrors.New(ErrCodeOutputLimit, fmt.Sprintf("%s with %s can produce %d bytes, %d requested",
					id, c.KDF, limit, c.OutputLength)))
		}
	case AgreementPassThrough:
	default:
		return fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm,
			goerrors.New(ErrCodeUnsupported, fmt.Sprintf("unsupported agreement mode %q", string(c.Mode))))
	}
	return nil
}

// kdfOutputLimit is the output limit of the KDF selected in KDF mode.
func (c AgreementConfig) kdfOutputLimit() uint64 {
	switch c.KDF {
	case KDFCounter, KDFFeedback, KDFDoublePipeline:
		return blockLimit(counterBlocks(agreementCounterBits), c.PRF.Size())
	case KDFX963, KDFConcatenation:
		return blockLimit(digestKDFMaxBlocks, c.Digest.Size())
	default:
		return blockLimit(hkdfMaxBlocks, c.Digest.Size())
	}
}

// checkInput validates the shape of Z before it is consumed.
func (c AgreementConfig) checkInput(n int) error {
	if n == 0 {
		return invalidParameter(c.Identity(), "agreement value must not be empty")
	}
	if c.Mode == AgreementKDF && c.usesPRF() {
		return c.PRF.checkKeySize(n)
	}
	return nil
}

// checkPolicy is the approved-only check: the mode must be approved and the
// PRF must be strong enough to condition Z.
func (c AgreementConfig) checkPolicy() error {
	id := c.Identity()
	if err := checkApproved(id); err != nil {
		return err
	}
	if c.usesPRF() && weakForAgreement(c.PRF) {
		return prfNotPermitted(id, c.PRF)
	}
	return nil
}

// kdfParameters maps the configuration onto the selected KDF with z as the
// input key. z is copied; the parameters own the copy.
func (c AgreementConfig) kdfParameters(z []byte) DerivationParameters {
	ki := cloneBytes(z)
	salt := cloneBytes(c.Salt)
	switch c.KDF {
	case KDFCounter:
		return &CounterParameters{PRF: c.PRF, KI: ki, FixedInputSuffix: salt, R: agreementCounterBits}
	case KDFFeedback:
		return &FeedbackParameters{PRF: c.PRF, KI: ki, IV: salt, R: agreementCounterBits, Location: CounterAfterIteration}
	case KDFDoublePipeline:
		return &DoublePipelineParameters{PRF: c.PRF, KI: ki, FixedInput: salt, R: agreementCounterBits, Location: CounterAfterIteration}
	case KDFX963:
		return &X963Parameters{Digest: c.Digest, Z: ki, SharedInfo: salt}
	case KDFConcatenation:
		return &ConcatenationParameters{Digest: c.Digest, Z: ki, OtherInfo: salt}
	default:
		return &HKDFParameters{Digest: c.Digest, IKM: ki, Salt: salt}
	}
}

// AgreementPostProcessor turns raw agreement values into key material
// according to one AgreementConfig.
type AgreementPostProcessor struct {
	m   *Module
	cfg AgreementConfig
	id  AlgorithmIdentity
}

func newAgreementPostProcessor(m *Module, cfg AgreementConfig) *AgreementPostProcessor {
	cfg.Salt = cloneBytes(cfg.Salt)
	return &AgreementPostProcessor{m: m, cfg: cfg, id: cfg.Identity()}
}

// Identity returns the {Agreement, mode} identity.
func (p *AgreementPostProcessor) Identity() AlgorithmIdentity {
	return p.id
}

// Process consumes z. The gate, the approved-only policy and the length of z
// are checked first; a rejection leaves z intact. Past those checks z is
// destroyed on every path, so its original buffer reads as zeros.
func (p *AgreementPostProcessor) Process(z *Secret) (*Secret, error) {
	if _, err := p.m.gate.IsReady(); err != nil {
		return nil, err
	}
	if p.m.approvedOnly() {
		if err := p.cfg.checkPolicy(); err != nil {
			return nil, err
		}
	}

	zb, err := z.Bytes()
	if err != nil {
		return nil, err
	}
	if err := p.cfg.checkInput(len(zb)); err != nil {
		return nil, err
	}
	defer z.Destroy()

	if p.cfg.Mode == AgreementKDF {
		return p.deriveKDF(zb)
	}

	provider, err := p.m.providers.GetProvider(p.m.providerName)
	if err != nil {
		return nil, err
	}
	return postProcess(provider, p.cfg, zb)
}

// ProcessBytes is Process for a plain buffer. z is adopted and zeroed.
func (p *AgreementPostProcessor) ProcessBytes(z []byte) ([]byte, error) {
	out, err := p.Process(NewSecret(z))
	if err != nil {
		return nil, err
	}
	defer out.Destroy()
	return out.Copy()
}

func (p *AgreementPostProcessor) deriveKDF(zb []byte) (*Secret, error) {
	params := p.cfg.kdfParameters(zb)
	defer params.Destroy()

	calc, err := p.m.NewDerivationCalculator(params)
	if err != nil {
		return nil, err
	}
	defer calc.Destroy()
	return calc.GenerateSecret(p.cfg.OutputLength)
}

// postProcess applies the MAC, digest and pass-through modes. It does not
// consume zb; the caller owns its destruction.
func postProcess(provider EngineProvider, cfg AgreementConfig, zb []byte) (out *Secret, err error) {
	defer catchEngineFault(&err)

	switch cfg.Mode {
	case AgreementMAC:
		key := cfg.Salt
		if len(key) == 0 {
			key = make([]byte, cfg.PRF.zeroKeySize())
		}
		mac, err := provider.NewMAC(cfg.PRF, key)
		if err != nil {
			return nil, err
		}
		mac.Write(zb)
		return sumToSecret(mac.Size(), mac.Sum), nil

	case AgreementDigest:
		h, err := provider.NewDigest(cfg.Digest)
		if err != nil {
			return nil, err
		}
		h.Write(zb)
		return sumToSecret(h.Size(), h.Sum), nil

	case AgreementPassThrough:
		return CopySecret(zb), nil
	}
	return nil, invalidParameter(cfg.Identity(), "mode has no direct post-processing")
}

// sumToSecret computes a tag into pooled scratch and hands out a private copy.
func sumToSecret(size int, sum func([]byte) []byte) *Secret {
	scratch := getScratch(size)
	defer putScratch(scratch)
	tag := sum((*scratch)[:0])
	return CopySecret(tag)
}
