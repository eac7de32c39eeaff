// module.go: Module handle, construction options and package-level API
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/crypto/curve25519"
)

// Module ties together the status gate, the self-test registry, the engine
// providers and the approved-only policy. All guarded constructions go
// through a Module. A Module is safe for concurrent use; the objects it
// returns are not.
type Module struct {
	cfg          *Config
	gate         *Gate
	registry     *Registry
	providers    *ProviderManager
	providerName string
	validated    *validatedCache
	logger       *slog.Logger
	logCloser    io.Closer
	approvedOpt  *bool
}

// Option customizes NewModule.
type Option func(*moduleOptions)

type moduleOptions struct {
	provider     EngineProvider
	manager      *ProviderManager
	registry     *Registry
	logger       *slog.Logger
	approvedOnly *bool
}

// WithProvider registers p and selects it for engine construction.
func WithProvider(p EngineProvider) Option {
	return func(o *moduleOptions) { o.provider = p }
}

// WithProviderManager uses an existing provider manager.
func WithProviderManager(pm *ProviderManager) Option {
	return func(o *moduleOptions) { o.manager = pm }
}

// WithRegistry replaces the built-in self-test registry. The registry is run
// as-is at boot; call RegisterBuiltinSelfTests on it to keep the defaults.
func WithRegistry(r *Registry) Option {
	return func(o *moduleOptions) { o.registry = r }
}

// WithLogger overrides the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *moduleOptions) { o.logger = l }
}

// WithApprovedOnlyMode pins the approved-only policy of this module,
// ignoring the process-wide flag.
func WithApprovedOnlyMode(enabled bool) Option {
	return func(o *moduleOptions) { o.approvedOnly = &enabled }
}

// NewModule builds a module in the Booting state. Boot runs on the first
// IsReady call or guarded construction. A nil cfg uses DefaultConfig.
func NewModule(cfg *Config, opts ...Option) (*Module, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o moduleOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := &Module{cfg: cfg, providerName: cfg.Provider, approvedOpt: o.approvedOnly}

	if o.logger != nil {
		m.logger, m.logCloser = o.logger, nopCloser{}
	} else {
		logger, closer, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		m.logger, m.logCloser = logger, closer
	}

	m.providers = o.manager
	if m.providers == nil {
		m.providers = NewProviderManager(&ProviderManagerConfig{
			DefaultProvider:  cfg.Provider,
			OperationTimeout: 10 * time.Second,
		}, nil)
	}
	if o.provider != nil {
		if err := m.providers.RegisterProvider(o.provider.Name(), o.provider); err != nil {
			return nil, err
		}
		m.providerName = o.provider.Name()
	}
	if m.providerName == SoftwareProviderName {
		if _, err := m.providers.GetProvider(SoftwareProviderName); err != nil {
			if err := m.providers.RegisterProvider(SoftwareProviderName, NewSoftwareProvider()); err != nil {
				return nil, err
			}
		}
	}

	provider, err := m.providers.GetProvider(m.providerName)
	if err != nil {
		return nil, err
	}

	m.registry = o.registry
	if m.registry == nil {
		m.registry = NewRegistry()
		RegisterBuiltinSelfTests(m.registry, provider)
	}

	if m.validated, err = newValidatedCache(cfg.SelfTestCacheSize); err != nil {
		return nil, err
	}

	m.gate = NewGate(m.registry, m.logger)
	return m, nil
}

func (m *Module) approvedOnly() bool {
	if m.approvedOpt != nil {
		return *m.approvedOpt
	}
	return m.cfg.ApprovedOnly || IsApprovedOnlyMode()
}

// IsReady boots the module on first use and reports readiness. Once the
// module has failed it returns the same latched error on every call.
func (m *Module) IsReady() (bool, error) {
	return m.gate.IsReady()
}

// Status returns a snapshot of the status gate without triggering boot.
func (m *Module) Status() ModuleStatus {
	return m.gate.Status()
}

// ValidatedAt reports when id passed its first-construction self-tests.
func (m *Module) ValidatedAt(id AlgorithmIdentity) (time.Time, bool) {
	return m.validated.validatedAt(id)
}

// Logger returns the module logger.
func (m *Module) Logger() *slog.Logger {
	return m.logger
}

// NewDerivationCalculator builds a calculator for params. The calculator
// copies the key material it needs; params may be destroyed afterwards.
//
// Example:
//
//	calc, err := m.NewDerivationCalculator(&themis.CounterParameters{
//		PRF: themis.PRFHMACSHA256,
//		KI:  ki,
//		R:   32,
//	})
//	if err != nil {
//		return err
//	}
//	defer calc.Destroy()
//	key, err := calc.GenerateBytes(32)
func (m *Module) NewDerivationCalculator(params DerivationParameters) (*DerivationCalculator, error) {
	if params == nil {
		return nil, invalidParameter(AlgorithmIdentity{}, "derivation parameters are nil")
	}
	id := params.Identity()

	return guarded(m, id, nil, func(p EngineProvider) (*DerivationCalculator, error) {
		if err := params.Validate(); err != nil {
			return nil, err
		}
		gen, err := buildGenerator(params, p)
		if err != nil {
			return nil, err
		}
		calc := newDerivationCalculator(id, gen)
		calc.latched = m.gate.Err
		return calc, nil
	})
}

// NewAgreementPostProcessor builds a post-processor for cfg.
func (m *Module) NewAgreementPostProcessor(cfg AgreementConfig) (*AgreementPostProcessor, error) {
	id := cfg.Identity()

	return guarded(m, id, func() error { return cfg.checkPolicy() },
		func(p EngineProvider) (*AgreementPostProcessor, error) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return newAgreementPostProcessor(m, cfg), nil
		})
}

// NewContinuousEntropySource wraps src with the continuous duplicate-block
// test. A duplicate latches this module into the error state. A nil src
// reads crypto/rand in blocks of the configured size.
func (m *Module) NewContinuousEntropySource(src EntropySource) (*ContinuousEntropySource, error) {
	id := NewIdentity(FamilyEntropy, ContinuousVariation)

	return guarded(m, id, nil, func(EngineProvider) (*ContinuousEntropySource, error) {
		if src == nil {
			src = NewReaderEntropySource(nil, m.cfg.Entropy.BlockSize)
		}
		return newContinuousEntropySource(src, m.gate.Fail, m.gate.Err, m.logger), nil
	})
}

// X25519Agreement computes the raw X25519 value Z for a local private scalar
// and a peer public point. The result is not approved and is refused in
// approved-only mode.
func (m *Module) X25519Agreement(privateKey, peerPublic []byte) (*Secret, error) {
	id := NewIdentity(FamilyX25519, "")

	return guarded(m, id, nil, func(EngineProvider) (*Secret, error) {
		if len(privateKey) != curve25519.ScalarSize {
			return nil, invalidKeySize("X25519 private", len(privateKey))
		}
		if len(peerPublic) != curve25519.PointSize {
			return nil, invalidKeySize("X25519 public", len(peerPublic))
		}
		z, err := curve25519.X25519(privateKey, peerPublic)
		if err != nil {
			return nil, invalidParameter(id, err.Error())
		}
		return NewSecret(z), nil
	})
}

// Close releases the engine providers and the log writer.
func (m *Module) Close() error {
	var errs []error
	if err := m.providers.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.logCloser.Close(); err != nil {
		errs = append(errs, goerrors.Wrap(err, ErrCodeConfig, "failed to close log writer"))
	}
	return errors.Join(errs...)
}

var (
	defaultOnce   sync.Once
	defaultModule *Module
	defaultErr    error
)

// Default returns the process-wide module, created on first use from
// DefaultConfig.
func Default() (*Module, error) {
	defaultOnce.Do(func() {
		defaultModule, defaultErr = NewModule(nil)
	})
	return defaultModule, defaultErr
}

// IsReady reports readiness of the process-wide module.
func IsReady() (bool, error) {
	m, err := Default()
	if err != nil {
		return false, err
	}
	return m.IsReady()
}

// CreateDerivationCalculator builds a calculator on the process-wide module.
func CreateDerivationCalculator(params DerivationParameters) (*DerivationCalculator, error) {
	m, err := Default()
	if err != nil {
		return nil, err
	}
	return m.NewDerivationCalculator(params)
}

// CreateAgreementPostProcessor builds a post-processor on the process-wide module.
func CreateAgreementPostProcessor(cfg AgreementConfig) (*AgreementPostProcessor, error) {
	m, err := Default()
	if err != nil {
		return nil, err
	}
	return m.NewAgreementPostProcessor(cfg)
}
