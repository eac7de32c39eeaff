// provider.go: Pluggable engine providers for MACs, digests and block ciphers
//
// Every derivation engine is built from the MAC, digest and cipher engines of
// a provider, so the module self-tests validate the provider's implementation
// rather than a particular key. The built-in SoftwareProvider covers the whole
// catalogue. External providers (hardware modules, remote engines) can be
// reached through github.com/agilira/go-plugins.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" // #nosec G502 TripleDES-CMAC PRF
	"crypto/hmac"
	"fmt"
	"hash"
	"sort"
	"sync"
	"time"

	"github.com/aead/cmac"
	goerrors "github.com/agilira/go-errors"
	goplugins "github.com/agilira/go-plugins"
)

// EngineCapability names a class of engine a provider can construct.
type EngineCapability string

const (
	CapabilityMAC         EngineCapability = "mac"          // HMAC and CMAC PRFs
	CapabilityDigest      EngineCapability = "digest"       // unkeyed hashes
	CapabilityBlockCipher EngineCapability = "block_cipher" // raw block ciphers (SRTP keystream)
)

// SoftwareProviderName is the name under which the built-in provider registers.
const SoftwareProviderName = "software"

// EngineProvider constructs the primitive engines used by derivation and
// agreement. Implementations must be safe for concurrent use.
type EngineProvider interface {
	// Provider Information
	Name() string
	Version() string
	Capabilities() []EngineCapability

	// Lifecycle Management
	Initialize(ctx context.Context, config map[string]interface{}) error
	Close() error
	IsHealthy() bool

	// Engines
	NewMAC(prf PRF, key []byte) (hash.Hash, error)
	NewDigest(d Digest) (hash.Hash, error)
	NewBlockCipher(c BlockCipher, key []byte) (cipher.Block, error)
}

// EngineRequest is a request to an out-of-process engine provider plugin.
type EngineRequest struct {
	Operation  string                 `json:"operation"` // mac, digest, block_cipher
	Algorithm  string                 `json:"algorithm"`
	Key        []byte                 `json:"key,omitempty"`
	Data       []byte                 `json:"data"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// EngineResponse is the reply of an engine provider plugin.
type EngineResponse struct {
	Success  bool                   `json:"success"`
	Data     []byte                 `json:"data"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ProviderManager manages named engine providers using the go-plugins framework.
type ProviderManager struct {
	mu              sync.RWMutex
	pluginManager   *goplugins.Manager[EngineRequest, EngineResponse] // out-of-process providers
	providers       map[string]EngineProvider
	defaultProvider string
	config          *ProviderManagerConfig
}

// ProviderManagerConfig provides configuration for the provider manager.
type ProviderManagerConfig struct {
	DefaultProvider  string                            `json:"default_provider"`
	ProviderConfigs  map[string]map[string]interface{} `json:"provider_configs"`
	OperationTimeout time.Duration                     `json:"operation_timeout"` // Initialize timeout
}

// NewProviderManager creates a provider manager. A nil config gets defaults.
func NewProviderManager(config *ProviderManagerConfig, pluginManager *goplugins.Manager[EngineRequest, EngineResponse]) *ProviderManager {
	if config == nil {
		config = &ProviderManagerConfig{
			OperationTimeout: 10 * time.Second,
		}
	}

	return &ProviderManager{
		pluginManager: pluginManager,
		providers:     make(map[string]EngineProvider),
		config:        config,
	}
}

// PluginManager returns the go-plugins manager handle, which may be nil.
func (m *ProviderManager) PluginManager() *goplugins.Manager[EngineRequest, EngineResponse] {
	return m.pluginManager
}

// RegisterProvider initializes provider and registers it under name.
func (m *ProviderManager) RegisterProvider(name string, provider EngineProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if provider == nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter,
			goerrors.New(ErrCodeProvider, "provider cannot be nil"))
	}
	if name == "" {
		name = provider.Name()
	}

	ctx := context.Background()
	if timeout := m.config.OperationTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := provider.Initialize(ctx, m.config.ProviderConfigs[name]); err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable,
			goerrors.Wrap(err, ErrCodeProvider, fmt.Sprintf("failed to initialize engine provider %s", name)))
	}

	m.providers[name] = provider

	if m.defaultProvider == "" || m.config.DefaultProvider == name {
		m.defaultProvider = name
	}

	return nil
}

// RegisterPlugin adds plugin to the manager's go-plugins manager and
// registers a PluginProvider for it under the plugin's name.
func (m *ProviderManager) RegisterPlugin(plugin goplugins.Plugin[EngineRequest, EngineResponse]) error {
	if m.pluginManager == nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable,
			goerrors.New(ErrCodeProvider, "provider manager has no plugin manager"))
	}
	if plugin == nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter,
			goerrors.New(ErrCodeProvider, "plugin cannot be nil"))
	}

	name := plugin.Info().Name
	if err := m.pluginManager.Register(plugin); err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable,
			goerrors.Wrap(err, ErrCodeProvider, fmt.Sprintf("failed to register engine plugin %s", name)))
	}
	if err := m.RegisterProvider(name, NewPluginProvider(name, m.pluginManager)); err != nil {
		_ = m.pluginManager.Unregister(name)
		return err
	}
	return nil
}

// GetProvider returns a healthy provider by name; the empty name selects the
// default provider.
func (m *ProviderManager) GetProvider(name string) (EngineProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		name = m.defaultProvider
	}

	provider, exists := m.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable,
			goerrors.New(ErrCodeProviderNotFound, fmt.Sprintf("engine provider %q not found", name)))
	}

	if !provider.IsHealthy() {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable,
			goerrors.New(ErrCodeProviderUnhealthy, fmt.Sprintf("engine provider %q failed health check", name)))
	}

	return provider, nil
}

// Providers returns the registered provider names in sorted order.
func (m *ProviderManager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close shuts down all providers.
func (m *ProviderManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, provider := range m.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close engine provider %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return goerrors.New(ErrCodeProvider, fmt.Sprintf("failed to close some engine providers: %v", errs))
	}

	return nil
}

// SoftwareProvider builds engines from the Go standard library,
// golang.org/x/crypto and github.com/aead/cmac.
type SoftwareProvider struct {
	mu     sync.RWMutex
	closed bool
}

// NewSoftwareProvider returns a ready to use software provider.
func NewSoftwareProvider() *SoftwareProvider {
	return &SoftwareProvider{}
}

// Name returns SoftwareProviderName.
func (p *SoftwareProvider) Name() string    { return SoftwareProviderName }
// Version returns the provider version.
func (p *SoftwareProvider) Version() string { return "1.0.0" }

// Capabilities reports every engine class.
func (p *SoftwareProvider) Capabilities() []EngineCapability {
	return []EngineCapability{CapabilityMAC, CapabilityDigest, CapabilityBlockCipher}
}

// Initialize (re)opens the provider. The software provider takes no options.
func (p *SoftwareProvider) Initialize(ctx context.Context, config map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.closed = false
	p.mu.Unlock()
	return nil
}

// Close marks the provider unavailable until the next Initialize.
func (p *SoftwareProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// IsHealthy reports whether the provider is open.
func (p *SoftwareProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// NewMAC returns a keyed MAC for prf. HMAC accepts any key length; AES-CMAC
// takes 16, 24 or 32 byte keys and TripleDES-CMAC 16 (two-key) or 24 byte keys.
func (p *SoftwareProvider) NewMAC(prf PRF, key []byte) (hash.Hash, error) {
	switch prf {
	case PRFAESCMAC:
		block, err := p.NewBlockCipher(CipherAES, key)
		if err != nil {
			return nil, err
		}
		return newCMAC(block)
	case PRFTripleDESCMAC:
		block, err := p.NewBlockCipher(CipherTripleDES, key)
		if err != nil {
			return nil, err
		}
		return newCMAC(block)
	}

	d, ok := hmacDigests[prf]
	if !ok {
		return nil, unsupportedPRF(prf)
	}
	return hmac.New(digests[d].newHash, key), nil
}

// NewDigest returns a fresh hash for d.
func (p *SoftwareProvider) NewDigest(d Digest) (hash.Hash, error) {
	info, ok := digests[d]
	if !ok {
		return nil, unsupportedDigest(d)
	}
	return info.newHash(), nil
}

// NewBlockCipher returns a block cipher keyed with key.
func (p *SoftwareProvider) NewBlockCipher(c BlockCipher, key []byte) (cipher.Block, error) {
	switch c {
	case CipherAES:
		switch len(key) {
		case 16, 24, 32:
		default:
			return nil, invalidKeySize(string(c), len(key))
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, goerrors.Wrap(err, ErrCodeProvider, "failed to create AES cipher")
		}
		return block, nil
	case CipherTripleDES:
		var k [24]byte
		defer Zeroize(k[:])
		switch len(key) {
		case 16:
			copy(k[:16], key)
			copy(k[16:], key[:8])
		case 24:
			copy(k[:], key)
		default:
			return nil, invalidKeySize(string(c), len(key))
		}
		block, err := des.NewTripleDESCipher(k[:])
		if err != nil {
			return nil, goerrors.Wrap(err, ErrCodeProvider, "failed to create TripleDES cipher")
		}
		return block, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm,
		goerrors.New(ErrCodeUnsupported, fmt.Sprintf("unsupported block cipher %q", string(c))))
}

func newCMAC(block cipher.Block) (hash.Hash, error) {
	mac, err := cmac.New(block)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrCodeProvider, "failed to create CMAC")
	}
	return mac, nil
}

func invalidKeySize(what string, n int) error {
	return fmt.Errorf("%w: %w", ErrInvalidKeySize,
		goerrors.New(ErrCodeInvalidKeySize, fmt.Sprintf("invalid %s key size %d", what, n)))
}
