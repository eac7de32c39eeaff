// provider_test.go: Tests for engine providers and the provider manager
//
// This test suite covers:
// - Provider manager initialization and lifecycle
// - Provider registration, lookup and health checks
// - Software provider MAC, digest and block cipher engines
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"context"
	"crypto/cipher"
	"errors"
	"hash"
	"testing"
	"time"

	goplugins "github.com/agilira/go-plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockInit = errors.New("mock provider failed to initialize")

// mockEngineProvider implements EngineProvider for testing
type mockEngineProvider struct {
	name         string
	version      string
	capabilities []EngineCapability
	initialized  bool
	healthy      bool
	shouldFail   bool
	config       map[string]interface{}
	software     *SoftwareProvider
}

func newMockEngineProvider(name, version string) *mockEngineProvider {
	return &mockEngineProvider{
		name:         name,
		version:      version,
		capabilities: []EngineCapability{CapabilityMAC, CapabilityDigest},
		healthy:      true,
		software:     NewSoftwareProvider(),
	}
}

func (m *mockEngineProvider) Name() string {
	return m.name
}

func (m *mockEngineProvider) Version() string {
	return m.version
}

func (m *mockEngineProvider) Capabilities() []EngineCapability {
	return m.capabilities
}

func (m *mockEngineProvider) Initialize(ctx context.Context, config map[string]interface{}) error {
	if m.shouldFail {
		return errMockInit
	}
	m.config = config
	m.initialized = true
	return nil
}

func (m *mockEngineProvider) Close() error {
	m.initialized = false
	return nil
}

func (m *mockEngineProvider) IsHealthy() bool {
	return m.healthy && m.initialized
}

func (m *mockEngineProvider) NewMAC(prf PRF, key []byte) (hash.Hash, error) {
	return m.software.NewMAC(prf, key)
}

func (m *mockEngineProvider) NewDigest(d Digest) (hash.Hash, error) {
	return m.software.NewDigest(d)
}

func (m *mockEngineProvider) NewBlockCipher(c BlockCipher, key []byte) (cipher.Block, error) {
	return m.software.NewBlockCipher(c, key)
}

// Test Provider Manager Creation and Configuration

func TestNewProviderManager(t *testing.T) {
	manager := NewProviderManager(nil, nil)
	require.NotNil(t, manager)
	assert.Equal(t, 10*time.Second, manager.config.OperationTimeout)
	assert.Nil(t, manager.PluginManager())
	assert.Empty(t, manager.Providers())

	var pm *goplugins.Manager[EngineRequest, EngineResponse]
	custom := &ProviderManagerConfig{DefaultProvider: "hsm", OperationTimeout: time.Second}
	manager = NewProviderManager(custom, pm)
	assert.Same(t, custom, manager.config)
	assert.Nil(t, manager.PluginManager())
}

// Test Provider Registration and Management

func TestProviderManager_RegisterProvider(t *testing.T) {
	manager := NewProviderManager(nil, nil)

	tests := []struct {
		name         string
		providerName string
		provider     EngineProvider
		expectError  error
	}{
		{
			name:         "register valid provider",
			providerName: "test-provider",
			provider:     newMockEngineProvider("test-provider", "1.0.0"),
		},
		{
			name:         "register nil provider",
			providerName: "nil-provider",
			provider:     nil,
			expectError:  ErrInvalidParameter,
		},
		{
			name:         "register failing provider",
			providerName: "failing-provider",
			provider: func() EngineProvider {
				p := newMockEngineProvider("failing-provider", "1.0.0")
				p.shouldFail = true
				return p
			}(),
			expectError: ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.RegisterProvider(tt.providerName, tt.provider)

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)

			provider, err := manager.GetProvider(tt.providerName)
			require.NoError(t, err)
			assert.Equal(t, tt.providerName, provider.Name())
		})
	}

	assert.Equal(t, []string{"test-provider"}, manager.Providers())
}

func TestProviderManager_ProviderConfigs(t *testing.T) {
	manager := NewProviderManager(&ProviderManagerConfig{
		ProviderConfigs: map[string]map[string]interface{}{
			"hsm": {"slot": 3},
		},
	}, nil)

	p := newMockEngineProvider("hsm", "2.0.0")
	require.NoError(t, manager.RegisterProvider("", p))
	assert.Equal(t, 3, p.config["slot"], "the empty name falls back to the provider's own name")
}

func TestProviderManager_GetProvider(t *testing.T) {
	manager := NewProviderManager(&ProviderManagerConfig{
		DefaultProvider: "default-provider",
	}, nil)

	otherProvider := newMockEngineProvider("other-provider", "1.0.0")
	defaultProvider := newMockEngineProvider("default-provider", "1.0.0")
	unhealthyProvider := newMockEngineProvider("unhealthy-provider", "1.0.0")
	unhealthyProvider.healthy = false

	require.NoError(t, manager.RegisterProvider("other-provider", otherProvider))
	require.NoError(t, manager.RegisterProvider("default-provider", defaultProvider))
	require.NoError(t, manager.RegisterProvider("unhealthy-provider", unhealthyProvider))

	tests := []struct {
		name         string
		providerName string
		expectName   string
		expectError  bool
	}{
		{"get default provider with empty name", "", "default-provider", false},
		{"get specific provider", "other-provider", "other-provider", false},
		{"get non-existent provider", "non-existent", "", true},
		{"get unhealthy provider", "unhealthy-provider", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := manager.GetProvider(tt.providerName)

			if tt.expectError {
				assert.ErrorIs(t, err, ErrProviderUnavailable)
				assert.Nil(t, provider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectName, provider.Name())
		})
	}

	assert.Equal(t, []string{"default-provider", "other-provider", "unhealthy-provider"}, manager.Providers())
}

// Test Provider Manager Lifecycle

func TestProviderManager_Close(t *testing.T) {
	manager := NewProviderManager(nil, nil)

	provider1 := newMockEngineProvider("provider1", "1.0.0")
	provider2 := newMockEngineProvider("provider2", "1.0.0")

	require.NoError(t, manager.RegisterProvider("provider1", provider1))
	require.NoError(t, manager.RegisterProvider("provider2", provider2))

	assert.NoError(t, manager.Close())

	assert.False(t, provider1.initialized)
	assert.False(t, provider2.initialized)

	_, err := manager.GetProvider("provider1")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestModuleWithCustomProvider(t *testing.T) {
	p := newMockEngineProvider("mock", "1.0.0")
	m := testModule(t, WithProvider(p))

	ok, err := m.IsReady()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mock", m.providerName)

	calc, err := m.NewDerivationCalculator(SP800108KATParameters(PRFHMACSHA384)[2])
	require.NoError(t, err)
	calc.Destroy()
}

func TestModuleWithUnhealthyProvider(t *testing.T) {
	p := newMockEngineProvider("mock", "1.0.0")
	p.healthy = false

	m, err := NewModule(nil, WithProvider(p))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

// Test Software Provider

func TestSoftwareProvider_Lifecycle(t *testing.T) {
	p := NewSoftwareProvider()
	assert.Equal(t, SoftwareProviderName, p.Name())
	assert.Equal(t, "1.0.0", p.Version())
	assert.ElementsMatch(t, []EngineCapability{CapabilityMAC, CapabilityDigest, CapabilityBlockCipher}, p.Capabilities())
	assert.True(t, p.IsHealthy())

	require.NoError(t, p.Close())
	assert.False(t, p.IsHealthy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Initialize(ctx, nil))
	assert.False(t, p.IsHealthy())

	require.NoError(t, p.Initialize(context.Background(), nil))
	assert.True(t, p.IsHealthy())
}

func TestSoftwareProvider_AESCMAC(t *testing.T) {
	p := NewSoftwareProvider()
	key := mustHex("2b7e151628aed2a6abf7158809cf4f3c")

	// RFC 4493 section 4
	tests := []struct {
		msg  string
		want string
	}{
		{"", "bb1d6929e95937287fa37d129b756746"},
		{"6bc1bee22e409f96e93d7e117393172a", "070a16b46b4d4144f79bdd9dd04a287c"},
	}

	for _, tt := range tests {
		mac, err := p.NewMAC(PRFAESCMAC, key)
		require.NoError(t, err)
		mac.Write(mustHex(tt.msg))
		assert.Equal(t, tt.want, KeyToHex(mac.Sum(nil)))
	}
}

func TestSoftwareProvider_TripleDESKeys(t *testing.T) {
	p := NewSoftwareProvider()
	k1k2 := seqBytes(0x10, 16)
	k1k2k1 := append(append([]byte{}, k1k2...), k1k2[:8]...)

	two, err := p.NewMAC(PRFTripleDESCMAC, k1k2)
	require.NoError(t, err)
	three, err := p.NewMAC(PRFTripleDESCMAC, k1k2k1)
	require.NoError(t, err)

	two.Write([]byte("message"))
	three.Write([]byte("message"))
	assert.Equal(t, three.Sum(nil), two.Sum(nil))
	assert.Equal(t, 8, two.Size())

	_, err = p.NewBlockCipher(CipherTripleDES, seqBytes(0, 8))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestSoftwareProvider_Engines(t *testing.T) {
	p := NewSoftwareProvider()

	for _, prf := range SupportedPRFs() {
		key := seqBytes(0, 16)
		mac, err := p.NewMAC(prf, key)
		require.NoError(t, err, string(prf))
		assert.Equal(t, prf.Size(), mac.Size(), string(prf))
	}

	for _, d := range SupportedDigests() {
		h, err := p.NewDigest(d)
		require.NoError(t, err, string(d))
		assert.Equal(t, d.Size(), h.Size(), string(d))
		assert.Equal(t, d.BlockSize(), h.BlockSize(), string(d))
	}

	for _, n := range []int{16, 24, 32} {
		block, err := p.NewBlockCipher(CipherAES, seqBytes(0, n))
		require.NoError(t, err)
		assert.Equal(t, 16, block.BlockSize())
	}

	_, err := p.NewBlockCipher(CipherAES, seqBytes(0, 20))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
	_, err = p.NewBlockCipher("Camellia", seqBytes(0, 16))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	_, err = p.NewMAC("HMAC-RIPEMD160", seqBytes(0, 16))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	_, err = p.NewDigest("SHA-0")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestPRFCatalogue(t *testing.T) {
	assert.True(t, PRFHMACSHA512224.IsHMAC())
	assert.False(t, PRFAESCMAC.IsHMAC())
	assert.True(t, PRFTripleDESCMAC.IsCMAC())

	d, ok := PRFHMACSHA3384.Digest()
	assert.True(t, ok)
	assert.Equal(t, DigestSHA3384, d)
	_, ok = PRFAESCMAC.Digest()
	assert.False(t, ok)

	assert.Equal(t, 28, PRFHMACSHA512224.Size())
	assert.Equal(t, 0, PRF("bogus").Size())
	assert.Equal(t, 64, PRFHMACSHA256.zeroKeySize())
	assert.Equal(t, 136, PRFHMACSHA3256.zeroKeySize())
	assert.Equal(t, 24, PRFTripleDESCMAC.zeroKeySize())

	assert.False(t, prfHMACMD5.valid(), "MD5 is reachable only through the TLS 1.0 PRF")
	assert.False(t, digestMD5.valid())
	assert.NotContains(t, SupportedPRFs(), prfHMACMD5)
	assert.Len(t, SupportedPRFs(), 13)
	assert.Len(t, SupportedDigests(), 11)
}
