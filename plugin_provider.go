// plugin_provider.go: Engine provider backed by a go-plugins engine plugin
//
// A PluginProvider forwards every MAC, digest and block cipher operation to a
// plugin registered with a goplugins.Manager, typically a hardware module or
// a remote engine. Engines returned by the provider buffer their input and
// execute one plugin request per Sum, Encrypt or Decrypt.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"context"
	"crypto/cipher"
	"fmt"
	"hash"
	"sync"
	"time"

	goerrors "github.com/agilira/go-errors"
	goplugins "github.com/agilira/go-plugins"
	"github.com/google/uuid"
)

// Engine plugin operations.
const (
	OperationMAC         = "mac"
	OperationDigest      = "digest"
	OperationBlockCipher = "block_cipher"
)

// DefaultPluginTimeout bounds a single engine plugin request.
const DefaultPluginTimeout = 5 * time.Second

// PluginProvider is an EngineProvider whose engines execute in an engine
// plugin. The plugin must answer mac, digest and block_cipher requests; for
// block_cipher the "direction" parameter is "encrypt" or "decrypt".
type PluginProvider struct {
	name    string
	manager *goplugins.Manager[EngineRequest, EngineResponse]

	mu      sync.RWMutex
	timeout time.Duration
	ready   bool
}

// NewPluginProvider returns a provider for the plugin registered under name.
// The provider is unusable until Initialize succeeds.
func NewPluginProvider(name string, manager *goplugins.Manager[EngineRequest, EngineResponse]) *PluginProvider {
	return &PluginProvider{name: name, manager: manager, timeout: DefaultPluginTimeout}
}

// Name returns the plugin name.
func (p *PluginProvider) Name() string { return p.name }

// Version returns the version the plugin reports, or "" if it is not loaded.
func (p *PluginProvider) Version() string {
	info, ok := p.info()
	if !ok {
		return ""
	}
	return info.Version
}

// Capabilities maps the plugin's declared capabilities. A plugin that
// declares none is assumed to serve every engine class.
func (p *PluginProvider) Capabilities() []EngineCapability {
	all := []EngineCapability{CapabilityMAC, CapabilityDigest, CapabilityBlockCipher}
	info, ok := p.info()
	if !ok || len(info.Capabilities) == 0 {
		return all
	}

	var caps []EngineCapability
	for _, c := range all {
		for _, declared := range info.Capabilities {
			if declared == string(c) {
				caps = append(caps, c)
				break
			}
		}
	}
	return caps
}

func (p *PluginProvider) info() (goplugins.PluginInfo, bool) {
	if p.manager == nil {
		return goplugins.PluginInfo{}, false
	}
	plugin, err := p.manager.GetPlugin(p.name)
	if err != nil {
		return goplugins.PluginInfo{}, false
	}
	return plugin.Info(), true
}

// Initialize checks that the plugin is registered and healthy. The optional
// "timeout" entry of config (a duration string) bounds each request.
func (p *PluginProvider) Initialize(ctx context.Context, config map[string]interface{}) error {
	if p.manager == nil {
		return goerrors.New(ErrCodeProvider, "plugin manager is not configured")
	}

	timeout := DefaultPluginTimeout
	if raw, ok := config["timeout"].(string); ok {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return goerrors.New(ErrCodeConfig, fmt.Sprintf("invalid plugin timeout %q", raw))
		}
		timeout = d
	}

	plugin, err := p.manager.GetPlugin(p.name)
	if err != nil {
		return goerrors.Wrap(err, ErrCodeProviderNotFound, fmt.Sprintf("engine plugin %q is not registered", p.name))
	}
	if health := plugin.Health(ctx); health.Status != goplugins.StatusHealthy {
		return goerrors.New(ErrCodeProviderUnhealthy,
			fmt.Sprintf("engine plugin %q is %s: %s", p.name, health.Status, health.Message))
	}

	p.mu.Lock()
	p.timeout = timeout
	p.ready = true
	p.mu.Unlock()
	return nil
}

// Close marks the provider unavailable. The plugin itself belongs to the
// manager and is shut down with it.
func (p *PluginProvider) Close() error {
	p.mu.Lock()
	p.ready = false
	p.mu.Unlock()
	return nil
}

// IsHealthy reports whether the provider is initialized and the manager's
// last health check of the plugin passed.
func (p *PluginProvider) IsHealthy() bool {
	p.mu.RLock()
	ready := p.ready
	p.mu.RUnlock()
	if !ready {
		return false
	}
	status, ok := p.manager.Health()[p.name]
	return ok && status.Status == goplugins.StatusHealthy
}

// NewMAC returns a MAC whose tag is computed by the plugin.
func (p *PluginProvider) NewMAC(prf PRF, key []byte) (hash.Hash, error) {
	size := prf.Size()
	if size == 0 {
		return nil, unsupportedPRF(prf)
	}
	if err := prf.checkKeySize(len(key)); err != nil {
		return nil, err
	}

	blockSize := 16
	switch {
	case prf == PRFTripleDESCMAC:
		blockSize = 8
	case prf.IsHMAC():
		d, _ := prf.Digest()
		blockSize = d.BlockSize()
	}

	return &remoteHash{
		p:         p,
		req:       EngineRequest{Operation: OperationMAC, Algorithm: string(prf), Key: cloneBytes(key)},
		size:      size,
		blockSize: blockSize,
	}, nil
}

// NewDigest returns a hash whose digest is computed by the plugin.
func (p *PluginProvider) NewDigest(d Digest) (hash.Hash, error) {
	if d.Size() == 0 {
		return nil, unsupportedDigest(d)
	}
	return &remoteHash{
		p:         p,
		req:       EngineRequest{Operation: OperationDigest, Algorithm: string(d)},
		size:      d.Size(),
		blockSize: d.BlockSize(),
	}, nil
}

// NewBlockCipher returns a block cipher whose blocks are processed by the
// plugin.
func (p *PluginProvider) NewBlockCipher(c BlockCipher, key []byte) (cipher.Block, error) {
	var size int
	switch c {
	case CipherAES:
		size = 16
		if err := PRFAESCMAC.checkKeySize(len(key)); err != nil {
			return nil, err
		}
	case CipherTripleDES:
		size = 8
		if err := PRFTripleDESCMAC.checkKeySize(len(key)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm,
			goerrors.New(ErrCodeUnsupported, fmt.Sprintf("unsupported block cipher %q", string(c))))
	}
	return &remoteBlock{p: p, cipher: c, key: cloneBytes(key), size: size}, nil
}

// execute runs one plugin request and checks that the reply carries exactly
// want bytes.
func (p *PluginProvider) execute(req EngineRequest, want int) ([]byte, error) {
	p.mu.RLock()
	timeout := p.timeout
	p.mu.RUnlock()

	execCtx := goplugins.ExecutionContext{
		RequestID: uuid.NewString(),
		Timeout:   timeout,
	}
	resp, err := p.manager.ExecuteWithOptions(context.Background(), p.name, execCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable,
			goerrors.Wrap(err, ErrCodeProvider, fmt.Sprintf("engine plugin %s: %s %s failed", p.name, req.Operation, req.Algorithm)))
	}
	if !resp.Success {
		Zeroize(resp.Data)
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable,
			goerrors.New(ErrCodeProvider, fmt.Sprintf("engine plugin %s rejected %s %s: %s", p.name, req.Operation, req.Algorithm, resp.Error)))
	}
	if len(resp.Data) != want {
		Zeroize(resp.Data)
		return nil, goerrors.New(ErrCodeProvider,
			fmt.Sprintf("engine plugin %s returned %d bytes for %s %s, want %d", p.name, len(resp.Data), req.Operation, req.Algorithm, want))
	}
	return resp.Data, nil
}

// remoteHash buffers written data and sends it to the plugin on Sum. A
// failed request panics with an engineFault.
type remoteHash struct {
	p         *PluginProvider
	req       EngineRequest
	buf       []byte
	size      int
	blockSize int
}

func (h *remoteHash) Write(b []byte) (int, error) {
	h.buf = append(h.buf, b...)
	return len(b), nil
}

func (h *remoteHash) Sum(b []byte) []byte {
	req := h.req
	req.Data = h.buf
	out, err := h.p.execute(req, h.size)
	if err != nil {
		panic(engineFault{err})
	}
	defer Zeroize(out)
	return append(b, out...)
}

func (h *remoteHash) Reset() {
	Zeroize(h.buf)
	h.buf = h.buf[:0]
}

func (h *remoteHash) Size() int      { return h.size }
func (h *remoteHash) BlockSize() int { return h.blockSize }

// remoteBlock sends every block to the plugin. A failed request panics with
// an engineFault.
type remoteBlock struct {
	p      *PluginProvider
	cipher BlockCipher
	key    []byte
	size   int
}

func (b *remoteBlock) BlockSize() int { return b.size }

func (b *remoteBlock) Encrypt(dst, src []byte) { b.crypt("encrypt", dst, src) }
func (b *remoteBlock) Decrypt(dst, src []byte) { b.crypt("decrypt", dst, src) }

func (b *remoteBlock) crypt(direction string, dst, src []byte) {
	if len(src) < b.size || len(dst) < b.size {
		panic("themis: input not full block")
	}
	out, err := b.p.execute(EngineRequest{
		Operation:  OperationBlockCipher,
		Algorithm:  string(b.cipher),
		Key:        b.key,
		Data:       src[:b.size],
		Parameters: map[string]interface{}{"direction": direction},
	}, b.size)
	if err != nil {
		panic(engineFault{err})
	}
	copy(dst, out)
	Zeroize(out)
}
