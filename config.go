// config.go: Module configuration loaded from TOML and validated on load
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"fmt"

	"github.com/BurntSushi/toml"
	goerrors "github.com/agilira/go-errors"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultSelfTestCacheSize bounds the validated-identity cache.
	DefaultSelfTestCacheSize = 256

	// DefaultEntropyBlockSize is the sample size of the default entropy source.
	DefaultEntropyBlockSize = 32
)

// EntropyConfig configures the default continuous entropy source.
type EntropyConfig struct {
	BlockSize int `toml:"block_size" json:"block_size" validate:"gte=8,lte=1024"`
}

// Config is the module configuration.
//
// Example config.toml:
//
//	approved_only = true
//	provider = "software"
//	self_test_cache_size = 256
//
//	[log]
//	level = "info"
//	type = "file"
//	file_path = "/var/log/themis.log"
//	max_size = 10
//
//	[entropy]
//	block_size = 32
type Config struct {
	ApprovedOnly      bool          `toml:"approved_only" json:"approved_only"`
	Provider          string        `toml:"provider" json:"provider" validate:"required"`
	SelfTestCacheSize int           `toml:"self_test_cache_size" json:"self_test_cache_size" validate:"gte=16,lte=65536"`
	Log               LogConfig     `toml:"log" json:"log"`
	Entropy           EntropyConfig `toml:"entropy" json:"entropy"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          SoftwareProviderName,
		SelfTestCacheSize: DefaultSelfTestCacheSize,
		Log: LogConfig{
			Level: LogLevelWarning,
			Type:  LogTypeNone,
		},
		Entropy: EntropyConfig{BlockSize: DefaultEntropyBlockSize},
	}
}

// LoadConfig decodes a TOML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter,
			goerrors.Wrap(err, ErrCodeConfig, fmt.Sprintf("failed to decode config file %s", path)))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter,
			goerrors.Wrap(err, ErrCodeConfig, "config validation failed"))
	}
	return nil
}

// Apply pushes the process-wide settings of c, currently the approved-only
// flag, into the global state.
func (c *Config) Apply() {
	SetApprovedOnlyMode(c.ApprovedOnly)
}

func configError(msg string) error {
	return fmt.Errorf("%w: %w", ErrInvalidParameter, goerrors.New(ErrCodeConfig, msg))
}
