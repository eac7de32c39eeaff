// logging.go: Structured logging for boot, self-test and policy events
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log level constants
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warn"
	LogLevelError   = "error"
)

// Log type constants
const (
	LogTypeNone    = "none"
	LogTypeConsole = "console"
	LogTypeFile    = "file"
)

// LogConfig selects the log handler. Secret material never reaches the log.
type LogConfig struct {
	Level      string `toml:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
	Type       string `toml:"type" json:"type" validate:"omitempty,oneof=none console file"`
	FilePath   string `toml:"file_path" json:"file_path" validate:"required_if=Type file"`
	MaxSize    int    `toml:"max_size" json:"max_size" validate:"gte=0,lte=1024"`         // megabytes
	MaxBackups int    `toml:"max_backups" json:"max_backups" validate:"gte=0,lte=100"`
	MaxAge     int    `toml:"max_age" json:"max_age" validate:"gte=0,lte=365"` // days
}

// NewLogger builds a slog.Logger for cfg. The returned closer releases the
// rotating file writer and is a no-op for the other handler types.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	switch cfg.Type {
	case "", LogTypeNone:
		return slog.New(slog.DiscardHandler), nopCloser{}, nil
	case LogTypeConsole:
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}, nil
	case LogTypeFile:
		if cfg.FilePath == "" {
			return nil, nil, configError("file path required for file logger")
		}
		writer := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(writer, opts)), writer, nil
	default:
		return nil, nil, configError("unsupported log type: " + cfg.Type)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
