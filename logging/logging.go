// Package logging builds slog loggers with rotating file output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes a logger
type Config struct {
	Level      string // debug, info, warn, error (default: info)
	File       string // Log file path; empty logs to stderr
	MaxSizeMB  int    // Rotate after this size (default: 1)
	MaxBackups int    // Rotated files kept (default: 10)
	JSON       bool   // JSON handler instead of text
}

// New builds a logger from cfg. The returned closer owns the log file and
// must be closed when the logger is retired; without a file it is a no-op.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closer := io.Closer(nopCloser{})
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("logging: cannot create log directory: %w", err)
			}
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		if lj.MaxSize == 0 {
			lj.MaxSize = 1
		}
		if lj.MaxBackups == 0 {
			lj.MaxBackups = 10
		}
		w = lj
		closer = lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler), closer, nil
}

// Module returns a child logger tagged with the module name
func Module(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("module", name))
}

// ParseLevel maps a level name to its slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
