// Package log configures the process-wide structured logger.
package log

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional level ("debug", "info", ...); defaults to info
	Output  io.Writer // optional writer; defaults to stderr, or File when set
	File    string    // optional path of a size-rotated log file
	Service string    // service name attached to every entry
}

var (
	mu   sync.RWMutex
	base = newLogger(Config{})
)

// Configure replaces the global logger. It is called once from main after config is loaded.
func Configure(cfg Config) {
	l := newLogger(cfg)
	mu.Lock()
	base = l
	mu.Unlock()
}

func newLogger(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		if cfg.File != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			}
		} else {
			writer = os.Stderr
		}
	}

	service := cfg.Service
	if service == "" {
		service = "aw-garmin"
	}

	return zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}

// FromContext returns the logger stored in ctx, falling back to the base logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
			return *l
		}
	}
	return Base()
}
