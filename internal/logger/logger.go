// Package logger builds the zerolog loggers used by the binaries and carries
// them through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger
type ContextKey string

const (
	// LoggerKey is the context key for the logger instance
	LoggerKey ContextKey = "logger"
)

// New returns a console logger on stderr. Stdout is left to command output.
func New() zerolog.Logger {
	return console(os.Stderr)
}

func console(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

// NewWithLevel is New filtered at the named level ("debug", "info", "warn",
// ...). An empty name means info.
func NewWithLevel(level string) (zerolog.Logger, error) {
	if level == "" {
		return New().Level(zerolog.InfoLevel), nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("NewWithLevel: %w", err)
	}
	return New().Level(lvl), nil
}

// NewWithWriter returns a JSON logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the logger stored in ctx, or New() when there is none.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

// WithFields returns a child of logger carrying fields on every event.
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	return logger.With().Fields(fields).Logger()
}
