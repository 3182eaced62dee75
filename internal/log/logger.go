// Package log wraps slog behind a small configuration surface: leveled
// text or JSON output plus a process-wide default logger for components
// that are not handed one explicitly.
package log

import (
	stderrors "errors"
	"log/slog"

	"github.com/flowbench/flowbench/internal/errors"
)

// Logger is a leveled structured logger.
type Logger struct {
	slog   *slog.Logger
	config Config
}

// New builds a Logger from the given configuration.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(config.Output.Writer(), opts)
	} else {
		handler = slog.NewTextHandler(config.Output.Writer(), opts)
	}

	sl := slog.New(handler)
	if config.ServiceName != "" {
		args := []any{"service", config.ServiceName}
		if config.ServiceVersion != "" {
			args = append(args, "service_version", config.ServiceVersion)
		}
		sl = sl.With(args...)
	}

	return &Logger{slog: sl, config: config}
}

// Default builds a Logger with DefaultConfig.
func Default() *Logger {
	return New(DefaultConfig())
}

// With returns a Logger carrying the given attributes on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config}
}

// WithError returns a Logger annotated with the error. A FlowError
// contributes its code, suggestions, and cause as attributes.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	var flowErr *errors.FlowError
	if !stderrors.As(err, &flowErr) {
		return l.With("error", err.Error())
	}

	args := []any{
		"error", flowErr.Message,
		"error_code", string(flowErr.Code),
	}
	if len(flowErr.Suggestions) > 0 {
		args = append(args, "suggestions", flowErr.Suggestions)
	}
	if flowErr.Cause != nil {
		args = append(args, "cause", flowErr.Cause.Error())
	}
	return l.With(args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Config returns the configuration the Logger was built from.
func (l *Logger) Config() Config {
	return l.config
}
