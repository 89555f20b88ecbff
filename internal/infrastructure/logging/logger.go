// Package logging configures the structured logger shared by every component.
package logging

import (
	"domoticz-hue-emulator/internal/domain/model"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger carrying the service and version fields.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by cfg.
func New(cfg model.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg model.LoggingConfig, version string, out io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hue-emulator"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// ParseLevel maps debug, info, warn and error onto slog levels; anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger with extra default attributes, e.g. With("component", "ssdp").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is used until the configuration is loaded.
func Default() *Logger {
	return New(model.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, "dev")
}
