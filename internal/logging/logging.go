// Package logging constructs the loggers used across tagsmith commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Default returns a text logger writing to stderr, tagged with the
// component name. The level is controlled by TAGSMITH_LOG_LEVEL
// (debug, info, warn, error); unset or unrecognized values mean info.
func Default(name string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(handler).With("component", name)
}

// Discard returns a logger that drops everything. Used in tests and as
// the fallback when a caller passes a nil logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("TAGSMITH_LOG_LEVEL")) {
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
