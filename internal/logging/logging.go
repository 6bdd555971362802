// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init creates the default logger on stderr and installs it.
// When stdoutIsProtocol is true (the stdio transport owns stdout), records
// are JSON so they stay machine-readable next to the protocol stream.
// Otherwise the text handler is used for human readability.
func Init(stdoutIsProtocol bool, level slog.Level) *slog.Logger {
	l := New(os.Stderr, stdoutIsProtocol, level)
	slog.SetDefault(l)
	return l
}

// New returns a logger writing to w, JSON or text, at level.
func New(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
