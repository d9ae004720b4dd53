package logging

import (
	"io"
	"log/slog"
)

// New returns a JSON logger in production and a text logger elsewhere.
func New(w io.Writer, level slog.Level, prod bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if prod {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Resolve guarantees a non-nil logger for code paths that accept an optional one.
func Resolve(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
