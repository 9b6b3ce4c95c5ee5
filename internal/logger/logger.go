package logger

import (
	"io"
	"log/slog"
	"os"
)

// New creates a slog.Logger writing JSON to os.Stdout. Debug mode lowers
// the level to Debug.
func New(debug bool) *slog.Logger {
	return NewWithWriter(os.Stdout, debug)
}

// NewWithWriter creates a slog.Logger with a specific writer, mainly for tests.
func NewWithWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Component tags a logger with the subsystem it logs for, so every line can
// be filtered by the "component" attribute.
func Component(log *slog.Logger, name string) *slog.Logger {
	return log.With("component", name)
}
