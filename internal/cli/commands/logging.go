package commands

import (
	"io"
	"log/slog"
)

// newLogger returns the diagnostics logger for a command. Reports go to
// stdout through the formatters; diagnostics go to w, normally stderr.
//
// Default level is warn: dropped measurements and discarded records are
// shown, per-file progress is not.
func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
