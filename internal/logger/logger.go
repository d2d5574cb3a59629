// Package logger provides structured logging setup for NoteVault.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/NoteVault/internal/config"
)

const (
	asyncBuffer  = 4096
	asyncWorkers = 2
)

// level is shared by every logger built here so a config reload can
// change verbosity without rebuilding handlers.
var level = new(slog.LevelVar)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and
// request, tenant and account identifiers pulled from the context.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	SetLevel(cfg.Level)

	var inner slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(inner, asyncBuffer, asyncWorkers)
		inner = ah
		closer = ah
	}

	return slog.New(&ContextHandler{inner: inner}).With("service", cfg.Service), closer
}

// SetLevel changes the minimum level of all loggers created by New.
func SetLevel(s string) {
	level.Set(parseLevel(s))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
