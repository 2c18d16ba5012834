// Package logging configures log/slog for the service.
//
// Records logged with a request context carry the chi request id and, once
// the session middleware has run, the caller's user id. Every record that
// passes the level filter is also copied into a capped in-memory ring that
// backs the admin debug log view.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
)

// defaultRing backs Recent. Replaced on every Setup call.
var defaultRing = NewRing(0)

// Setup installs the default logger writing to stdout.
//
// level is one of debug, info, warn or error (default info). format is
// "json" for production or "text" (default). ringSize bounds the records
// kept for Recent; zero disables the ring.
func Setup(level, format string, ringSize int) {
	SetupWriter(os.Stdout, level, format, ringSize)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string, ringSize int) {
	defaultRing = NewRing(ringSize)
	base := newHandler(w, format, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(NewRingHandler(base, defaultRing)))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts a level name to slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Recent returns up to n of the newest records captured since Setup,
// oldest first.
func Recent(n int) []Record {
	return defaultRing.Recent(n)
}

// FromContext returns the default logger with request_id and user_id
// attached when ctx carries them.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if id, ok := auth.IdentityFrom(ctx); ok {
		logger = logger.With("user_id", id.UserID)
	}
	return logger
}

// WithFields returns a request logger with additional fields, for
// operations that log several steps:
//
//	log := logging.WithFields(ctx, "entry_id", entryID, "section", key)
//	log.Info("section saved", "completed", done)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
