// =============================================================================
// pkg/logging/logging.go - Structured Logger Setup
// =============================================================================
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New builds a text or JSON slog logger writing to w.
func New(w io.Writer, levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
