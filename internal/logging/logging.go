// File: internal/logging/logging.go (complete file)

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup creates a logger and sets it as the process-wide default.
// Packages that are not handed a logger fall back to slog.Default().
func Setup(level, format string) *slog.Logger {
	l := New(os.Stderr, level, format)
	slog.SetDefault(l)
	return l
}

// New builds a handler writing to w. format is "text" (default) or "json".
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// LevelTrace is below debug; the WebRTC engine's trace output lands here.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps trace|debug|info|warn|error to a level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
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
