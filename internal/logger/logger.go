// Package logger configures the process-wide slog default.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var levelVar slog.LevelVar

// Setup installs a text handler writing to w as the slog default.
func Setup(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	SetLevel(level)
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
	slog.SetDefault(l)
	return l
}

// SetLevel changes the level of loggers built by Setup. Unknown values mean info.
func SetLevel(level string) {
	levelVar.Set(ParseLevel(level))
}

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
