package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupHonoursLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup("warn", &buf)
	slog.Info("hidden")
	slog.Warn("shown", "bot", "b1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "bot=b1") {
		t.Fatalf("warn record missing: %q", out)
	}

	SetLevel("debug")
	slog.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("level change not applied")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
