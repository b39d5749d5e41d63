package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "info": slog.LevelInfo, "": slog.LevelInfo, "loud": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in, false); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ParseLevel("error", true) != slog.LevelDebug {
		t.Fatalf("debug flag should force debug level")
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, slog.LevelWarn)
	l.Info("hidden")
	l.Warn("shown", "owner", "scan-surface")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"owner":"scan-surface"`) {
		t.Fatalf("unexpected output %s", out)
	}
}
