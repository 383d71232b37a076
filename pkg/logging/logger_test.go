package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"giggleglitch/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// a previous run's log gets rotated
	if err := os.WriteFile(serverLog, []byte("old run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
	}

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	old, err := os.ReadFile(serverLog + ".old")
	if err != nil || string(old) != "old run\n" {
		t.Errorf("expected previous log rotated to .old, got %q (%v)", old, err)
	}
	if RequestLogger == nil {
		t.Error("RequestLogger was not initialized")
	}

	slog.Info("capture me", "k", "v")
	if got := GlobalLogCapture.GetLastLine(); !strings.Contains(got, "capture me") {
		t.Errorf("expected captured line, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	defer func() { EnableTrace = false }()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"trace", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !EnableTrace {
		t.Error("TRACE level should enable trace logging")
	}
}

func TestSetupHandlerNoFile(t *testing.T) {
	h, f, err := setupHandler("", "INFO", false)
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Error("expected no file")
	}
	if h.Enabled(t.Context(), slog.LevelError) {
		t.Error("discard handler should not be enabled")
	}
}

func TestPromptHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gemini.log")
	h := NewPromptHistory(path)
	h.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	h.Record("joke", "Tell me a joke", "Why did the chicken cross the road?")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.HasPrefix(s, "[2026-01-02 03:04:05] PROMPT: joke\n") {
		t.Errorf("unexpected entry header: %q", s)
	}
	if !strings.Contains(s, "RESPONSE:\nWhy did the chicken cross the road?") {
		t.Errorf("response missing: %q", s)
	}

	var disabled *PromptHistory
	disabled.Record("x", "y", "z") // must not panic
}

func TestWordWrap(t *testing.T) {
	got := WordWrap("aaa bbb ccc", 7)
	if got != "aaa bbb\nccc" {
		t.Errorf("WordWrap = %q", got)
	}
	if WordWrap("keep", 0) != "keep" {
		t.Error("width 0 should return input")
	}
}
