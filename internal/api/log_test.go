package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"giggleglitch/pkg/logging"
)

func TestParseLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		level string
	}{
		{
			name:  "condensed",
			input: `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Generator: Fetching joke" vibe=clever topic="space cats" error="a very long upstream failure message that does not fit"`,
			want:  "06:50:46 Generator: Fetching joke (topic=space cats, vibe=clever)",
			level: "INFO",
		},
		{
			name:  "no attributes",
			input: `time=2026-01-18T06:50:46+01:00 level=WARN msg="Live: Disconnected"`,
			want:  "06:50:46 Live: Disconnected",
			level: "WARN",
		},
		{
			name:  "not structured",
			input: "panic: something",
			want:  "panic: something",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := parseLogLine(tt.input)
			if got := l.String(); got != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, got)
			}
			if l.level != tt.level {
				t.Errorf("Expected level '%s', got '%s'", tt.level, l.level)
			}
		})
	}
}

func TestHandleLatestLog(t *testing.T) {
	_, _ = logging.GlobalLogCapture.Write([]byte(`time=2026-01-18T06:50:46Z level=INFO msg="Chat: Reply appended" sources=2` + "\n"))

	w := httptest.NewRecorder()
	handleLatestLog(w, httptest.NewRequest(http.MethodGet, "/api/log/latest", http.NoBody))

	var resp LogLineResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Log != "06:50:46 Chat: Reply appended (sources=2)" {
		t.Errorf("unexpected log line %q", resp.Log)
	}
}
