package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/planforge/planforge/internal/errors"
)

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:       LevelInfo,
		Format:      FormatJSON,
		Output:      &buf,
		ServiceName: "planforge-test",
	})

	logger.Info("session loaded", "participant", "p-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "session loaded" {
		t.Errorf("msg = %v, want 'session loaded'", entry["msg"])
	}
	if entry["participant"] != "p-1" {
		t.Errorf("participant = %v, want p-1", entry["participant"])
	}
	if entry["service"] != "planforge-test" {
		t.Errorf("service = %v, want planforge-test", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info output should be filtered at WARN level: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing: %s", out)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	fe := errors.NewUnknownLegendVersionError("v7")
	logger.WithError(fe).Error("decompress failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["error_code"] != "CODEC-001" {
		t.Errorf("error_code = %v, want CODEC-001", entry["error_code"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
