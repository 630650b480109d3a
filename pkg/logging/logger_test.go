package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"upper case", "ERROR", slog.LevelError},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestBothFormatFansOut(t *testing.T) {
	var jsonOut, textOut bytes.Buffer
	logger := NewWithOptions(Options{Format: "both", Out: &jsonOut, ErrOut: &textOut})

	logger.Component("webhook").Info("message accepted", "message_id", "wamid.1")

	var record map[string]any
	if err := json.Unmarshal(jsonOut.Bytes(), &record); err != nil {
		t.Fatalf("json output not decodable: %v (%q)", err, jsonOut.String())
	}
	if record["component"] != "webhook" || record["message_id"] != "wamid.1" {
		t.Fatalf("unexpected json record: %v", record)
	}
	if !strings.Contains(textOut.String(), "msg=\"message accepted\"") {
		t.Fatalf("text output missing message: %q", textOut.String())
	}
}

func TestTextFormat(t *testing.T) {
	var out bytes.Buffer
	logger := NewWithOptions(Options{Format: "text", Out: &out})
	logger.Warn("slow provider")
	if !strings.Contains(out.String(), "level=WARN") {
		t.Fatalf("expected text record, got %q", out.String())
	}
}
