package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestJSONLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "json").With().Str("component", "queue").Logger()

	l.Info().Str("item_id", "abc").Msg("item completed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "queue" {
		t.Errorf("expected component=queue, got %v", entry["component"])
	}
	if entry["message"] != "item completed" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestConfigure(t *testing.T) {
	orig := Log
	defer func() { Log = orig }()

	Configure("warn", "json")
	if Log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %v", Log.GetLevel())
	}

	c := Component("api")
	if c.GetLevel() != zerolog.WarnLevel {
		t.Errorf("component logger should inherit level, got %v", c.GetLevel())
	}
}
