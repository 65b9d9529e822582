package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Config{Level: "debug", Output: &buf}), "query")
	log.Debug().Int("rows", 2).Msg("query executed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON entry, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "query" || entry["service"] != "taskman" {
		t.Errorf("missing fields in %v", entry)
	}
	if entry["rows"] != float64(2) {
		t.Errorf("expected rows=2, got %v", entry["rows"])
	}
}

func TestLevelFiltersEntries(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}
	op := Operation(log, "storage", "put")
	op.Warn().Msg("shown")
	if !bytes.Contains(buf.Bytes(), []byte(`"operation":"put"`)) {
		t.Errorf("expected operation field, got %q", buf.String())
	}
}
