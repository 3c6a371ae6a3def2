package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_DefaultInitialization(t *testing.T) {
	// Log should be initialized by default and not panic
	if Log == nil {
		t.Fatal("Log should not be nil by default")
	}

	// Should not panic
	Log.Info("Testing default logger")
}

func TestLogger_WithAddsContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info").With("cycle", "abc")
	l.Info("bound to", "port", 4242)

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Expected a JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "bound to" {
		t.Errorf("Expected msg %q, got %v", "bound to", rec["msg"])
	}
	if rec["cycle"] != "abc" {
		t.Errorf("Expected cycle attribute abc, got %v", rec["cycle"])
	}
	if rec["port"] != float64(4242) {
		t.Errorf("Expected port 4242, got %v", rec["port"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Error("Expected warn record to be written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ValidLevel("verbose") {
		t.Error("verbose should not be a valid level")
	}
}

func TestLogger_SourceIsCaller(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug").With("cycle", "abc").Warn("dial failed")

	var rec struct {
		Source struct {
			File string `json:"file"`
		} `json:"source"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Expected a JSON record, got %q: %v", buf.String(), err)
	}
	if !strings.HasSuffix(rec.Source.File, "logger_test.go") {
		t.Errorf("Expected source in logger_test.go, got %q", rec.Source.File)
	}
}
