package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q): wantErr=%v, got %v", tt.in, tt.wantErr, err)
		}
	}
}

func TestValidFormat(t *testing.T) {
	if !ValidFormat("json") || !ValidFormat("text") {
		t.Error("json and text should be valid")
	}
	if ValidFormat("xml") {
		t.Error("xml should not be valid")
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kstar.log")

	log, closeFn, err := OpenFile(path, "info", "json")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	log.Info("window full", "size", 3)
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	log, closeFn, err = OpenFile(path, "info", "json")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	log.Info("stream done")
	_ = closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected appended records, got %q", data)
	}
	if !strings.Contains(lines[1], "stream done") {
		t.Errorf("unexpected second record %q", lines[1])
	}
}

func TestOpenFile_BadPath(t *testing.T) {
	_, _, err := OpenFile(filepath.Join(t.TempDir(), "missing", "kstar.log"), "info", "text")
	if err == nil {
		t.Error("expected error for a missing directory")
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	log.Debug("hidden")
	log.Info("window full", "size", 10)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["msg"] != "window full" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["size"] != float64(10) {
		t.Errorf("unexpected size: %v", rec["size"])
	}
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "text")
	log.Debug("engine initialized", "generation", 1)

	if !strings.Contains(buf.String(), "generation=1") {
		t.Errorf("expected text attributes, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
}
