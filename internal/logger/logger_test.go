package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: " WARN ", want: zapcore.WarnLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "verbose", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Fatalf("parseLevel(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(Config{Level: "info"}, &buf)
	log.Debug("hidden")
	log.Info("session connected", zap.String("session_id", "abc"))
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines=%d, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "session connected" || entry["session_id"] != "abc" {
		t.Fatalf("entry=%v", entry)
	}
}

func TestNewWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(Config{Format: "console"}, &buf)
	log.Warn("gateway slow")
	_ = log.Sync()
	if !strings.Contains(buf.String(), "WARN") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("console output=%q", buf.String())
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Config{File: FileConfig{Enabled: true, Path: filepath.Join(dir, "logs")}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	log.Info("written to file")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "logs", defaultFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file=%q", data)
	}
}
