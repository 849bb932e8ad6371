package logging

import (
	"bufio"
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
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"trace", LevelTrace},
		{"warn", slog.LevelWarn},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerFiltersAndLabelsTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("info logger output = %q", buf.String())
	}

	buf.Reset()
	logger = NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "deep")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Fatalf("trace level not labelled: %q", buf.String())
	}
}

func TestDecisionLoggerDisabledAtInfo(t *testing.T) {
	dir := t.TempDir()
	if dl := NewDecisionLogger(dir, "info"); dl != nil {
		t.Fatalf("expected nil decision logger at info level")
	}
	if _, err := os.Stat(filepath.Join(dir, decisionsFile)); !os.IsNotExist(err) {
		t.Fatalf("no file should be created at info level")
	}

	var dl *DecisionLogger
	dl.Log(map[string]any{"t": 1})
	if err := dl.Close(); err != nil {
		t.Fatalf("nil Close returned %v", err)
	}
}

func TestDecisionLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	if dl == nil {
		t.Fatalf("expected decision logger at debug level")
	}
	rec := map[string]any{"t": 3, "stage": "policy"}
	dl.Log(rec)
	dl.Log(map[string]any{"t": 4})
	if _, ok := rec["logged_at"]; ok {
		t.Fatalf("caller map was mutated")
	}
	if err := dl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, decisionsFile))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d not JSON: %v", lines, err)
		}
		if _, ok := m["logged_at"]; !ok {
			t.Fatalf("line %d missing timestamp", lines)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}

	dl.Log(map[string]any{"t": 5})
	if err := dl.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
