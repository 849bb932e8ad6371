package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is one step below debug; the engine logs whole stage payloads at it.
const LevelTrace = slog.LevelDebug - 4

const decisionsFile = "decisions.jsonl"

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// NewLogger writes text lines to w and prints LevelTrace as TRACE.
func NewLogger(level string, w io.Writer) *slog.Logger {
	label := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey && a.Value.Any() == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
		return a
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level), ReplaceAttr: label}))
}

// DecisionLogger appends one JSON line per simulated hour. The nil value drops records.
type DecisionLogger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewDecisionLogger returns nil unless dir is set and level is debug or lower.
func NewDecisionLogger(dir, level string) *DecisionLogger {
	if dir == "" || ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, decisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return &DecisionLogger{f: f, enc: json.NewEncoder(f)}
}

func (dl *DecisionLogger) Log(record map[string]any) {
	if dl == nil {
		return
	}
	line := map[string]any{"logged_at": time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range record {
		line[k] = v
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.f != nil {
		_ = dl.enc.Encode(line)
	}
}

func (dl *DecisionLogger) Close() error {
	if dl == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.f == nil {
		return nil
	}
	err := dl.f.Close()
	dl.f = nil
	return err
}
