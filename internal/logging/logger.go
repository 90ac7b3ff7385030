// Package logging provides leveled logging and step tracing for ringsim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TraceLogger for per-step JSONL events (<out_dir>/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/ringsim/internal/constants"
)

// LevelTrace is a custom slog level below Debug. At this level step traces
// carry every metric value.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a level name to a slog.Level.
// Supported values: "error", "warn", "info", "debug", "trace"
// (case-insensitive). Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "error", "warn", "warning", "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TraceLogger appends step events to a JSONL file. It is safe for
// concurrent use, and a nil *TraceLogger is a valid no-op.
type TraceLogger struct {
	mu     sync.Mutex
	file   *os.File
	values bool
	runID  string
	last   time.Time
}

// NewTraceLogger opens dir/trace.jsonl for append. At info level and above
// it returns nil and creates nothing. Metric values are included only at
// trace level. Returns nil if the file cannot be opened.
func NewTraceLogger(dir, level, runID string) *TraceLogger {
	lvl := ParseLevel(level)
	if lvl > slog.LevelDebug {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}
	path := filepath.Join(dir, constants.TraceFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}

	return &TraceLogger{file: f, values: lvl <= LevelTrace, runID: runID, last: time.Now()}
}

// Log writes an event as one JSONL line with a "time" field added. The
// caller's map is not mutated.
func (tl *TraceLogger) Log(event map[string]any) {
	if tl == nil {
		return
	}

	entry := make(map[string]any, len(event)+2)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	if tl.runID != "" {
		entry["run_id"] = tl.runID
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return
	}
	_, _ = tl.file.Write(data)
}

// StepLogged records a completed step with the time since the previous one.
func (tl *TraceLogger) StepLogged(step int, values map[string]float64) {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(tl.last)
	tl.last = now
	tl.mu.Unlock()

	event := map[string]any{
		"event":       "step",
		"step":        step,
		"duration_ms": elapsed.Milliseconds(),
	}
	if tl.values {
		// NaN and Inf have no JSON form.
		clean := make(map[string]any, len(values))
		for k, v := range values {
			clean[k] = jsonFloat(v)
		}
		event["values"] = clean
	}
	tl.Log(event)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tl *TraceLogger) Close() {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file != nil {
		tl.file.Close()
		tl.file = nil
	}
}

func jsonFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
