package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/ringsim/internal/constants"
)

func readAudit(t *testing.T, root string) []AuditEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(root, constants.UserConfigDir, AuditFile))
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parsing audit entry %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_NilSafety(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "test"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil logger returned error: %v", err)
	}
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	root := t.TempDir()
	logger := NewAuditLogger(root)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	logger.Log(AuditEntry{
		Timestamp:  time.Now(),
		Tool:       "ringsim_runs",
		DurationMs: 42,
		Status:     "success",
		Params:     map[string]string{"limit": "5"},
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Writes after close are dropped.
	logger.Log(AuditEntry{Tool: "late"})

	entries := readAudit(t, root)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Tool != "ringsim_runs" || e.DurationMs != 42 || e.Status != "success" || e.Params["limit"] != "5" {
		t.Errorf("entry = %+v", e)
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	root := t.TempDir()
	logger := NewAuditLogger(root)
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: "ringsim_status", Status: "success"})
		}()
	}
	wg.Wait()

	if got := len(readAudit(t, root)); got != 20 {
		t.Errorf("got %d entries, want 20", got)
	}
}

func TestSanitizeToolParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   map[string]string
	}{
		{
			name:   "nil",
			params: nil,
			want:   nil,
		},
		{
			name:   "paths are presence only",
			params: map[string]any{"log_path": "/home/me/res.csv", "limit": 5, "status": "failed"},
			want:   map[string]string{"log_path": "(set)", "limit": "5", "status": "failed", "_param_count": "3"},
		},
		{
			name:   "zero values are omitted",
			params: map[string]any{"config": "", "include_names": false, "limit": 0},
			want:   map[string]string{"_param_count": "0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeToolParams(tt.params)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("sanitizeToolParams() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandlers_AreAudited(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleRuns(ctx, nil, RunsInput{Limit: 3}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := server.handleRuns(ctx, nil, RunsInput{Status: "bogus"}); err == nil {
		t.Fatal("expected error for bogus status")
	}
	root := server.root
	if err := server.Close(); err != nil {
		t.Fatal(err)
	}

	entries := readAudit(t, root)
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}
	if entries[0].Status != "success" || entries[0].Params["limit"] != "3" {
		t.Errorf("first entry = %+v, want success with limit 3", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error == "" {
		t.Errorf("second entry = %+v, want error", entries[1])
	}
}
