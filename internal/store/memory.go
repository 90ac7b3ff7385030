package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/ringsim/internal/constants"
)

// InMemoryRunStore implements RunStore for testing and for runs started
// with the catalog disabled.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
	seq  map[string]int
	next int
	now  func() time.Time
}

// NewInMemoryRunStore creates an empty in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[string]*Run),
		seq:  make(map[string]int),
		now:  time.Now,
	}
}

// StartRun adds a running run.
func (s *InMemoryRunStore) StartRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.LogPath == "" {
		return "", fmt.Errorf("run log path is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := s.runs[run.ID]; exists {
		return "", fmt.Errorf("run already exists: %s", run.ID)
	}

	now := s.now().UTC()
	for _, r := range s.runs {
		if r.LogPath == run.LogPath && r.Status == constants.RunRunning {
			r.Status = constants.RunInterrupted
			r.UpdatedAt = now
			r.FinishedAt = &now
		}
	}

	run.Status = constants.RunRunning
	run.LastStep = run.FirstStep - 1
	run.Steps = 0
	run.Error = ""
	run.Metrics = slices.Clone(run.Metrics)
	run.StartedAt = now
	run.UpdatedAt = now
	run.FinishedAt = nil

	s.runs[run.ID] = &run
	s.seq[run.ID] = s.next
	s.next++
	return run.ID, nil
}

// RecordProgress updates the step counters of a run.
func (s *InMemoryRunStore) RecordProgress(ctx context.Context, id string, lastStep, steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	r.LastStep = lastStep
	r.Steps = steps
	r.UpdatedAt = s.now().UTC()
	return nil
}

// FinishRun sets a terminal status and the finish time.
func (s *InMemoryRunStore) FinishRun(ctx context.Context, id string, status constants.RunStatus, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finish run with non-terminal status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	now := s.now().UTC()
	r.Status = status
	r.Error = errMsg
	r.UpdatedAt = now
	r.FinishedAt = &now
	return nil
}

// GetRun returns a copy of the run with the given ID.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	out := copyRun(r)
	return &out, nil
}

// ListRuns returns copies of matching runs, newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Run
	for _, r := range s.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.LogPath != "" && r.LogPath != filter.LogPath {
			continue
		}
		out = append(out, copyRun(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Close is a no-op for in-memory store.
func (s *InMemoryRunStore) Close() error {
	return nil
}

func copyRun(r *Run) Run {
	out := *r
	out.Metrics = slices.Clone(r.Metrics)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
