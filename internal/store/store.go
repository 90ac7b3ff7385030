// Package store defines the RunStore interface for cataloguing simulation
// runs and their progress.
//
// The catalog only mirrors what the result log says. A run is resumed from
// its log file, never from the catalog.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/ringsim/internal/constants"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the simulation runner.
type Run struct {
	ID     string              `json:"id"`
	Status constants.RunStatus `json:"status"`

	// LogPath is the result log the run appends to.
	LogPath   string   `json:"log_path"`
	Topology  string   `json:"topology"`
	SeriesDir string   `json:"series_dir"`
	Metrics   []string `json:"metrics"`

	// FirstStep is the step the run started at; resumed runs start past 0.
	FirstStep int `json:"first_step"`
	// LastStep is the last step logged, or -1 before any.
	LastStep int `json:"last_step"`
	// Stop is the exclusive step bound.
	Stop  int `json:"stop"`
	Steps int `json:"steps"`

	Error string `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ListFilter narrows ListRuns. Zero values match everything.
type ListFilter struct {
	Status  constants.RunStatus
	LogPath string
	Limit   int
}

// RunStore persists run records.
type RunStore interface {
	// StartRun records a new running run and returns its ID. An empty
	// run.ID gets a fresh UUID. Runs still marked running on the same log
	// path are marked interrupted first.
	StartRun(ctx context.Context, run Run) (string, error)

	// RecordProgress stores the last logged step and the step count so far.
	RecordProgress(ctx context.Context, id string, lastStep, steps int) error

	// FinishRun moves a run to a terminal status.
	FinishRun(ctx context.Context, id string, status constants.RunStatus, errMsg string) error

	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter ListFilter) ([]Run, error)

	Close() error
}
