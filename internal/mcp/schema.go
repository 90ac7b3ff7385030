package mcp

import (
	"time"

	"github.com/nvandessel/ringsim/internal/runlog"
	"github.com/nvandessel/ringsim/internal/store"
	"github.com/nvandessel/ringsim/internal/topology"
)

// TopologyInput defines the input for the ringsim_topology tool.
type TopologyInput struct {
	Config         string `json:"config,omitempty" jsonschema:"Topology config path (default: topology.config setting)"`
	LayoutDir      string `json:"layout_dir,omitempty" jsonschema:"Directory holding the layout documents (default: topology.layout_dir setting)"`
	IncludeNames   bool   `json:"include_names,omitempty" jsonschema:"Include every bus and line name"`
	IncludeMinimal bool   `json:"include_minimal,omitempty" jsonschema:"Include the minimal connection and admittance export"`
}

// TopologyOutput defines the output for the ringsim_topology tool.
type TopologyOutput struct {
	Config    string            `json:"config" jsonschema:"Topology config that was built"`
	LayoutDir string            `json:"layout_dir" jsonschema:"Layout directory that was used"`
	Summary   *topology.Summary `json:"summary" jsonschema:"Entity counts of the built network"`
	Minimal   *topology.Minimal `json:"minimal,omitempty" jsonschema:"Minimal export, when requested"`
}

// StatusInput defines the input for the ringsim_status tool.
type StatusInput struct {
	LogPath string `json:"log_path,omitempty" jsonschema:"Result log to classify (default: res.csv in simulation.out_dir)"`
}

// StatusOutput defines the output for the ringsim_status tool.
type StatusOutput struct {
	Path     string      `json:"path" jsonschema:"Result log that was classified"`
	State    string      `json:"state" jsonschema:"fresh, header_pending or resuming"`
	Columns  []string    `json:"columns,omitempty" jsonschema:"Metric columns of the header"`
	Rows     int         `json:"rows" jsonschema:"Number of logged steps"`
	LastStep int         `json:"last_step" jsonschema:"Last logged step, -1 when none"`
	NextStep int         `json:"next_step" jsonschema:"Step a run would start at"`
	Latest   *RunSummary `json:"latest_run,omitempty" jsonschema:"Most recent catalogued run on this log"`
}

func statusOutput(st *runlog.Status) StatusOutput {
	return StatusOutput{
		Path:     st.Path,
		State:    st.State.String(),
		Columns:  st.Columns,
		Rows:     st.Rows,
		LastStep: st.LastStep,
		NextStep: st.LastStep + 1,
	}
}

// RunSummary is a catalogued run with flattened timestamps.
type RunSummary struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	LogPath    string   `json:"log_path"`
	Topology   string   `json:"topology,omitempty"`
	Metrics    []string `json:"metrics,omitempty"`
	FirstStep  int      `json:"first_step"`
	LastStep   int      `json:"last_step"`
	Stop       int      `json:"stop"`
	Steps      int      `json:"steps"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"started_at"`
	UpdatedAt  string   `json:"updated_at"`
	FinishedAt string   `json:"finished_at,omitempty"`
}

func summarizeRun(r store.Run) RunSummary {
	out := RunSummary{
		ID:        r.ID,
		Status:    r.Status.String(),
		LogPath:   r.LogPath,
		Topology:  r.Topology,
		Metrics:   r.Metrics,
		FirstStep: r.FirstStep,
		LastStep:  r.LastStep,
		Stop:      r.Stop,
		Steps:     r.Steps,
		Error:     r.Error,
		StartedAt: r.StartedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		out.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	return out
}

// RunsInput defines the input for the ringsim_runs tool.
type RunsInput struct {
	Status  string `json:"status,omitempty" jsonschema:"Filter by status: running, complete, failed, interrupted"`
	LogPath string `json:"log_path,omitempty" jsonschema:"Filter by result log path"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of runs (default 20)"`
}

// RunsOutput defines the output for the ringsim_runs tool.
type RunsOutput struct {
	Runs  []RunSummary `json:"runs" jsonschema:"Runs, newest first"`
	Count int          `json:"count" jsonschema:"Number of runs returned"`
}
