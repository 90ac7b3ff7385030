package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/nvandessel/ringsim/internal/eqseries"
	"github.com/nvandessel/ringsim/internal/grid"
	"github.com/nvandessel/ringsim/internal/runlog"
)

// State is the runner's position in its lifecycle.
type State int

const (
	Fresh State = iota
	HeaderPending
	Resuming
	Running
	Complete
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case HeaderPending:
		return "header_pending"
	case Resuming:
		return "resuming"
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func fromLogState(s runlog.State) State {
	switch s {
	case runlog.HeaderPending:
		return HeaderPending
	case runlog.Resuming:
		return Resuming
	default:
		return Fresh
	}
}

// StepFunc advances the network by one step and returns one value per metric
// name. The series row of the step has already been applied to net.
type StepFunc func(ctx context.Context, net *grid.Network, metrics []string) (map[string]float64, error)

// Observer is notified after each row reaches the log.
type Observer interface {
	StepLogged(step int, values map[string]float64)
}

// Runner executes one run. Fields are read at Run; do not change them while
// Run is in progress.
type Runner struct {
	Network *grid.Network
	Series  *eqseries.Store
	Step    StepFunc

	// Metrics fixes the header order. When empty, the header is the sorted
	// names returned by the first step.
	Metrics []string

	LogPath string

	// Stop is the exclusive upper step bound. Zero means Series.Len().
	Stop int

	Observers []Observer
	Logger    *slog.Logger

	state State
}

// Result summarizes one call to Run.
type Result struct {
	Start   State    `json:"start"`
	State   State    `json:"state"`
	First   int      `json:"first_step"`
	Last    int      `json:"last_step"`
	Steps   int      `json:"steps"`
	Stop    int      `json:"stop"`
	Columns []string `json:"columns"`
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return r.state
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// stopBound resolves the exclusive stop step against the series length.
func (r *Runner) stopBound() (int, error) {
	n := r.Series.Len()
	switch {
	case r.Stop < 0:
		return 0, fmt.Errorf("stop must not be negative, got %d", r.Stop)
	case r.Stop == 0:
		return n, nil
	case r.Stop > n:
		return 0, fmt.Errorf("stop %d exceeds the %d available series steps", r.Stop, n)
	default:
		return r.Stop, nil
	}
}

// Run executes every step from where the log left off up to the stop bound.
// A step failure returns a *StepError and leaves the log at the last good
// row. A cancelled ctx stops the run between steps.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Network == nil || r.Series == nil || r.Step == nil {
		return nil, errors.New("runner needs a network, a series and a step function")
	}
	if r.LogPath == "" {
		return nil, errors.New("runner needs a log path")
	}
	stop, err := r.stopBound()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(r.LogPath), 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	res := &Result{Stop: stop, Last: -1}
	err = runlog.With(r.LogPath, func(l *runlog.Logger) error {
		return r.run(ctx, l, stop, res)
	})
	res.State = r.state
	if err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, l *runlog.Logger, stop int, res *Result) error {
	log := r.logger()

	// Phase 1: classify the log and find the first step to run.
	r.state = fromLogState(l.State())
	res.Start = r.state
	next := 0
	if last, ok := l.LastStep(); ok {
		next = last + 1
		res.Last = last
	}
	res.First = next
	res.Columns = l.Columns()

	if r.state == Resuming && len(r.Metrics) > 0 && !slices.Equal(res.Columns, r.Metrics) {
		return &runlog.SchemaMismatchError{Expected: res.Columns, Got: slices.Clone(r.Metrics)}
	}

	log.Info("run started",
		"log", l.Path(),
		"state", r.state,
		"next_step", next,
		"stop", stop)

	if next >= stop {
		r.state = Complete
		log.Info("run already complete", "last_step", res.Last, "stop", stop)
		return nil
	}

	// Phase 2: step until the stop bound.
	needHeader := r.state != Resuming
	r.state = Running
	for step := next; step < stop; step++ {
		if err := ctx.Err(); err != nil {
			log.Warn("run interrupted", "last_step", res.Last, "error", err)
			return fmt.Errorf("run interrupted before step %d: %w", step, err)
		}

		if err := r.applyRow(step); err != nil {
			return &StepError{Step: step, Phase: "apply", Err: err}
		}
		values, err := r.Step(ctx, r.Network, r.Metrics)
		if err != nil {
			return &StepError{Step: step, Phase: "step", Err: err}
		}

		if needHeader {
			columns := r.Metrics
			if len(columns) == 0 {
				columns = sortedKeys(values)
			}
			if err := l.WriteHeader(columns); err != nil {
				return fmt.Errorf("writing header: %w", err)
			}
			res.Columns = l.Columns()
			needHeader = false
		}
		if err := l.WriteRow(step, values); err != nil {
			return fmt.Errorf("logging step %d: %w", step, err)
		}

		res.Last = step
		res.Steps++
		log.Debug("step logged", "step", step)
		for _, o := range r.Observers {
			o.StepLogged(step, values)
		}
	}

	// Phase 3: done.
	r.state = Complete
	log.Info("run complete", "steps", res.Steps, "last_step", res.Last)
	return nil
}

// applyRow writes the step's row of every tracked pair into the network.
func (r *Runner) applyRow(step int) error {
	for _, p := range r.Series.Pairs() {
		row, err := r.Series.Row(p, step)
		if err != nil {
			return err
		}
		if err := r.Network.Apply(p.Element, p.Quantity, row); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
