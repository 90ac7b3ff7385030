package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ringsim/internal/constants"
	"github.com/nvandessel/ringsim/internal/eqseries"
	"github.com/nvandessel/ringsim/internal/logging"
	"github.com/nvandessel/ringsim/internal/metrics"
	"github.com/nvandessel/ringsim/internal/runlog"
	"github.com/nvandessel/ringsim/internal/simulation"
	"github.com/nvandessel/ringsim/internal/solver"
	"github.com/nvandessel/ringsim/internal/store"
)

func newRunCmd() *cobra.Command {
	var topo topologyFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step the solver through the series and log metrics",
		Long: `Run the simulation: for every step, apply the series row to the network,
call the solver command and append the metric values to <out_dir>/res.csv.

If the log already holds rows, the run continues after the last logged step.
Interrupting the run (Ctrl-C) stops it between steps; the log keeps every
completed row.

Examples:
  ringsim run
  ringsim run --steps 48 --metrics max_loading_inner,avg_loading_all
  ringsim run --no-catalog --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			topo.apply(e)
			if err := applyRunFlags(cmd, e); err != nil {
				return err
			}
			if err := e.app.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			noCatalog, _ := cmd.Flags().GetBool("no-catalog")
			return runSimulation(cmd.Context(), e, noCatalog)
		},
	}

	cmd.Flags().StringVar(&topo.config, "topology-config", "", "Topology config file (overrides topology.config)")
	cmd.Flags().StringVar(&topo.layoutDir, "layout-dir", "", "Layout directory (overrides topology.layout_dir)")
	cmd.Flags().String("series", "", "Series directory (overrides series.dir)")
	cmd.Flags().String("out", "", "Output directory for res.csv (overrides simulation.out_dir)")
	cmd.Flags().Int("steps", 0, "Exclusive stop step, 0 for the whole series (overrides simulation.steps)")
	cmd.Flags().StringSlice("metrics", nil, "Metric names in column order (overrides simulation.metrics)")
	cmd.Flags().Bool("no-catalog", false, "Do not record the run in the run catalog")

	return cmd
}

func applyRunFlags(cmd *cobra.Command, e *cmdEnv) error {
	flags := cmd.Flags()
	if flags.Changed("series") {
		v, _ := flags.GetString("series")
		e.app.Series.Dir = e.resolve(v)
	}
	if flags.Changed("out") {
		v, _ := flags.GetString("out")
		e.app.Simulation.OutDir = e.resolve(v)
	}
	if flags.Changed("steps") {
		v, err := flags.GetInt("steps")
		if err != nil {
			return err
		}
		e.app.Simulation.Steps = v
	}
	if flags.Changed("metrics") {
		v, err := flags.GetStringSlice("metrics")
		if err != nil {
			return err
		}
		e.app.Simulation.Metrics = v
	}
	return nil
}

func runSimulation(parent context.Context, e *cmdEnv, noCatalog bool) error {
	app := e.app
	if len(app.Solver.Command) == 0 {
		return errors.New("solver.command is not set (set it in ringsim.yaml or RINGSIM_SOLVER_COMMAND)")
	}
	if _, err := metrics.Resolve(app.Simulation.Metrics); err != nil {
		return err
	}

	logPath := filepath.Join(app.Simulation.OutDir, constants.ResultLogFile)
	st, err := runlog.Inspect(logPath)
	if err != nil {
		return err
	}

	b, err := buildNetwork(e)
	if err != nil {
		return err
	}
	series, err := eqseries.Load(app.Series.Dir)
	if err != nil {
		return err
	}
	stop := app.Simulation.Steps
	if stop == 0 {
		stop = series.Len()
	}

	var catalog store.RunStore
	if noCatalog {
		catalog = store.NewInMemoryRunStore()
	} else {
		catalog, err = store.NewSQLiteRunStore(app.Catalog.Path)
		if err != nil {
			return fmt.Errorf("opening run catalog: %w", err)
		}
	}
	defer catalog.Close()

	runID, err := catalog.StartRun(parent, store.Run{
		LogPath:   logPath,
		Topology:  app.Topology.Config,
		SeriesDir: app.Series.Dir,
		Metrics:   app.Simulation.Metrics,
		FirstStep: st.LastStep + 1,
		Stop:      stop,
	})
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	logger := e.logger.With("run_id", runID)

	trace := logging.NewTraceLogger(app.Simulation.OutDir, app.Logging.Level, runID)
	defer trace.Close()

	progress := &catalogProgress{store: catalog, id: runID, logger: logger}
	step := simulation.SolveAndMeasure(&solver.Exec{
		Command: app.Solver.Command,
		Timeout: app.Solver.Timeout,
		Logger:  logger,
	})
	runner := &simulation.Runner{
		Network:   b.net,
		Series:    series,
		Step:      step,
		Metrics:   app.Simulation.Metrics,
		LogPath:   logPath,
		Stop:      app.Simulation.Steps,
		Observers: []simulation.Observer{trace, progress},
		Logger:    logger,
	}

	ctx, cancel := withSignals(parent)
	defer cancel()

	trace.Log(map[string]any{"event": "run_start", "log": logPath, "first_step": st.LastStep + 1, "stop": stop})
	res, runErr := runner.Run(ctx)

	status := constants.RunComplete
	msg := ""
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		status = constants.RunInterrupted
		msg = runErr.Error()
	default:
		status = constants.RunFailed
		msg = runErr.Error()
	}
	trace.Log(map[string]any{"event": "run_end", "status": status.String()})

	// The run context may already be cancelled here.
	if err := catalog.FinishRun(context.Background(), runID, status, msg); err != nil {
		logger.Warn("failed to finish run in catalog", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	if e.jsonOut {
		return json.NewEncoder(e.out).Encode(map[string]interface{}{
			"run_id": runID,
			"log":    logPath,
			"status": status,
			"result": res,
		})
	}

	switch res.Steps {
	case 0:
		fmt.Fprintf(e.out, "Nothing to do: %s already holds steps up to %d (stop %d)\n", logPath, res.Last, res.Stop)
	default:
		fmt.Fprintf(e.out, "Ran steps %d..%d (%d steps) -> %s\n", res.First, res.Last, res.Steps, logPath)
	}
	fmt.Fprintf(e.out, "  run:     %s\n", runID)
	fmt.Fprintf(e.out, "  start:   %s\n", res.Start)
	fmt.Fprintf(e.out, "  columns: %s\n", strings.Join(res.Columns, ", "))
	return nil
}

// catalogProgress mirrors logged steps into the run catalog.
type catalogProgress struct {
	store  store.RunStore
	id     string
	steps  int
	logger *slog.Logger
}

func (p *catalogProgress) StepLogged(step int, _ map[string]float64) {
	p.steps++
	// The log is authoritative; a catalog failure must not stop the run.
	if err := p.store.RecordProgress(context.Background(), p.id, step, p.steps); err != nil {
		p.logger.Warn("failed to record progress", "step", step, "error", err)
	}
}
