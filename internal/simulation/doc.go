// Package simulation drives a network through a series of steps and logs one
// row of metrics per step to a resumable result log.
//
// A run is described by a Runner: the built network, the per-step input
// series, a step function and the log path. Run classifies the log, picks up
// after the last logged step and stops at the stop bound:
//
//	r := &simulation.Runner{
//	    Network: net,
//	    Series:  series,
//	    Step:    simulation.SolveAndMeasure(&solver.Exec{Command: cmd}),
//	    Metrics: []string{"max_loading_all", "avg_loading_all"},
//	    LogPath: filepath.Join(outDir, "res.csv"),
//	}
//	res, err := r.Run(ctx)
//
// Killing the process and calling Run again with the same inputs continues
// the run without repeating or skipping a step.
package simulation
