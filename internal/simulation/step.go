package simulation

import (
	"context"
	"fmt"

	"github.com/nvandessel/ringsim/internal/grid"
	"github.com/nvandessel/ringsim/internal/metrics"
)

// Solver fills the line results of a network.
type Solver interface {
	Solve(ctx context.Context, net *grid.Network) error
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, net *grid.Network) error

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, net *grid.Network) error {
	return f(ctx, net)
}

// SolveAndMeasure returns a StepFunc that solves the network and evaluates
// the requested metrics on the result.
func SolveAndMeasure(s Solver) StepFunc {
	return func(ctx context.Context, net *grid.Network, names []string) (map[string]float64, error) {
		set, err := metrics.Resolve(names)
		if err != nil {
			return nil, err
		}
		if err := s.Solve(ctx, net); err != nil {
			return nil, fmt.Errorf("solving: %w", err)
		}
		return set.Evaluate(net), nil
	}
}
