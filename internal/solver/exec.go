// Package solver runs an external power-flow program on the network state
// and writes its line results back through the network's name indexes.
//
// The program receives the network as JSON on stdin and prints
//
//	{"lines": {"<line name>": {"loading_percent": 12.5, "i_ka": 0.03}}}
//
// on stdout. Lines it does not report get zero results.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/nvandessel/ringsim/internal/grid"
)

// ErrSolverOutput is returned when the program's stdout is not a valid
// result document.
var ErrSolverOutput = errors.New("malformed solver output")

// Request is the document written to the program's stdin.
type Request struct {
	Buses []grid.Bus  `json:"buses"`
	Lines []grid.Line `json:"lines"`
	Loads []grid.Load `json:"loads"`
	Gens  []grid.Gen  `json:"gens"`
}

// Response is the document read from the program's stdout.
type Response struct {
	Lines map[string]grid.LineResult `json:"lines"`
}

// Exec invokes Command once per Solve. There are no retries.
type Exec struct {
	Command []string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Solve runs the program on net and stores the reported line results.
func (e *Exec) Solve(ctx context.Context, net *grid.Network) error {
	if len(e.Command) == 0 {
		return errors.New("solver command is empty")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	input, err := json.Marshal(Request{Buses: net.Buses, Lines: net.Lines, Loads: net.Loads, Gens: net.Gens})
	if err != nil {
		return fmt.Errorf("encoding solver input: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("solver %s: %w", e.Command[0], ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("solver %s: %w: %s", e.Command[0], err, msg)
		}
		return fmt.Errorf("solver %s: %w", e.Command[0], err)
	}
	if e.Logger != nil {
		e.Logger.Debug("solver finished", "command", e.Command[0], "duration", time.Since(start))
	}

	var resp Response
	dec := json.NewDecoder(&stdout)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&resp); err != nil {
		return fmt.Errorf("%w: %v", ErrSolverOutput, err)
	}
	return ApplyResults(net, resp)
}

// ApplyResults writes resp into the line result table. Every reported name
// must be a line; nothing is written otherwise.
func ApplyResults(net *grid.Network, resp Response) error {
	for name := range resp.Lines {
		if _, err := net.Resolve(grid.ElementLine, name); err != nil {
			return fmt.Errorf("solver reported %w", err)
		}
	}

	loading := make(map[string]float64, len(net.Lines))
	current := make(map[string]float64, len(net.Lines))
	for _, l := range net.Lines {
		r := resp.Lines[l.Name]
		loading[l.Name] = r.LoadingPercent
		current[l.Name] = r.IKA
	}
	if err := net.Apply(grid.ElementLine, grid.QuantityLoading, loading); err != nil {
		return err
	}
	return net.Apply(grid.ElementLine, grid.QuantityCurrent, current)
}
