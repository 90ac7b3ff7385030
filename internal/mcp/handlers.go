package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/ringsim/internal/constants"
	"github.com/nvandessel/ringsim/internal/runlog"
	"github.com/nvandessel/ringsim/internal/store"
	"github.com/nvandessel/ringsim/internal/topology"
)

// defaultRunsLimit caps ringsim_runs when no limit is given.
const defaultRunsLimit = 20

// registerTools registers all ringsim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ringsim_topology",
		Description: "Build the ring network from a topology config and summarize its buses and lines",
	}, s.handleTopology)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ringsim_status",
		Description: "Classify a result log and report the step a run would resume at",
	}, s.handleStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ringsim_runs",
		Description: "List catalogued simulation runs, newest first",
	}, s.handleRuns)
}

// handleTopology implements the ringsim_topology tool.
func (s *Server) handleTopology(ctx context.Context, req *sdk.CallToolRequest, args TopologyInput) (_ *sdk.CallToolResult, _ TopologyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ringsim_topology", start, retErr, sanitizeToolParams(map[string]any{
			"config": args.Config, "layout_dir": args.LayoutDir,
			"include_names": args.IncludeNames, "include_minimal": args.IncludeMinimal,
		}))
	}()

	if err := s.limits.Check("ringsim_topology"); err != nil {
		return nil, TopologyOutput{}, err
	}
	configPath, err := s.resolveFile(args.Config, s.app.Topology.Config)
	if err != nil {
		return nil, TopologyOutput{}, err
	}
	layoutDir, err := s.resolveFile(args.LayoutDir, s.app.Topology.LayoutDir)
	if err != nil {
		return nil, TopologyOutput{}, err
	}

	cfg, layout, err := topology.Load(configPath, layoutDir)
	if err != nil {
		return nil, TopologyOutput{}, err
	}
	net, err := topology.Build(cfg, layout, topology.WithLogger(s.logger))
	if err != nil {
		return nil, TopologyOutput{}, fmt.Errorf("building topology: %w", err)
	}

	summary := topology.Summarize(cfg, layout, net)
	if !args.IncludeNames {
		summary.BusNames = nil
		summary.LineNames = nil
	}
	out := TopologyOutput{
		Config:    configPath,
		LayoutDir: layoutDir,
		Summary:   summary,
	}
	if args.IncludeMinimal {
		minimal, err := topology.ToMinimal(net)
		if err != nil {
			return nil, TopologyOutput{}, fmt.Errorf("exporting minimal format: %w", err)
		}
		out.Minimal = minimal
	}
	return nil, out, nil
}

// handleStatus implements the ringsim_status tool.
func (s *Server) handleStatus(ctx context.Context, req *sdk.CallToolRequest, args StatusInput) (_ *sdk.CallToolResult, _ StatusOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ringsim_status", start, retErr, sanitizeToolParams(map[string]any{
			"log_path": args.LogPath,
		}))
	}()

	if err := s.limits.Check("ringsim_status"); err != nil {
		return nil, StatusOutput{}, err
	}
	logPath, err := s.resolveFile(args.LogPath, filepath.Join(s.app.Simulation.OutDir, constants.ResultLogFile))
	if err != nil {
		return nil, StatusOutput{}, err
	}

	st, err := runlog.Inspect(logPath)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := statusOutput(st)

	runs, err := s.store.ListRuns(ctx, store.ListFilter{LogPath: logPath, Limit: 1})
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("querying run catalog: %w", err)
	}
	if len(runs) > 0 {
		latest := summarizeRun(runs[0])
		out.Latest = &latest
	}
	return nil, out, nil
}

// handleRuns implements the ringsim_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ringsim_runs", start, retErr, sanitizeToolParams(map[string]any{
			"status": args.Status, "log_path": args.LogPath, "limit": args.Limit,
		}))
	}()

	if err := s.limits.Check("ringsim_runs"); err != nil {
		return nil, RunsOutput{}, err
	}
	status := constants.RunStatus(args.Status)
	if args.Status != "" && !status.Valid() {
		return nil, RunsOutput{}, fmt.Errorf("invalid status %q (valid: running, complete, failed, interrupted)", args.Status)
	}
	if args.Limit < 0 {
		return nil, RunsOutput{}, fmt.Errorf("limit must not be negative, got %d", args.Limit)
	}
	limit := args.Limit
	if limit == 0 {
		limit = defaultRunsLimit
	}

	filter := store.ListFilter{Status: status, Limit: limit}
	if args.LogPath != "" {
		filter.LogPath = s.resolve(args.LogPath, "")
	}
	runs, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("querying run catalog: %w", err)
	}

	out := RunsOutput{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, summarizeRun(r))
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}
