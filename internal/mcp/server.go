// Package mcp provides an MCP (Model Context Protocol) server for ringsim.
// It exposes read-only tools for inspecting topologies, result logs and the
// run catalog.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/ringsim/internal/config"
	"github.com/nvandessel/ringsim/internal/pathutil"
	"github.com/nvandessel/ringsim/internal/ratelimit"
	"github.com/nvandessel/ringsim/internal/store"
)

// Server wraps the MCP SDK server and provides ringsim-specific tools.
type Server struct {
	server *sdk.Server
	store  store.RunStore
	app    *config.RingsimConfig
	root   string
	audit  *AuditLogger
	logger *slog.Logger
	limits ratelimit.Limits

	// allowed are the directories tool path arguments may point into.
	allowed []string

	// ownsStore is set when the server opened the catalog itself.
	ownsStore bool
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "ringsim")
	Version string // Server version
	Root    string // Project root directory

	// App is the loaded application config. Nil loads it from Root.
	App *config.RingsimConfig

	// Store is the run catalog. Nil opens the SQLite catalog at
	// App.Catalog.Path.
	Store store.RunStore

	// Limits throttles tool calls. Nil uses ratelimit.DefaultLimits.
	Limits ratelimit.Limits

	Logger *slog.Logger
}

// NewServer creates a new MCP server with ringsim tools.
func NewServer(cfg *Config) (*Server, error) {
	app := cfg.App
	if app == nil {
		loaded, err := config.Load(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		app = loaded
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	runStore := cfg.Store
	ownsStore := false
	if runStore == nil {
		sqliteStore, err := store.NewSQLiteRunStore(app.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run catalog: %w", err)
		}
		runStore = sqliteStore
		ownsStore = true
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	limits := cfg.Limits
	if limits == nil {
		limits = ratelimit.DefaultLimits()
	}

	s := &Server{
		server:    mcpServer,
		store:     runStore,
		app:       app,
		root:      cfg.Root,
		audit:     NewAuditLogger(cfg.Root),
		logger:    logger,
		limits:    limits,
		ownsStore: ownsStore,
		allowed: []string{
			cfg.Root,
			filepath.Dir(app.Topology.Config),
			app.Topology.LayoutDir,
			app.Simulation.OutDir,
		},
	}
	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server listening on stdio", "root", s.root)
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	var firstErr error
	if err := s.audit.Close(); err != nil {
		firstErr = err
	}
	s.audit = nil
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.store = nil
	}
	return firstErr
}

// resolve makes a tool-supplied path absolute against the project root.
func (s *Server) resolve(path, fallback string) string {
	if path == "" {
		return fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

// resolveFile is resolve for paths the tool reads. An explicit path must lie
// under the project root or one of the configured directories.
func (s *Server) resolveFile(path, fallback string) (string, error) {
	resolved := s.resolve(path, fallback)
	if path == "" {
		return resolved, nil
	}
	if err := pathutil.Within(resolved, s.allowed); err != nil {
		return "", err
	}
	return resolved, nil
}
