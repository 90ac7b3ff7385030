package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ringsim/internal/config"
	"github.com/nvandessel/ringsim/internal/logging"
)

// Set at build time with -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ringsim",
		Short: "Layered ring distribution grid simulator",
		Long: `ringsim builds a layered ring distribution network (substations, an inner
ring and an outer ring), generates load and generation series for it, and
steps a power-flow solver through the series.

Results go to an append-only log. An interrupted run picks up after the
last logged step when started again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.ringsim/config.yaml and <root>/ringsim.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (error, warn, info, debug, trace)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newBuildCmd(),
		newGenerateCmd(),
		newRunCmd(),
		newStatusCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// cmdEnv is what every command needs after flag parsing.
type cmdEnv struct {
	root    string
	app     *config.RingsimConfig
	logger  *slog.Logger
	jsonOut bool
	out     io.Writer
}

// loadEnv resolves the project root, loads and validates the config, and
// creates the stderr logger.
func loadEnv(cmd *cobra.Command) (*cmdEnv, error) {
	rootFlag, _ := cmd.Flags().GetString("root")
	configFlag, _ := cmd.Flags().GetString("config")
	levelFlag, _ := cmd.Flags().GetString("log-level")
	jsonOut, _ := cmd.Flags().GetBool("json")

	root, err := filepath.Abs(rootFlag)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	var app *config.RingsimConfig
	if configFlag != "" {
		app, err = config.LoadWith(root, configFlag)
	} else {
		app, err = config.Load(root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if levelFlag != "" {
		app.Logging.Level = levelFlag
	}
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cmdEnv{
		root:    root,
		app:     app,
		logger:  logging.NewLogger(app.Logging.Level, cmd.ErrOrStderr()),
		jsonOut: jsonOut,
		out:     cmd.OutOrStdout(),
	}, nil
}

// resolve makes a flag-supplied path absolute against the project root.
func (e *cmdEnv) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.root, path)
}

// withSignals returns a context cancelled on SIGINT or SIGTERM.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
