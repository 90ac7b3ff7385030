package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ringsim/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve ringsim tools over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing:

  ringsim_topology  build a topology and summarize it
  ringsim_status    classify a result log
  ringsim_runs      list runs from the run catalog

Tool calls are appended to <root>/.ringsim/audit.jsonl. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "ringsim",
				Version: version,
				Root:    e.root,
				App:     e.app,
				Logger:  e.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
}
