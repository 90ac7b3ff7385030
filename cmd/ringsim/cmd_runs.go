package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ringsim/internal/constants"
	"github.com/nvandessel/ringsim/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the run catalog",
		Long: `List runs from the run catalog, newest first.

Examples:
  ringsim runs
  ringsim runs --status failed
  ringsim runs --log results/res.csv --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			statusFlag, _ := cmd.Flags().GetString("status")
			logFlag, _ := cmd.Flags().GetString("log")
			limit, _ := cmd.Flags().GetInt("limit")

			status := constants.RunStatus(statusFlag)
			if statusFlag != "" && !status.Valid() {
				return fmt.Errorf("invalid status %q (valid: running, complete, failed, interrupted)", statusFlag)
			}
			if limit < 0 {
				return fmt.Errorf("limit must not be negative, got %d", limit)
			}

			catalog, err := store.NewSQLiteRunStore(e.app.Catalog.Path)
			if err != nil {
				return fmt.Errorf("opening run catalog: %w", err)
			}
			defer catalog.Close()

			runs, err := catalog.ListRuns(cmd.Context(), store.ListFilter{
				Status:  status,
				LogPath: e.resolve(logFlag),
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			if e.jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(e.out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(e.out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(e.out, "%s  %-11s  steps %d..%d of %d  %s\n",
					r.ID, r.Status, r.FirstStep, r.LastStep, r.Stop,
					r.StartedAt.Local().Format(time.DateTime))
				fmt.Fprintf(e.out, "    log: %s\n", r.LogPath)
				if r.Error != "" {
					fmt.Fprintf(e.out, "    error: %s\n", r.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("status", "", "Only runs with this status")
	cmd.Flags().String("log", "", "Only runs writing this result log")
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")

	return cmd
}
