package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ringsim/internal/constants"
	"github.com/nvandessel/ringsim/internal/runlog"
	"github.com/nvandessel/ringsim/internal/store"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how far a result log has progressed",
		Long: `Classify the result log (fresh, header pending or resuming), report the
last logged step and the step a new run would start from, and show the
latest catalog entry for the log.

Examples:
  ringsim status
  ringsim status --log results/res.csv --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			logPath, _ := cmd.Flags().GetString("log")
			if logPath == "" {
				logPath = filepath.Join(e.app.Simulation.OutDir, constants.ResultLogFile)
			} else {
				logPath = e.resolve(logPath)
			}

			st, err := runlog.Inspect(logPath)
			if err != nil {
				return err
			}
			latest, err := latestRun(cmd, e, logPath)
			if err != nil {
				return err
			}

			if e.jsonOut {
				result := map[string]interface{}{
					"log":       st.Path,
					"state":     st.State,
					"columns":   st.Columns,
					"rows":      st.Rows,
					"last_step": st.LastStep,
					"next_step": st.LastStep + 1,
				}
				if latest != nil {
					result["latest_run"] = latest
				}
				return json.NewEncoder(e.out).Encode(result)
			}

			fmt.Fprintf(e.out, "Log: %s\n", st.Path)
			fmt.Fprintf(e.out, "  state:     %s\n", st.State)
			if len(st.Columns) > 0 {
				fmt.Fprintf(e.out, "  columns:   %s\n", strings.Join(st.Columns, ", "))
			}
			fmt.Fprintf(e.out, "  rows:      %d\n", st.Rows)
			if st.Rows > 0 {
				fmt.Fprintf(e.out, "  last step: %d\n", st.LastStep)
			}
			fmt.Fprintf(e.out, "  next step: %d\n", st.LastStep+1)
			if latest != nil {
				fmt.Fprintf(e.out, "\nLatest run %s: %s", latest.ID, latest.Status)
				if latest.Error != "" {
					fmt.Fprintf(e.out, " (%s)", latest.Error)
				}
				fmt.Fprintln(e.out)
			}
			return nil
		},
	}

	cmd.Flags().String("log", "", "Result log to inspect (default: <simulation.out_dir>/res.csv)")

	return cmd
}

// latestRun returns the newest catalog entry for logPath, or nil when the
// catalog does not exist yet or has no entry.
func latestRun(cmd *cobra.Command, e *cmdEnv, logPath string) (*store.Run, error) {
	if _, err := os.Stat(e.app.Catalog.Path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	catalog, err := store.NewSQLiteRunStore(e.app.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("opening run catalog: %w", err)
	}
	defer catalog.Close()

	runs, err := catalog.ListRuns(cmd.Context(), store.ListFilter{LogPath: logPath, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}
