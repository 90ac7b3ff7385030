package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ringsim/internal/topology"
)

func newBuildCmd() *cobra.Command {
	var (
		topo       topologyFlags
		minimalOut string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the ring network and print its structure",
		Long: `Build the network described by the topology config and its layout, and
print the number of buses and lines per class.

Examples:
  ringsim build
  ringsim build --topology-config config/example_config.yaml --names
  ringsim build --minimal-out grid_minimal.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			topo.apply(e)
			names, _ := cmd.Flags().GetBool("names")

			b, err := buildNetwork(e)
			if err != nil {
				return err
			}
			summary := topology.Summarize(b.cfg, b.layout, b.net)

			if minimalOut != "" {
				minimalOut = e.resolve(minimalOut)
				if err := writeMinimal(b, minimalOut); err != nil {
					return err
				}
			}

			if !names {
				summary.BusNames = nil
				summary.LineNames = nil
			}
			if e.jsonOut {
				result := map[string]interface{}{
					"config":     e.app.Topology.Config,
					"layout_dir": e.app.Topology.LayoutDir,
					"summary":    summary,
				}
				if minimalOut != "" {
					result["minimal_out"] = minimalOut
				}
				return json.NewEncoder(e.out).Encode(result)
			}

			fmt.Fprintf(e.out, "Topology: %s\n", e.app.Topology.Config)
			fmt.Fprintf(e.out, "  substations: %d\n", summary.Substations)
			fmt.Fprintf(e.out, "  voltage:     %g kV\n", summary.VoltageKV)
			fmt.Fprintf(e.out, "  buses:       %d (%d loads, %d generators)\n", summary.Buses, summary.Loads, summary.Gens)
			fmt.Fprintf(e.out, "  lines:       %d\n", summary.Lines)
			for _, class := range summary.Classes() {
				fmt.Fprintf(e.out, "    %-18s %d\n", class, summary.LinesByClass[class])
			}
			if len(summary.Unfed) > 0 {
				fmt.Fprintf(e.out, "  unfed ring positions: %s\n", strings.Join(summary.Unfed, ", "))
			}
			if names {
				fmt.Fprintln(e.out, "\nBuses:")
				for _, n := range summary.BusNames {
					fmt.Fprintf(e.out, "  %s\n", n)
				}
				fmt.Fprintln(e.out, "\nLines:")
				for _, n := range summary.LineNames {
					fmt.Fprintf(e.out, "  %s\n", n)
				}
			}
			if minimalOut != "" {
				fmt.Fprintf(e.out, "\nMinimal format written to %s\n", minimalOut)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&topo.config, "topology-config", "", "Topology config file (overrides topology.config)")
	cmd.Flags().StringVar(&topo.layoutDir, "layout-dir", "", "Layout directory (overrides topology.layout_dir)")
	cmd.Flags().StringVar(&minimalOut, "minimal-out", "", "Write the minimal connection/admittance export to this YAML file")
	cmd.Flags().Bool("names", false, "List every bus and line name")

	return cmd
}

func writeMinimal(b *builtNetwork, path string) error {
	minimal, err := topology.ToMinimal(b.net)
	if err != nil {
		return fmt.Errorf("exporting minimal format: %w", err)
	}
	data, err := yaml.Marshal(minimal)
	if err != nil {
		return fmt.Errorf("encoding minimal format: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("writing minimal format: %w", err)
	}
	return nil
}

// writeFile writes data to path, creating its directory.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
