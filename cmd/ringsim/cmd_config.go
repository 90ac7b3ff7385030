package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ringsim/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ringsim configuration",
		Long: `View and modify ringsim configuration settings.

Settings are read from ~/.ringsim/config.yaml, then <root>/ringsim.yaml,
then RINGSIM_* environment variables. "set" writes the project file unless
--user is given.

Examples:
  ringsim config list
  ringsim config get solver.command
  ringsim config set simulation.metrics max_loading_inner,avg_loading_all
  ringsim config set --user logging.level debug`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			if e.jsonOut {
				values := make(map[string]interface{})
				for _, key := range config.Keys() {
					v, _ := e.app.Get(key)
					values[key] = displayValue(v)
				}
				return json.NewEncoder(e.out).Encode(values)
			}

			fmt.Fprintln(e.out, "Configuration:")
			for _, key := range config.Keys() {
				v, _ := e.app.Get(key)
				fmt.Fprintf(e.out, "  %-20s %v\n", key+":", valueOrDefault(displayValue(v), "(not set)"))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			key := args[0]

			value, found := e.app.Get(key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s (valid: %s)", key, strings.Join(config.Keys(), ", "))
			}

			if e.jsonOut {
				return json.NewEncoder(e.out).Encode(map[string]interface{}{
					"key":   key,
					"value": displayValue(value),
				})
			}
			fmt.Fprintf(e.out, "%s = %s\n", key, displayValue(value))
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value. simulation.metrics takes a comma separated
list; solver.command is split on whitespace.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootFlag, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			user, _ := cmd.Flags().GetBool("user")
			key, value := args[0], args[1]

			root, err := filepath.Abs(rootFlag)
			if err != nil {
				return fmt.Errorf("resolving root: %w", err)
			}
			path := config.ProjectConfigPath(root)
			if user {
				path = config.UserConfigPath()
				if path == "" {
					return errors.New("cannot locate home directory for --user")
				}
			}

			cfg, err := loadConfigFile(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := saveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"file":   path,
				})
			}
			fmt.Fprintf(out, "Set %s = %s (%s)\n", key, value, path)
			return nil
		},
	}

	cmd.Flags().Bool("user", false, "Write ~/.ringsim/config.yaml instead of the project file")

	return cmd
}

// loadConfigFile reads the file a "set" updates, starting from the defaults
// when it does not exist yet.
func loadConfigFile(path string) (*config.RingsimConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// saveConfig writes cfg to path, creating its directory.
func saveConfig(cfg *config.RingsimConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// displayValue renders a config value the way "set" accepts it.
func displayValue(v any) string {
	return fmt.Sprint(v)
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
