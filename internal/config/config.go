// Package config provides unified configuration loading for ringsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ringsim/internal/constants"
	"github.com/nvandessel/ringsim/internal/logging"
)

// RingsimConfig contains all ringsim configuration settings.
type RingsimConfig struct {
	// Topology locates the topology config and the layout documents.
	Topology TopologyConfig `json:"topology" yaml:"topology"`

	// Series controls series generation and where series are stored.
	Series SeriesConfig `json:"series" yaml:"series"`

	// Simulation controls where runs log and what they log.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Solver configures the external power-flow program.
	Solver SolverConfig `json:"solver" yaml:"solver"`

	// Catalog configures the run catalog database.
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Logging contains settings for operational and step logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// TopologyConfig points at the topology input documents.
type TopologyConfig struct {
	// Config is the topology config (substations, voltage, line parameters).
	Config string `json:"config" yaml:"config"`

	// LayoutDir holds one_sub_coords.yaml, two_sub_coords.yaml and
	// four_sub_coords.yaml.
	LayoutDir string `json:"layout_dir" yaml:"layout_dir"`
}

// SeriesConfig configures synthetic series.
type SeriesConfig struct {
	// Dir is where generated series are saved and loaded from.
	Dir string `json:"dir" yaml:"dir"`

	// Input is the base load/generation document noise is applied around.
	Input string `json:"input" yaml:"input"`

	// Length is the number of steps to generate.
	Length int `json:"length" yaml:"length"`

	// Spread is the relative half-width of the uniform noise. Range: [0, 1).
	Spread float64 `json:"spread" yaml:"spread"`

	// Seed makes generation reproducible.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// SimulationConfig configures runs.
type SimulationConfig struct {
	// OutDir receives res.csv and trace.jsonl.
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// Steps is the exclusive stop step; 0 runs the whole series.
	Steps int `json:"steps" yaml:"steps"`

	// Metrics are logged in this order.
	Metrics []string `json:"metrics" yaml:"metrics"`
}

// SolverConfig configures the external solver process.
type SolverConfig struct {
	// Command is the program and its arguments.
	Command []string `json:"command" yaml:"command"`

	// Timeout bounds one invocation. Zero disables the bound.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// CatalogConfig configures the run catalog.
type CatalogConfig struct {
	// Path is the SQLite file. Empty uses .ringsim/runs.db under the root.
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig configures ringsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "error", "warn", "info" (default),
	// "debug", or "trace".
	// "debug" enables step tracing to <out_dir>/trace.jsonl.
	// "trace" additionally includes every metric value.
	Level string `json:"level" yaml:"level"`
}

// Default returns a RingsimConfig with sensible defaults.
func Default() *RingsimConfig {
	return &RingsimConfig{
		Topology: TopologyConfig{
			Config:    filepath.Join("config", "example_config.yaml"),
			LayoutDir: "config",
		},
		Series: SeriesConfig{
			Dir:    "series",
			Input:  filepath.Join("config", "two_sub_load_gen_example.yaml"),
			Length: constants.DefaultSeriesLength,
			Spread: constants.DefaultNoiseSpread,
			Seed:   constants.DefaultSeed,
		},
		Simulation: SimulationConfig{
			OutDir:  "results",
			Metrics: append([]string(nil), constants.DefaultMetrics...),
		},
		Solver: SolverConfig{
			Timeout: constants.DefaultSolverTimeoutSeconds * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// UserConfigPath returns ~/.ringsim/config.yaml, or "" without a home dir.
func UserConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, constants.UserConfigDir, constants.UserConfigFile)
}

// ProjectConfigPath returns the project config file under root.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, constants.ProjectConfigFile)
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> ~/.ringsim/config.yaml -> <root>/ringsim.yaml
// -> environment variables. Relative paths are resolved against root.
func Load(root string) (*RingsimConfig, error) {
	var files []string
	for _, path := range []string{UserConfigPath(), ProjectConfigPath(root)} {
		if path == "" {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		files = append(files, path)
	}
	return load(root, files)
}

// LoadWith is Load with an explicit config file in place of the default
// locations. The file must exist.
func LoadWith(root, path string) (*RingsimConfig, error) {
	return load(root, []string{path})
}

func load(root string, files []string) (*RingsimConfig, error) {
	config := Default()
	for _, path := range files {
		if err := mergeFile(config, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	config.ResolvePaths(root)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*RingsimConfig, error) {
	config := Default()
	if err := mergeFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeFile decodes path over config; keys the file omits keep their value.
func mergeFile(config *RingsimConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	config.Solver.Command = expandEnvVars(config.Solver.Command)
	return nil
}

// ResolvePaths makes every relative path absolute against root.
func (c *RingsimConfig) ResolvePaths(root string) {
	for _, p := range []*string{
		&c.Topology.Config,
		&c.Topology.LayoutDir,
		&c.Series.Dir,
		&c.Series.Input,
		&c.Simulation.OutDir,
		&c.Catalog.Path,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(root, constants.UserConfigDir, constants.CatalogFile)
	}
}

// Validate checks that the configuration is valid.
func (c *RingsimConfig) Validate() error {
	if c.Series.Length < 0 {
		return fmt.Errorf("series.length must be non-negative, got %d", c.Series.Length)
	}
	if c.Series.Spread < 0 || c.Series.Spread >= 1 {
		return fmt.Errorf("series.spread must be in [0, 1), got %g", c.Series.Spread)
	}
	if c.Simulation.Steps < 0 {
		return fmt.Errorf("simulation.steps must be non-negative, got %d", c.Simulation.Steps)
	}
	for i, m := range c.Simulation.Metrics {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("simulation.metrics[%d] is empty", i)
		}
	}
	if c.Solver.Timeout < 0 {
		return fmt.Errorf("solver.timeout must be non-negative, got %v", c.Solver.Timeout)
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace)", c.Logging.Level)
	}
	return nil
}

// field binds a dot-notation key to a config value.
type field struct {
	get func(c *RingsimConfig) any
	set func(c *RingsimConfig, v string) error
}

func stringField(sel func(c *RingsimConfig) *string) field {
	return field{
		get: func(c *RingsimConfig) any { return *sel(c) },
		set: func(c *RingsimConfig, v string) error { *sel(c) = v; return nil },
	}
}

func intField(sel func(c *RingsimConfig) *int) field {
	return field{
		get: func(c *RingsimConfig) any { return *sel(c) },
		set: func(c *RingsimConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer: %s", v)
			}
			*sel(c) = n
			return nil
		},
	}
}

var fields = map[string]field{
	"topology.config":     stringField(func(c *RingsimConfig) *string { return &c.Topology.Config }),
	"topology.layout_dir": stringField(func(c *RingsimConfig) *string { return &c.Topology.LayoutDir }),
	"series.dir":          stringField(func(c *RingsimConfig) *string { return &c.Series.Dir }),
	"series.input":        stringField(func(c *RingsimConfig) *string { return &c.Series.Input }),
	"series.length":       intField(func(c *RingsimConfig) *int { return &c.Series.Length }),
	"series.spread": {
		get: func(c *RingsimConfig) any { return c.Series.Spread },
		set: func(c *RingsimConfig, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid spread: %s", v)
			}
			c.Series.Spread = f
			return nil
		},
	},
	"series.seed": {
		get: func(c *RingsimConfig) any { return c.Series.Seed },
		set: func(c *RingsimConfig, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid seed: %s", v)
			}
			c.Series.Seed = n
			return nil
		},
	},
	"simulation.out_dir": stringField(func(c *RingsimConfig) *string { return &c.Simulation.OutDir }),
	"simulation.steps":   intField(func(c *RingsimConfig) *int { return &c.Simulation.Steps }),
	"simulation.metrics": {
		get: func(c *RingsimConfig) any { return strings.Join(c.Simulation.Metrics, ",") },
		set: func(c *RingsimConfig, v string) error { c.Simulation.Metrics = splitList(v); return nil },
	},
	"solver.command": {
		get: func(c *RingsimConfig) any { return strings.Join(c.Solver.Command, " ") },
		set: func(c *RingsimConfig, v string) error { c.Solver.Command = strings.Fields(v); return nil },
	},
	"solver.timeout": {
		get: func(c *RingsimConfig) any { return c.Solver.Timeout.String() },
		set: func(c *RingsimConfig, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", v)
			}
			c.Solver.Timeout = d
			return nil
		},
	},
	"catalog.path":  stringField(func(c *RingsimConfig) *string { return &c.Catalog.Path }),
	"logging.level": stringField(func(c *RingsimConfig) *string { return &c.Logging.Level }),
}

// Keys returns every settable key, sorted.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the value of a dot-notation key.
func (c *RingsimConfig) Get(key string) (any, bool) {
	f, ok := fields[key]
	if !ok {
		return nil, false
	}
	return f.get(c), true
}

// Set parses value into a dot-notation key and validates the result.
func (c *RingsimConfig) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	updated := *c
	if err := f.set(&updated, value); err != nil {
		return err
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*c = updated
	return nil
}

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"TOPOLOGY_CONFIG": "topology.config",
	"LAYOUT_DIR":      "topology.layout_dir",
	"SERIES_DIR":      "series.dir",
	"SERIES_INPUT":    "series.input",
	"SERIES_LENGTH":   "series.length",
	"SERIES_SPREAD":   "series.spread",
	"SERIES_SEED":     "series.seed",
	"OUT_DIR":         "simulation.out_dir",
	"STEPS":           "simulation.steps",
	"METRICS":         "simulation.metrics",
	"SOLVER_COMMAND":  "solver.command",
	"SOLVER_TIMEOUT":  "solver.timeout",
	"CATALOG_PATH":    "catalog.path",
	"LOG_LEVEL":       "logging.level",
}

// applyEnvOverrides applies RINGSIM_* environment variables to the config.
// A malformed value is an error rather than silently ignored.
func applyEnvOverrides(config *RingsimConfig) error {
	names := make([]string, 0, len(envKeys))
	for name := range envKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := os.Getenv(constants.EnvPrefix + name)
		if v == "" {
			continue
		}
		if err := fields[envKeys[name]].set(config, v); err != nil {
			return fmt.Errorf("%s%s: %w", constants.EnvPrefix, name, err)
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandEnvVars expands ${VAR} patterns in every argument.
func expandEnvVars(args []string) []string {
	for i, s := range args {
		if strings.Contains(s, "${") {
			args[i] = os.Expand(s, os.Getenv)
		}
	}
	return args
}
