// Package constants provides named constants shared across ringsim: file
// names, defaults and limits.
package constants

// File names inside a run or series directory.
const (
	// ResultLogFile is the per-run result log, one row per completed step.
	ResultLogFile = "res.csv"

	// TraceFile receives per-step JSONL events when debug logging is on.
	TraceFile = "trace.jsonl"

	// SeriesManifestFile lists the persisted (element, quantity) pairs in order.
	SeriesManifestFile = "eq_pairs.yaml"

	// CatalogFile is the default name of the SQLite run catalog.
	CatalogFile = "runs.db"
)

// Config file locations.
const (
	// ProjectConfigFile is looked up in the project root.
	ProjectConfigFile = "ringsim.yaml"

	// UserConfigDir is created under the user's home directory.
	UserConfigDir = ".ringsim"

	// UserConfigFile lives inside UserConfigDir.
	UserConfigFile = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RINGSIM_"
)

// Series generation defaults.
const (
	// DefaultSeriesLength is the number of synthetic steps generated when the
	// config does not say otherwise.
	DefaultSeriesLength = 96

	// DefaultNoiseSpread is the relative half-width of the uniform noise band.
	DefaultNoiseSpread = 0.1

	// DefaultSeed seeds the noise generator.
	DefaultSeed = 1
)

// Solver defaults.
const (
	// DefaultSolverTimeoutSeconds bounds a single solver invocation.
	DefaultSolverTimeoutSeconds = 60
)

// DefaultMetrics are logged when a run names no metrics.
var DefaultMetrics = []string{
	"max_loading_inner",
	"max_loading_all",
	"avg_loading_all",
	"total_current_all",
}
