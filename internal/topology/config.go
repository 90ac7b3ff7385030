package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// layoutFiles maps each supported substation count to its layout document.
var layoutFiles = map[int]string{
	1: "one_sub_coords.yaml",
	2: "two_sub_coords.yaml",
	4: "four_sub_coords.yaml",
}

// LineParams holds the total electrical parameters of a line class. Lines are
// one kilometre long, so these are also the per-kilometre values.
type LineParams struct {
	ROhm   float64 `json:"r_ohm" yaml:"r_ohm"`
	XOhm   float64 `json:"x_ohm" yaml:"x_ohm"`
	CNf    float64 `json:"c_nf" yaml:"c_nf"`
	MaxIKA float64 `json:"max_i_ka" yaml:"max_i_ka"`
}

// Config is the topology configuration document.
type Config struct {
	// Substations is the number of center buses: 1, 2 or 4.
	Substations int `json:"substations" yaml:"substations"`

	// VoltageKV is the nominal voltage of every bus.
	VoltageKV float64 `json:"voltage_kv" yaml:"voltage_kv"`

	// Parameters holds electrical parameters keyed by line class name.
	Parameters map[string]LineParams `json:"parameters" yaml:"parameters"`
}

// Order fixes the creation order of center and ring positions. Inner and
// outer rings share the ring order.
type Order struct {
	Center []string `json:"center" yaml:"center"`
	Ring   []string `json:"ring" yaml:"ring"`
}

// Layout is the coordinate and ordering document for one substation count.
type Layout struct {
	Order       Order                            `json:"order" yaml:"order"`
	Coordinates map[string]map[string][2]float64 `json:"coordinates" yaml:"coordinates"`
}

// LoadConfig reads a topology configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing topology config: %w", err)
	}
	return &cfg, nil
}

// LayoutFile returns the layout file name for a substation count.
func LayoutFile(substations int) (string, error) {
	name, ok := layoutFiles[substations]
	if !ok {
		return "", configErrorf("substations", "this model is defined for 1, 2 or 4 substations, got %d", substations)
	}
	return name, nil
}

// LoadLayout reads a layout document from a YAML file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout: %w", err)
	}
	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	return &layout, nil
}

// LoadLayoutFor reads the layout matching cfg.Substations from dir.
func LoadLayoutFor(dir string, cfg *Config) (*Layout, error) {
	name, err := LayoutFile(cfg.Substations)
	if err != nil {
		return nil, err
	}
	return LoadLayout(filepath.Join(dir, name))
}

// Load reads the topology config at configPath and the matching layout from
// layoutDir.
func Load(configPath, layoutDir string) (*Config, *Layout, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	layout, err := LoadLayoutFor(layoutDir, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, layout, nil
}

// Validate checks the substation count, the voltage and every line class
// parameter set.
func (c *Config) Validate() error {
	if _, err := LayoutFile(c.Substations); err != nil {
		return err
	}
	if c.VoltageKV <= 0 {
		return configErrorf("voltage_kv", "must be positive, got %g", c.VoltageKV)
	}

	classes := make([]string, 0, len(c.Parameters))
	for class := range c.Parameters {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		p := c.Parameters[class]
		if p.ROhm <= 0 || p.XOhm <= 0 {
			return configErrorf("parameters."+class, "r_ohm and x_ohm must be positive")
		}
		if p.CNf < 0 {
			return configErrorf("parameters."+class, "c_nf must not be negative")
		}
		if p.MaxIKA <= 0 {
			return configErrorf("parameters."+class, "max_i_ka must be positive")
		}
	}
	return nil
}

// Validate checks that both orders are non-empty and duplicate-free and that
// every position of every zone has a coordinate.
func (l *Layout) Validate() error {
	if err := checkOrder("order.center", l.Order.Center); err != nil {
		return err
	}
	if err := checkOrder("order.ring", l.Order.Ring); err != nil {
		return err
	}
	if len(l.Order.Ring) < 2 {
		return configErrorf("order.ring", "needs at least 2 positions to close a ring")
	}
	for _, z := range Zones {
		coords := l.Coordinates[z.String()]
		for _, pos := range l.positions(z) {
			if _, ok := coords[pos]; !ok {
				return configErrorf("coordinates."+z.String(), "missing coordinate for position %q", pos)
			}
		}
	}
	return nil
}

// positions returns the creation order of a zone.
func (l *Layout) positions(z Zone) []string {
	if z == ZoneCenter {
		return l.Order.Center
	}
	return l.Order.Ring
}

func checkOrder(field string, order []string) error {
	if len(order) == 0 {
		return configErrorf(field, "must not be empty")
	}
	seen := make(map[string]bool, len(order))
	for _, pos := range order {
		if seen[pos] {
			return configErrorf(field, "duplicate position %q", pos)
		}
		seen[pos] = true
	}
	return nil
}
