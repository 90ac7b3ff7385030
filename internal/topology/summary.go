package topology

import (
	"sort"

	"github.com/nvandessel/ringsim/internal/grid"
)

// Summary describes a built network for display.
type Summary struct {
	Substations  int            `json:"substations"`
	VoltageKV    float64        `json:"voltage_kv"`
	Buses        int            `json:"buses"`
	Lines        int            `json:"lines"`
	Loads        int            `json:"loads"`
	Gens         int            `json:"gens"`
	LinesByClass map[string]int `json:"lines_by_class"`
	BusNames     []string       `json:"bus_names"`
	LineNames    []string       `json:"line_names"`

	// Unfed lists ring positions left without a radial line.
	Unfed []string `json:"unfed,omitempty"`
}

// Summarize counts the entities of net built from cfg and layout.
func Summarize(cfg *Config, layout *Layout, net *grid.Network) *Summary {
	s := &Summary{
		Substations:  cfg.Substations,
		VoltageKV:    cfg.VoltageKV,
		Buses:        len(net.Buses),
		Lines:        len(net.Lines),
		Loads:        len(net.Loads),
		Gens:         len(net.Gens),
		LinesByClass: make(map[string]int),
		Unfed:        UnfedRingPositions(layout.Order.Center, layout.Order.Ring),
	}
	for _, b := range net.Buses {
		s.BusNames = append(s.BusNames, b.Name)
	}
	for _, l := range net.Lines {
		s.LineNames = append(s.LineNames, l.Name)
		s.LinesByClass[l.Class]++
	}
	return s
}

// Classes returns the line classes present, sorted.
func (s *Summary) Classes() []string {
	out := make([]string, 0, len(s.LinesByClass))
	for c := range s.LinesByClass {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
