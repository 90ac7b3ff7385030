package topology

import (
	"fmt"

	"github.com/nvandessel/ringsim/internal/grid"
)

// MinimalBasePower is the base power of the minimal grid description.
const MinimalBasePower = 100000

// Admittance is a complex line admittance.
type Admittance struct {
	Re float64 `json:"re" yaml:"re"`
	Im float64 `json:"im" yaml:"im"`
}

// Minimal is a solver-agnostic description of a built network: which buses
// each element touches plus the parameters an optimizer needs. Element keys
// are prefixed with their table ("line_", "load_", "gen_").
type Minimal struct {
	Connections map[string][2]string  `json:"connections" yaml:"connections"`
	Loads       map[string]string     `json:"loads" yaml:"loads"`
	Gens        map[string]string     `json:"gens" yaml:"gens"`
	Admittances map[string]Admittance `json:"admittances" yaml:"admittances"`
	GenShares   map[string]float64    `json:"gen_shares" yaml:"gen_shares"`
	Voltages    map[string]float64    `json:"voltages" yaml:"voltages"`
	BasePower   float64               `json:"base_power" yaml:"base_power"`
}

// ToMinimal exports net in the minimal format. Admittances are 1/r + j/x of
// the per-kilometre parameters; generators share the supply equally and every
// element carries the network's nominal voltage.
func ToMinimal(net *grid.Network) (*Minimal, error) {
	if len(net.Buses) == 0 {
		return nil, fmt.Errorf("exporting minimal format: network has no buses")
	}
	busName := func(p int) (string, error) {
		if p < 0 || p >= len(net.Buses) {
			return "", fmt.Errorf("exporting minimal format: bus %d out of range", p)
		}
		return net.Buses[p].Name, nil
	}

	m := &Minimal{
		Connections: make(map[string][2]string, len(net.Lines)),
		Loads:       make(map[string]string, len(net.Loads)),
		Gens:        make(map[string]string, len(net.Gens)),
		Admittances: make(map[string]Admittance, len(net.Lines)),
		GenShares:   make(map[string]float64, len(net.Gens)),
		Voltages:    make(map[string]float64, len(net.Lines)+len(net.Loads)+len(net.Gens)),
		BasePower:   MinimalBasePower,
	}
	vn := net.Buses[0].VnKV

	for _, l := range net.Lines {
		from, err := busName(l.FromBus)
		if err != nil {
			return nil, err
		}
		to, err := busName(l.ToBus)
		if err != nil {
			return nil, err
		}
		if l.ROhmPerKM == 0 || l.XOhmPerKM == 0 {
			return nil, fmt.Errorf("exporting minimal format: line %s has zero impedance", l.Name)
		}
		key := "line_" + l.Name
		m.Connections[key] = [2]string{from, to}
		m.Admittances[key] = Admittance{Re: 1 / l.ROhmPerKM, Im: 1 / l.XOhmPerKM}
		m.Voltages[key] = vn
	}
	for _, l := range net.Loads {
		bus, err := busName(l.Bus)
		if err != nil {
			return nil, err
		}
		key := "load_" + l.Name
		m.Loads[key] = bus
		m.Voltages[key] = vn
	}
	for _, g := range net.Gens {
		bus, err := busName(g.Bus)
		if err != nil {
			return nil, err
		}
		key := "gen_" + g.Name
		m.Gens[key] = bus
		m.GenShares[key] = 1 / float64(len(net.Gens))
		m.Voltages[key] = vn
	}
	return m, nil
}
