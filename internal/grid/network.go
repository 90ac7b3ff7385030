package grid

import (
	"fmt"
)

// Bus is a network node. Its name is "{zone}_{position}".
type Bus struct {
	Name     string     `json:"name"`
	Zone     string     `json:"zone"`
	Position string     `json:"position"`
	VnKV     float64    `json:"vn_kv"`
	Coord    [2]float64 `json:"coord"`
}

// Load is a power consumer attached to a bus.
type Load struct {
	Name  string  `json:"name"`
	Bus   int     `json:"bus"`
	PMW   float64 `json:"p_mw"`
	QMvar float64 `json:"q_mvar"`
}

// Gen is a generator attached to a bus. Slack generators fix the network's
// angle and magnitude reference.
type Gen struct {
	Name  string  `json:"name"`
	Bus   int     `json:"bus"`
	PMW   float64 `json:"p_mw"`
	VmPU  float64 `json:"vm_pu"`
	Slack bool    `json:"slack"`
}

// Line connects two buses. Parameters are per kilometre and LengthKM is
// always 1, so per-unit-length and total values coincide.
type Line struct {
	Name      string  `json:"name"`
	FromBus   int     `json:"from_bus"`
	ToBus     int     `json:"to_bus"`
	Class     string  `json:"class"`
	LengthKM  float64 `json:"length_km"`
	ROhmPerKM float64 `json:"r_ohm_per_km"`
	XOhmPerKM float64 `json:"x_ohm_per_km"`
	CNfPerKM  float64 `json:"c_nf_per_km"`
	MaxIKA    float64 `json:"max_i_ka"`
	InService bool    `json:"in_service"`
}

// LineResult holds the solver output for one line.
type LineResult struct {
	LoadingPercent float64 `json:"loading_percent"`
	IKA            float64 `json:"i_ka"`
}

// Network is the explicit handle passed through building, applying and
// stepping. All mutation by name goes through Apply.
type Network struct {
	Buses       []Bus
	Lines       []Line
	Loads       []Load
	Gens        []Gen
	LineResults []LineResult

	indexes map[Element]*NameIndex
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{indexes: make(map[Element]*NameIndex)}
}

// AddBus appends a bus and returns its position.
func (n *Network) AddBus(b Bus) int {
	n.Buses = append(n.Buses, b)
	return len(n.Buses) - 1
}

// AddLoad appends a load and returns its position.
func (n *Network) AddLoad(l Load) int {
	n.Loads = append(n.Loads, l)
	return len(n.Loads) - 1
}

// AddGen appends a generator and returns its position.
func (n *Network) AddGen(g Gen) int {
	n.Gens = append(n.Gens, g)
	return len(n.Gens) - 1
}

// AddLine appends a line with an empty result row and returns its position.
func (n *Network) AddLine(l Line) int {
	n.Lines = append(n.Lines, l)
	n.LineResults = append(n.LineResults, LineResult{})
	return len(n.Lines) - 1
}

// BuildIndexes derives the four name indexes from the current tables.
// It must be called once every entity exists.
func (n *Network) BuildIndexes() error {
	names := map[Element][]string{
		ElementBus:  make([]string, len(n.Buses)),
		ElementLine: make([]string, len(n.Lines)),
		ElementLoad: make([]string, len(n.Loads)),
		ElementGen:  make([]string, len(n.Gens)),
	}
	for i, b := range n.Buses {
		names[ElementBus][i] = b.Name
	}
	for i, l := range n.Lines {
		names[ElementLine][i] = l.Name
	}
	for i, l := range n.Loads {
		names[ElementLoad][i] = l.Name
	}
	for i, g := range n.Gens {
		names[ElementGen][i] = g.Name
	}

	indexes := make(map[Element]*NameIndex, len(Elements))
	for _, el := range Elements {
		idx, err := NewNameIndex(el, names[el])
		if err != nil {
			return fmt.Errorf("indexing %s table: %w", el, err)
		}
		indexes[el] = idx
	}
	n.indexes = indexes
	return nil
}

// Index returns the name index of an element table, or nil before
// BuildIndexes has run.
func (n *Network) Index(el Element) *NameIndex {
	return n.indexes[el]
}

// Resolve returns the position of name in the el table.
func (n *Network) Resolve(el Element, name string) (int, error) {
	idx := n.indexes[el]
	if idx == nil {
		return 0, &UnknownEntityError{Element: el, Name: name}
	}
	return idx.Resolve(name)
}

// Apply writes values into the q column of the el table at the positions of
// the named entities. Every name is resolved before anything is written: if
// one name is unknown the call fails and the table is left untouched.
func (n *Network) Apply(el Element, q Quantity, values map[string]float64) error {
	if !Supports(el, q) {
		return fmt.Errorf("%s.%s: %w", el, q, ErrUnknownQuantity)
	}

	positions := make(map[int]float64, len(values))
	for name, v := range values {
		p, err := n.Resolve(el, name)
		if err != nil {
			return fmt.Errorf("applying %s.%s: %w", el, q, err)
		}
		positions[p] = v
	}

	for p, v := range positions {
		n.set(el, q, p, v)
	}
	return nil
}

// Value reads one cell by entity name.
func (n *Network) Value(el Element, q Quantity, name string) (float64, error) {
	if !Supports(el, q) {
		return 0, fmt.Errorf("%s.%s: %w", el, q, ErrUnknownQuantity)
	}
	p, err := n.Resolve(el, name)
	if err != nil {
		return 0, err
	}
	return n.get(el, q, p), nil
}

// Column snapshots the q column of the el table in index order.
func (n *Network) Column(el Element, q Quantity) ([]float64, error) {
	if !Supports(el, q) {
		return nil, fmt.Errorf("%s.%s: %w", el, q, ErrUnknownQuantity)
	}
	idx := n.indexes[el]
	if idx == nil {
		return nil, fmt.Errorf("%s table is not indexed", el)
	}
	out := make([]float64, idx.Len())
	for p := range out {
		out[p] = n.get(el, q, p)
	}
	return out, nil
}

// Snapshot returns the q column of the el table keyed by entity name.
func (n *Network) Snapshot(el Element, q Quantity) (map[string]float64, error) {
	col, err := n.Column(el, q)
	if err != nil {
		return nil, err
	}
	names := n.indexes[el].names
	out := make(map[string]float64, len(col))
	for p, v := range col {
		out[names[p]] = v
	}
	return out, nil
}

// BusOf returns the bus an element of the load, gen or line table sits on.
// Lines report their from-bus.
func (n *Network) BusOf(el Element, p int) (Bus, bool) {
	var b int
	switch el {
	case ElementLoad:
		if p < 0 || p >= len(n.Loads) {
			return Bus{}, false
		}
		b = n.Loads[p].Bus
	case ElementGen:
		if p < 0 || p >= len(n.Gens) {
			return Bus{}, false
		}
		b = n.Gens[p].Bus
	case ElementLine:
		if p < 0 || p >= len(n.Lines) {
			return Bus{}, false
		}
		b = n.Lines[p].FromBus
	case ElementBus:
		b = p
	}
	if b < 0 || b >= len(n.Buses) {
		return Bus{}, false
	}
	return n.Buses[b], true
}

func (n *Network) get(el Element, q Quantity, p int) float64 {
	switch el {
	case ElementBus:
		return n.Buses[p].VnKV
	case ElementLoad:
		if q == QuantityReactivePower {
			return n.Loads[p].QMvar
		}
		return n.Loads[p].PMW
	case ElementGen:
		if q == QuantityVoltageSet {
			return n.Gens[p].VmPU
		}
		return n.Gens[p].PMW
	case ElementLine:
		switch q {
		case QuantityMaxCurrent:
			return n.Lines[p].MaxIKA
		case QuantityResistance:
			return n.Lines[p].ROhmPerKM
		case QuantityReactance:
			return n.Lines[p].XOhmPerKM
		case QuantityInService:
			if n.Lines[p].InService {
				return 1
			}
			return 0
		case QuantityLoading:
			return n.LineResults[p].LoadingPercent
		case QuantityCurrent:
			return n.LineResults[p].IKA
		}
	}
	return 0
}

func (n *Network) set(el Element, q Quantity, p int, v float64) {
	switch el {
	case ElementBus:
		n.Buses[p].VnKV = v
	case ElementLoad:
		if q == QuantityReactivePower {
			n.Loads[p].QMvar = v
		} else {
			n.Loads[p].PMW = v
		}
	case ElementGen:
		if q == QuantityVoltageSet {
			n.Gens[p].VmPU = v
		} else {
			n.Gens[p].PMW = v
		}
	case ElementLine:
		switch q {
		case QuantityMaxCurrent:
			n.Lines[p].MaxIKA = v
		case QuantityResistance:
			n.Lines[p].ROhmPerKM = v
		case QuantityReactance:
			n.Lines[p].XOhmPerKM = v
		case QuantityInService:
			n.Lines[p].InService = v != 0
		case QuantityLoading:
			n.LineResults[p].LoadingPercent = v
		case QuantityCurrent:
			n.LineResults[p].IKA = v
		}
	}
}
