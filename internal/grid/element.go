// Package grid holds the network tables (buses, lines, loads, generators)
// and the name indexes used to read and mutate them by entity name.
package grid

import "fmt"

// Element identifies one of the network tables.
type Element string

const (
	ElementBus  Element = "bus"
	ElementLine Element = "line"
	ElementLoad Element = "load"
	ElementGen  Element = "gen"
)

// Elements lists every element kind in table order.
var Elements = []Element{ElementBus, ElementLine, ElementLoad, ElementGen}

// ParseElement maps a table name to an Element.
func ParseElement(s string) (Element, error) {
	switch Element(s) {
	case ElementBus, ElementLine, ElementLoad, ElementGen:
		return Element(s), nil
	default:
		return "", fmt.Errorf("unknown element kind %q (valid: bus, line, load, gen)", s)
	}
}

// Quantity names a numeric column of an element table.
type Quantity string

const (
	QuantityActivePower   Quantity = "p_mw"
	QuantityReactivePower Quantity = "q_mvar"
	QuantityVoltageSet    Quantity = "vm_pu"
	QuantityNominalKV     Quantity = "vn_kv"
	QuantityMaxCurrent    Quantity = "max_i_ka"
	QuantityResistance    Quantity = "r_ohm_per_km"
	QuantityReactance     Quantity = "x_ohm_per_km"
	QuantityInService     Quantity = "in_service"
	QuantityLoading       Quantity = "loading_percent"
	QuantityCurrent       Quantity = "i_ka"
)

// quantities lists the columns each table exposes through Apply and Column.
var quantities = map[Element][]Quantity{
	ElementBus:  {QuantityNominalKV},
	ElementLoad: {QuantityActivePower, QuantityReactivePower},
	ElementGen:  {QuantityActivePower, QuantityVoltageSet},
	ElementLine: {
		QuantityMaxCurrent, QuantityResistance, QuantityReactance,
		QuantityInService, QuantityLoading, QuantityCurrent,
	},
}

// Quantities returns the quantities supported by an element table.
func Quantities(el Element) []Quantity {
	out := make([]Quantity, len(quantities[el]))
	copy(out, quantities[el])
	return out
}

// Supports reports whether q is a column of the el table.
func Supports(el Element, q Quantity) bool {
	for _, candidate := range quantities[el] {
		if candidate == q {
			return true
		}
	}
	return false
}
