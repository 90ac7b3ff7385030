// Package eqseries holds per-step time series of element quantities (Eq
// pairs) and the code that generates, persists and reloads them.
package eqseries

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ringsim/internal/grid"
)

// ErrMalformedTable is returned when a persisted table or manifest cannot be
// trusted: wrong step column, unequal lengths, bad values.
var ErrMalformedTable = errors.New("malformed series table")

// Pair is an (element kind, quantity) key such as (load, p_mw).
type Pair struct {
	Element  grid.Element
	Quantity grid.Quantity
}

// String returns "element_quantity", which is also the table file stem.
func (p Pair) String() string {
	return string(p.Element) + "_" + string(p.Quantity)
}

// Validate checks that the element table exposes the quantity.
func (p Pair) Validate() error {
	if _, err := grid.ParseElement(string(p.Element)); err != nil {
		return err
	}
	if !grid.Supports(p.Element, p.Quantity) {
		return fmt.Errorf("%s: %w", p, grid.ErrUnknownQuantity)
	}
	return nil
}

// DefaultPairs are the pairs tracked when a run does not name its own.
var DefaultPairs = []Pair{
	{grid.ElementLoad, grid.QuantityActivePower},
	{grid.ElementLoad, grid.QuantityReactivePower},
	{grid.ElementGen, grid.QuantityActivePower},
	{grid.ElementGen, grid.QuantityVoltageSet},
}

// Values maps each pair to entity name -> value.
type Values map[Pair]map[string]float64

// LoadInput reads an input document of the form
//
//	element: {quantity: {zone: {position: value}}}
//
// and returns the values of the requested pairs keyed by "{zone}_{position}".
// Every requested pair must be present in the document.
func LoadInput(path string, pairs []Pair) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading series input: %w", err)
	}

	var doc map[string]map[string]map[string]map[string]float64
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing series input: %w", err)
	}

	out := make(Values, len(pairs))
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		zones, ok := doc[string(p.Element)][string(p.Quantity)]
		if !ok {
			return nil, fmt.Errorf("series input %s has no %s values", path, p)
		}
		flat := make(map[string]float64)
		for zone, positions := range zones {
			for pos, v := range positions {
				flat[zone+"_"+pos] = v
			}
		}
		out[p] = flat
	}
	return out, nil
}
