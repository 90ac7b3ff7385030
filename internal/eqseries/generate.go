package eqseries

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/nvandessel/ringsim/internal/grid"
)

// NoiseFunc perturbs the load and generator tables of net in place.
type NoiseFunc func(net *grid.Network) error

// Generate produces length steps of synthetic series. Each step resets the
// network to base, calls noise, then snapshots every tracked pair. Steps run
// strictly in order; ctx is checked between steps.
func Generate(ctx context.Context, net *grid.Network, base Values, noise NoiseFunc, length int, pairs []Pair) (*Store, error) {
	if length < 0 {
		return nil, fmt.Errorf("series length must not be negative, got %d", length)
	}
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if net.Index(p.Element) == nil {
			return nil, fmt.Errorf("%s table is not indexed", p.Element)
		}
	}

	basePairs := make([]Pair, 0, len(base))
	for p := range base {
		basePairs = append(basePairs, p)
	}
	sort.Slice(basePairs, func(i, j int) bool { return basePairs[i].String() < basePairs[j].String() })

	tables := make([]*Table, len(pairs))
	for i, p := range pairs {
		tables[i] = &Table{
			Columns: net.Index(p.Element).Names(),
			Rows:    make([][]float64, 0, length),
		}
	}

	for step := 0; step < length; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, p := range basePairs {
			if err := net.Apply(p.Element, p.Quantity, base[p]); err != nil {
				return nil, fmt.Errorf("step %d: resetting %s: %w", step, p, err)
			}
		}
		if noise != nil {
			if err := noise(net); err != nil {
				return nil, fmt.Errorf("step %d: noise: %w", step, err)
			}
		}
		for i, p := range pairs {
			col, err := net.Column(p.Element, p.Quantity)
			if err != nil {
				return nil, fmt.Errorf("step %d: snapshot %s: %w", step, p, err)
			}
			tables[i].Rows = append(tables[i].Rows, col)
		}
	}

	store := NewStore(pairs)
	for i, p := range pairs {
		if err := store.set(p, tables[i]); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// UniformNoise returns a NoiseFunc that scales every value of the given pairs
// by an independent factor drawn from U(1-spread, 1+spread).
func UniformNoise(rng *rand.Rand, pairs []Pair, spread float64) NoiseFunc {
	return func(net *grid.Network) error {
		for _, p := range pairs {
			idx := net.Index(p.Element)
			if idx == nil {
				return fmt.Errorf("%s table is not indexed", p.Element)
			}
			col, err := net.Column(p.Element, p.Quantity)
			if err != nil {
				return err
			}
			names := idx.Names()
			scaled := make(map[string]float64, len(col))
			for i, v := range col {
				scaled[names[i]] = v * (1 + spread*(2*rng.Float64()-1))
			}
			if err := net.Apply(p.Element, p.Quantity, scaled); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewRand returns the deterministic generator used for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
