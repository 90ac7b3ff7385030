package eqseries

import (
	"fmt"
)

// Table is the series of one pair: Rows[i] holds the values of step i in
// Columns order.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Len returns the number of steps in the table.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Row returns the values of one step keyed by entity name.
func (t *Table) Row(step int) (map[string]float64, error) {
	if step < 0 || step >= len(t.Rows) {
		return nil, fmt.Errorf("step %d outside [0, %d)", step, len(t.Rows))
	}
	row := t.Rows[step]
	out := make(map[string]float64, len(t.Columns))
	for i, name := range t.Columns {
		out[name] = row[i]
	}
	return out, nil
}

// Store holds one table per tracked pair. All tables share the step domain
// [0, Len()).
type Store struct {
	pairs  []Pair
	tables map[Pair]*Table
}

// NewStore returns an empty store tracking pairs in the given order.
func NewStore(pairs []Pair) *Store {
	s := &Store{
		pairs:  append([]Pair(nil), pairs...),
		tables: make(map[Pair]*Table, len(pairs)),
	}
	return s
}

// Pairs returns the tracked pairs in order.
func (s *Store) Pairs() []Pair {
	return append([]Pair(nil), s.pairs...)
}

// Table returns the table of a pair.
func (s *Store) Table(p Pair) (*Table, bool) {
	t, ok := s.tables[p]
	return t, ok
}

// Len returns the shared number of steps, or 0 for an empty store.
func (s *Store) Len() int {
	for _, p := range s.pairs {
		if t, ok := s.tables[p]; ok {
			return t.Len()
		}
	}
	return 0
}

// Row returns the values of pair p at step keyed by entity name.
func (s *Store) Row(p Pair, step int) (map[string]float64, error) {
	t, ok := s.tables[p]
	if !ok {
		return nil, fmt.Errorf("no series for %s", p)
	}
	return t.Row(step)
}

// set installs t for p, enforcing the shared step domain.
func (s *Store) set(p Pair, t *Table) error {
	found := false
	for _, tracked := range s.pairs {
		if tracked == p {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("pair %s is not tracked by this store", p)
	}
	for other, existing := range s.tables {
		if other != p && existing.Len() != t.Len() {
			return fmt.Errorf("%s has %d steps, %s has %d: %w", p, t.Len(), other, existing.Len(), ErrMalformedTable)
		}
	}
	s.tables[p] = t
	return nil
}
