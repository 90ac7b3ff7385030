package grid

import "fmt"

// NameIndex maps stable entity names to positions in a backing table and
// back. It is built once, after every entity of its kind exists, and is
// read-only afterwards.
type NameIndex struct {
	element Element
	names   []string
	pos     map[string]int
}

// NewNameIndex builds an index where names[i] resolves to position i.
func NewNameIndex(el Element, names []string) (*NameIndex, error) {
	idx := &NameIndex{
		element: el,
		names:   make([]string, len(names)),
		pos:     make(map[string]int, len(names)),
	}
	for i, name := range names {
		if prev, dup := idx.pos[name]; dup {
			return nil, fmt.Errorf("%s %q at positions %d and %d: %w", el, name, prev, i, ErrDuplicateName)
		}
		idx.pos[name] = i
		idx.names[i] = name
	}
	return idx, nil
}

// Element returns the element kind this index covers.
func (idx *NameIndex) Element() Element {
	return idx.element
}

// Resolve returns the table position of name.
func (idx *NameIndex) Resolve(name string) (int, error) {
	p, ok := idx.pos[name]
	if !ok {
		return 0, &UnknownEntityError{Element: idx.element, Name: name}
	}
	return p, nil
}

// Name returns the name stored at position p.
func (idx *NameIndex) Name(p int) (string, bool) {
	if p < 0 || p >= len(idx.names) {
		return "", false
	}
	return idx.names[p], true
}

// Names returns all names in position order.
func (idx *NameIndex) Names() []string {
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// Len returns the number of indexed entities.
func (idx *NameIndex) Len() int {
	return len(idx.names)
}
