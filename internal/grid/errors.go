package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity is matched by every UnknownEntityError.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUnknownQuantity is returned when a quantity is not a column of the
	// addressed element table.
	ErrUnknownQuantity = errors.New("unknown quantity")

	// ErrDuplicateName is returned when a name index would map one name to
	// two positions.
	ErrDuplicateName = errors.New("duplicate entity name")
)

// UnknownEntityError reports a name that is not present in an element's index.
type UnknownEntityError struct {
	Element Element
	Name    string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Element, e.Name)
}

// Is makes errors.Is(err, ErrUnknownEntity) match.
func (e *UnknownEntityError) Is(target error) bool {
	return target == ErrUnknownEntity
}
