// Package topology builds the layered ring network: a center zone of
// substations, an inner ring and an outer ring, joined by center, radial and
// tangential lines.
package topology

import "fmt"

// Zone is one of the three concentric groupings of buses.
type Zone int

const (
	ZoneCenter Zone = iota
	ZoneInner
	ZoneOuter
)

// Zones lists zones from the center outwards; buses are created in this order.
var Zones = []Zone{ZoneCenter, ZoneInner, ZoneOuter}

func (z Zone) String() string {
	switch z {
	case ZoneCenter:
		return "center"
	case ZoneInner:
		return "inner"
	case ZoneOuter:
		return "outer"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// ZonePair is the ordered (from, to) zone key of a line.
type ZonePair struct {
	From Zone
	To   Zone
}

func (p ZonePair) String() string {
	return p.From.String() + "-" + p.To.String()
}

// LineClass selects the electrical parameter set of a line.
type LineClass string

const (
	ClassInternal         LineClass = "internal"
	ClassInternalExternal LineClass = "internal_external"
	ClassExternal         LineClass = "external"
)

// ClassFor returns the parameter class of lines joining the zones of p.
// Pairs the builder never connects are a configuration error.
func ClassFor(p ZonePair) (LineClass, error) {
	switch p {
	case ZonePair{ZoneCenter, ZoneCenter},
		ZonePair{ZoneCenter, ZoneInner},
		ZonePair{ZoneInner, ZoneInner}:
		return ClassInternal, nil
	case ZonePair{ZoneInner, ZoneOuter}:
		return ClassInternalExternal, nil
	case ZonePair{ZoneOuter, ZoneOuter}:
		return ClassExternal, nil
	default:
		return "", configErrorf("zones", "no line class for zone pair %s", p)
	}
}
