package topology

// Edge joins a position of the pair's from-zone to a position of its
// to-zone.
type Edge struct {
	From string
	To   string
}

// connector computes the edges of one zone pair from the layout orders.
type connector func(pair ZonePair, center, ring []string) []Edge

// linePlan lists the zone pairs to connect, from the center outwards. Every
// pair here must have a class in ClassFor.
var linePlan = []struct {
	pair    ZonePair
	connect connector
}{
	{ZonePair{ZoneCenter, ZoneCenter}, func(_ ZonePair, center, _ []string) []Edge { return CenterEdges(center) }},
	{ZonePair{ZoneCenter, ZoneInner}, RadialEdges},
	{ZonePair{ZoneInner, ZoneInner}, func(_ ZonePair, _, ring []string) []Edge { return TangentialEdges(ring) }},
	{ZonePair{ZoneInner, ZoneOuter}, RadialEdges},
	{ZonePair{ZoneOuter, ZoneOuter}, func(_ ZonePair, _, ring []string) []Edge { return TangentialEdges(ring) }},
}

// CenterEdges connects the center buses. One bus gets no line, two buses get
// exactly one line, and more buses form a cycle where bus i connects to bus
// (i+1) mod n.
func CenterEdges(center []string) []Edge {
	switch n := len(center); {
	case n < 2:
		return nil
	case n == 2:
		return []Edge{{From: center[0], To: center[1]}}
	default:
		return cycle(center)
	}
}

// RadialEdges connects a zone to the next zone outwards.
//
// From the center, each center bus feeds len(ring)/len(center) consecutive
// ring positions. The division truncates: when the ring does not split
// evenly, the last len(ring)%len(center) ring positions get no center feeder.
// Between rings, each position connects to the same position one zone out.
func RadialEdges(pair ZonePair, center, ring []string) []Edge {
	if pair.From != ZoneCenter {
		edges := make([]Edge, len(ring))
		for i, pos := range ring {
			edges[i] = Edge{From: pos, To: pos}
		}
		return edges
	}

	if len(center) == 0 {
		return nil
	}
	perBus := len(ring) / len(center)
	edges := make([]Edge, 0, perBus*len(center))
	for i, feeder := range center {
		for j := 0; j < perBus; j++ {
			edges = append(edges, Edge{From: feeder, To: ring[i*perBus+j]})
		}
	}
	return edges
}

// TangentialEdges closes the ring: every position connects to the next one
// in ring order, the last one back to the first.
func TangentialEdges(ring []string) []Edge {
	return cycle(ring)
}

// UnfedRingPositions returns the ring positions RadialEdges leaves without a
// center feeder.
func UnfedRingPositions(center, ring []string) []string {
	if len(center) == 0 {
		return append([]string(nil), ring...)
	}
	fed := (len(ring) / len(center)) * len(center)
	return append([]string(nil), ring[fed:]...)
}

func cycle(order []string) []Edge {
	edges := make([]Edge, len(order))
	for i, pos := range order {
		edges[i] = Edge{From: pos, To: order[(i+1)%len(order)]}
	}
	return edges
}
