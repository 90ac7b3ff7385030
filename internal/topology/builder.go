package topology

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nvandessel/ringsim/internal/grid"
)

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type builder struct {
	cfg    *Config
	layout *Layout
	logger *slog.Logger

	net    *grid.Network
	buses  map[Zone]map[string]int
	params map[LineClass]LineParams
}

// Build constructs the ring network described by cfg and layout.
//
// Buses are created zone by zone (center, inner, outer) in layout order, each
// with a zero-power load and a zero-power generator of the same name; center
// generators are slack. Lines follow in the same zone order. The returned
// network carries bus, line, load and gen name indexes.
//
// All validation happens before the first entity is created. Identical
// inputs yield identical names, ordering and endpoints.
func Build(cfg *Config, layout *Layout, opts ...Option) (*grid.Network, error) {
	b := &builder{
		cfg:    cfg,
		layout: layout,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	b.net = grid.NewNetwork()
	b.buses = make(map[Zone]map[string]int, len(Zones))
	for _, z := range Zones {
		b.addBuses(z)
	}

	for _, step := range linePlan {
		edges := step.connect(step.pair, layout.Order.Center, layout.Order.Ring)
		if err := b.addLines(step.pair, edges); err != nil {
			return nil, err
		}
	}

	if err := b.net.BuildIndexes(); err != nil {
		return nil, fmt.Errorf("building name indexes: %w", err)
	}

	b.logger.Debug("topology built",
		"substations", cfg.Substations,
		"buses", len(b.net.Buses),
		"lines", len(b.net.Lines))
	return b.net, nil
}

// validate rejects every configuration problem up front so that a failing
// build never leaves a partial network behind.
func (b *builder) validate() error {
	if b.cfg == nil {
		return configErrorf("config", "missing topology configuration")
	}
	if b.layout == nil {
		return configErrorf("layout", "missing layout")
	}
	if err := b.cfg.Validate(); err != nil {
		return err
	}
	if err := b.layout.Validate(); err != nil {
		return err
	}
	if got := len(b.layout.Order.Center); got != b.cfg.Substations {
		return configErrorf("order.center", "has %d positions for %d substations", got, b.cfg.Substations)
	}

	b.params = make(map[LineClass]LineParams, len(linePlan))
	for _, step := range linePlan {
		class, err := ClassFor(step.pair)
		if err != nil {
			return err
		}
		p, ok := b.cfg.Parameters[string(class)]
		if !ok {
			return configErrorf("parameters", "no parameters for line class %q used by %s lines", class, step.pair)
		}
		b.params[class] = p
	}

	if unfed := UnfedRingPositions(b.layout.Order.Center, b.layout.Order.Ring); len(unfed) > 0 {
		b.logger.Warn("ring does not split evenly over center buses; positions left without a center feeder",
			"center", len(b.layout.Order.Center),
			"ring", len(b.layout.Order.Ring),
			"unfed", unfed)
	}
	return nil
}

func (b *builder) addBuses(z Zone) {
	coords := b.layout.Coordinates[z.String()]
	idx := make(map[string]int, len(b.layout.positions(z)))
	for _, pos := range b.layout.positions(z) {
		name := busName(z, pos)
		bus := b.net.AddBus(grid.Bus{
			Name:     name,
			Zone:     z.String(),
			Position: pos,
			VnKV:     b.cfg.VoltageKV,
			Coord:    coords[pos],
		})
		idx[pos] = bus

		b.net.AddLoad(grid.Load{Name: name, Bus: bus})
		b.net.AddGen(grid.Gen{Name: name, Bus: bus, VmPU: 1, Slack: z == ZoneCenter})
	}
	b.buses[z] = idx
}

func (b *builder) addLines(pair ZonePair, edges []Edge) error {
	class, err := ClassFor(pair)
	if err != nil {
		return err
	}
	p := b.params[class]

	for _, e := range edges {
		from, ok := b.buses[pair.From][e.From]
		if !ok {
			return fmt.Errorf("line %s: no %s bus at position %q", pair, pair.From, e.From)
		}
		to, ok := b.buses[pair.To][e.To]
		if !ok {
			return fmt.Errorf("line %s: no %s bus at position %q", pair, pair.To, e.To)
		}
		b.net.AddLine(grid.Line{
			Name:      LineName(pair, e),
			FromBus:   from,
			ToBus:     to,
			Class:     string(class),
			LengthKM:  1,
			ROhmPerKM: p.ROhm,
			XOhmPerKM: p.XOhm,
			CNfPerKM:  p.CNf,
			MaxIKA:    p.MaxIKA,
			InService: true,
		})
	}
	return nil
}

// BusName returns the name of the bus at pos in zone z.
func BusName(z Zone, pos string) string {
	return busName(z, pos)
}

func busName(z Zone, pos string) string {
	return z.String() + "_" + pos
}

// LineName derives a line's name from its two endpoints.
func LineName(pair ZonePair, e Edge) string {
	return busName(pair.From, e.From) + "_" + busName(pair.To, e.To)
}
