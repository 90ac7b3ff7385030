// Package metrics computes scalar line metrics from solved network state.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/nvandessel/ringsim/internal/grid"
)

// ErrUnknownMetric is returned when a requested metric is not registered.
var ErrUnknownMetric = errors.New("unknown metric")

// Metric is one named scalar computed from line results.
type Metric struct {
	Name  string
	Label string
	Unit  string
	Eval  func(net *grid.Network) float64
}

// scope selects which lines a metric looks at.
type scope func(net *grid.Network, line int) bool

func allLines(*grid.Network, int) bool { return true }

// innerLine reports whether the line has no endpoint in the outer zone.
func innerLine(net *grid.Network, line int) bool {
	l := net.Lines[line]
	return net.Buses[l.FromBus].Zone != "outer" && net.Buses[l.ToBus].Zone != "outer"
}

func inService(s scope) scope {
	return func(net *grid.Network, line int) bool {
		return net.Lines[line].InService && s(net, line)
	}
}

func maxLoading(s scope) func(*grid.Network) float64 {
	return func(net *grid.Network) float64 {
		best, found := math.Inf(-1), false
		for i, r := range net.LineResults {
			if s(net, i) {
				best, found = math.Max(best, r.LoadingPercent), true
			}
		}
		if !found {
			return math.NaN()
		}
		return best
	}
}

func avgLoading(s scope) func(*grid.Network) float64 {
	return func(net *grid.Network) float64 {
		var sum float64
		n := 0
		for i, r := range net.LineResults {
			if s(net, i) {
				sum += r.LoadingPercent
				n++
			}
		}
		if n == 0 {
			return math.NaN()
		}
		return sum / float64(n)
	}
}

func totalCurrent(s scope) func(*grid.Network) float64 {
	return func(net *grid.Network) float64 {
		var sum float64
		for i, r := range net.LineResults {
			if s(net, i) {
				sum += r.IKA
			}
		}
		return sum
	}
}

var registry = map[string]Metric{}

func register(m Metric) {
	registry[m.Name] = m
}

func init() {
	register(Metric{Name: "max_loading_inner", Label: "Max loading inner", Unit: "%", Eval: maxLoading(innerLine)})
	register(Metric{Name: "max_loading_all", Label: "Max loading all", Unit: "%", Eval: maxLoading(allLines)})
	register(Metric{Name: "avg_loading_inner", Label: "Average loading inner", Unit: "%", Eval: avgLoading(inService(innerLine))})
	register(Metric{Name: "avg_loading_all", Label: "Average loading all", Unit: "%", Eval: avgLoading(inService(allLines))})
	register(Metric{Name: "total_current_inner", Label: "Total current inner", Unit: "kA", Eval: totalCurrent(innerLine)})
	register(Metric{Name: "total_current_all", Label: "Total current all", Unit: "kA", Eval: totalCurrent(allLines)})
}

// Names returns every registered metric name, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup returns a registered metric.
func Lookup(name string) (Metric, bool) {
	m, ok := registry[name]
	return m, ok
}

// DisplayLabel returns "Label (Unit)".
func (m Metric) DisplayLabel() string {
	return fmt.Sprintf("%s (%s)", m.Label, m.Unit)
}

// Set is an ordered selection of metrics.
type Set []Metric

// Resolve returns the metrics named, in order.
func Resolve(names []string) (Set, error) {
	if len(names) == 0 {
		return nil, errors.New("no metrics requested")
	}
	set := make(Set, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		m, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownMetric, name, Names())
		}
		if seen[name] {
			return nil, fmt.Errorf("metric %q requested twice", name)
		}
		seen[name] = true
		set = append(set, m)
	}
	return set, nil
}

// Names returns the metric names in set order.
func (s Set) Names() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = m.Name
	}
	return out
}

// Evaluate computes every metric of the set on net.
func (s Set) Evaluate(net *grid.Network) map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name] = m.Eval(net)
	}
	return out
}
