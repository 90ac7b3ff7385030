package topology

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/ringsim/internal/grid"
)

var testRing = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func testConfig(substations int) *Config {
	return &Config{
		Substations: substations,
		VoltageKV:   10,
		Parameters: map[string]LineParams{
			"internal":          {ROhm: 0.1, XOhm: 0.1, MaxIKA: 0.4},
			"internal_external": {ROhm: 0.2, XOhm: 0.2, MaxIKA: 0.3},
			"external":          {ROhm: 0.3, XOhm: 0.3, MaxIKA: 0.2},
		},
	}
}

func testLayout(center, ring []string) *Layout {
	coords := map[string]map[string][2]float64{
		"center": {},
		"inner":  {},
		"outer":  {},
	}
	for i, pos := range center {
		coords["center"][pos] = [2]float64{float64(i), 0}
	}
	for i, pos := range ring {
		coords["inner"][pos] = [2]float64{float64(i), 1}
		coords["outer"][pos] = [2]float64{float64(i), 2}
	}
	return &Layout{Order: Order{Center: center, Ring: ring}, Coordinates: coords}
}

func centerFor(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("c%d", i)
	}
	return out
}

func linesBetween(net *grid.Network, from, to Zone) []grid.Line {
	var out []grid.Line
	for _, l := range net.Lines {
		if net.Buses[l.FromBus].Zone == from.String() && net.Buses[l.ToBus].Zone == to.String() {
			out = append(out, l)
		}
	}
	return out
}

func TestBuild_BusesLoadsGens(t *testing.T) {
	net, err := Build(testConfig(2), testLayout(centerFor(2), testRing))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	wantBuses := 2 + 2*len(testRing)
	if len(net.Buses) != wantBuses {
		t.Fatalf("len(Buses) = %d, want %d", len(net.Buses), wantBuses)
	}
	if len(net.Loads) != wantBuses || len(net.Gens) != wantBuses {
		t.Fatalf("loads/gens = %d/%d, want %d each", len(net.Loads), len(net.Gens), wantBuses)
	}

	if net.Buses[0].Name != "center_c0" {
		t.Errorf("first bus = %q, want center_c0", net.Buses[0].Name)
	}
	if got := net.Buses[2].Name; got != "inner_N" {
		t.Errorf("first ring bus = %q, want inner_N", got)
	}
	if got := net.Buses[len(net.Buses)-1].Name; got != "outer_NW" {
		t.Errorf("last bus = %q, want outer_NW", got)
	}

	for i, g := range net.Gens {
		bus := net.Buses[g.Bus]
		if g.Name != bus.Name {
			t.Errorf("gen %d name = %q, want %q", i, g.Name, bus.Name)
		}
		if wantSlack := bus.Zone == "center"; g.Slack != wantSlack {
			t.Errorf("gen %s slack = %v, want %v", g.Name, g.Slack, wantSlack)
		}
		if g.PMW != 0 || g.VmPU != 1 {
			t.Errorf("gen %s = (p %v, vm %v), want (0, 1)", g.Name, g.PMW, g.VmPU)
		}
	}
	for _, l := range net.Loads {
		if l.PMW != 0 || l.QMvar != 0 {
			t.Errorf("load %s not zero: %+v", l.Name, l)
		}
	}
	for _, b := range net.Buses {
		if b.VnKV != 10 {
			t.Errorf("bus %s vn_kv = %v, want 10", b.Name, b.VnKV)
		}
	}

	for _, el := range grid.Elements {
		if net.Index(el) == nil {
			t.Errorf("Index(%s) = nil after Build", el)
		}
	}
}

func TestBuild_CenterLines(t *testing.T) {
	tests := []struct {
		n    int
		want []string
	}{
		{1, nil},
		{2, []string{"center_c0_center_c1"}},
		{4, []string{
			"center_c0_center_c1",
			"center_c1_center_c2",
			"center_c2_center_c3",
			"center_c3_center_c0",
		}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			net, err := Build(testConfig(tt.n), testLayout(centerFor(tt.n), testRing))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			var got []string
			for _, l := range linesBetween(net, ZoneCenter, ZoneCenter) {
				got = append(got, l.Name)
				if l.Class != string(ClassInternal) {
					t.Errorf("line %s class = %q, want internal", l.Name, l.Class)
				}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("center lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuild_TangentialCycles(t *testing.T) {
	net, err := Build(testConfig(1), testLayout(centerFor(1), testRing))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, z := range []Zone{ZoneInner, ZoneOuter} {
		lines := linesBetween(net, z, z)
		if len(lines) != len(testRing) {
			t.Fatalf("%s tangential lines = %d, want %d", z, len(lines), len(testRing))
		}

		// Walk the cycle from the first position: it must visit every
		// position exactly once and come back.
		next := make(map[string]string, len(lines))
		for _, l := range lines {
			next[net.Buses[l.FromBus].Position] = net.Buses[l.ToBus].Position
		}
		seen := map[string]bool{}
		pos := testRing[0]
		for range testRing {
			if seen[pos] {
				t.Fatalf("%s ring revisits %s before closing", z, pos)
			}
			seen[pos] = true
			pos = next[pos]
		}
		if pos != testRing[0] || len(seen) != len(testRing) {
			t.Errorf("%s ring does not close over all positions (ended at %s, saw %d)", z, pos, len(seen))
		}
	}
}

func TestBuild_RadialLines(t *testing.T) {
	net, err := Build(testConfig(2), testLayout(centerFor(2), testRing))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	perFeeder := map[string]int{}
	for _, l := range linesBetween(net, ZoneCenter, ZoneInner) {
		perFeeder[net.Buses[l.FromBus].Name]++
	}
	want := map[string]int{"center_c0": 4, "center_c1": 4}
	if diff := cmp.Diff(want, perFeeder); diff != "" {
		t.Errorf("center feeders mismatch (-want +got):\n%s", diff)
	}

	outward := linesBetween(net, ZoneInner, ZoneOuter)
	if len(outward) != len(testRing) {
		t.Fatalf("inner-outer lines = %d, want %d", len(outward), len(testRing))
	}
	for _, l := range outward {
		from, to := net.Buses[l.FromBus], net.Buses[l.ToBus]
		if from.Position != to.Position {
			t.Errorf("line %s joins %s to %s, want same position", l.Name, from.Position, to.Position)
		}
		if l.Class != string(ClassInternalExternal) {
			t.Errorf("line %s class = %q, want internal_external", l.Name, l.Class)
		}
	}
}

func TestBuild_UnevenRadialSplitTruncates(t *testing.T) {
	ring := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	net, err := Build(testConfig(2), testLayout(centerFor(2), ring), WithLogger(logger))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	radial := linesBetween(net, ZoneCenter, ZoneInner)
	if len(radial) != 8 {
		t.Fatalf("center-inner lines = %d, want 8", len(radial))
	}
	for _, l := range radial {
		if net.Buses[l.ToBus].Position == "i" {
			t.Errorf("line %s feeds the trailing ring position", l.Name)
		}
	}
	if !strings.Contains(logs.String(), "unfed=[i]") {
		t.Errorf("expected a warning naming the unfed position, got %q", logs.String())
	}
}

func TestBuild_UniqueNames(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			net, err := Build(testConfig(n), testLayout(centerFor(n), testRing))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			for _, el := range grid.Elements {
				names := net.Index(el).Names()
				seen := make(map[string]bool, len(names))
				for _, name := range names {
					if seen[name] {
						t.Errorf("%s name %q repeated", el, name)
					}
					seen[name] = true
				}
			}
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	first, err := Build(testConfig(4), testLayout(centerFor(4), testRing))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := Build(testConfig(4), testLayout(centerFor(4), testRing))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if diff := cmp.Diff(first.Buses, second.Buses); diff != "" {
		t.Errorf("buses differ between builds:\n%s", diff)
	}
	if diff := cmp.Diff(first.Lines, second.Lines); diff != "" {
		t.Errorf("lines differ between builds:\n%s", diff)
	}
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func() *Config
		layout func() *Layout
	}{
		{
			name:   "three substations",
			cfg:    func() *Config { return testConfig(3) },
			layout: func() *Layout { return testLayout(centerFor(3), testRing) },
		},
		{
			name: "missing line class",
			cfg: func() *Config {
				c := testConfig(2)
				delete(c.Parameters, "external")
				return c
			},
			layout: func() *Layout { return testLayout(centerFor(2), testRing) },
		},
		{
			name:   "center order does not match substations",
			cfg:    func() *Config { return testConfig(4) },
			layout: func() *Layout { return testLayout(centerFor(2), testRing) },
		},
		{
			name: "missing coordinate",
			cfg:  func() *Config { return testConfig(1) },
			layout: func() *Layout {
				l := testLayout(centerFor(1), testRing)
				delete(l.Coordinates["outer"], "SW")
				return l
			},
		},
		{
			name:   "duplicate ring position",
			cfg:    func() *Config { return testConfig(1) },
			layout: func() *Layout { return testLayout(centerFor(1), []string{"N", "E", "N"}) },
		},
		{
			name: "zero voltage",
			cfg: func() *Config {
				c := testConfig(1)
				c.VoltageKV = 0
				return c
			},
			layout: func() *Layout { return testLayout(centerFor(1), testRing) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, err := Build(tt.cfg(), tt.layout())
			if err == nil {
				t.Fatal("Build() should fail")
			}
			if net != nil {
				t.Error("Build() returned a network alongside an error")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Build() error = %v, want ErrConfiguration", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Build() error type = %T, want *ConfigurationError", err)
			}
		})
	}
}

func TestLoad_ShippedConfigs(t *testing.T) {
	dir := filepath.Join("..", "..", "config")
	cfg, err := LoadConfig(filepath.Join(dir, "example_config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	for _, n := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			c := *cfg
			c.Substations = n
			layout, err := LoadLayoutFor(dir, &c)
			if err != nil {
				t.Fatalf("LoadLayoutFor() error = %v", err)
			}
			net, err := Build(&c, layout)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			wantBuses := n + 2*len(layout.Order.Ring)
			if len(net.Buses) != wantBuses {
				t.Errorf("len(Buses) = %d, want %d", len(net.Buses), wantBuses)
			}
		})
	}
}

func TestLoad_FromFiles(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "topology.yaml")
	cfgYAML := `substations: 1
voltage_kv: 20
parameters:
  internal: {r_ohm: 1, x_ohm: 1, c_nf: 0, max_i_ka: 1}
  internal_external: {r_ohm: 1, x_ohm: 1, c_nf: 0, max_i_ka: 1}
  external: {r_ohm: 1, x_ohm: 1, c_nf: 0, max_i_ka: 1}
`
	layoutYAML := `order:
  center: [C]
  ring: [A, B, C]
coordinates:
  center: {C: [0, 0]}
  inner: {A: [1, 0], B: [0, 1], C: [-1, 0]}
  outer: {A: [2, 0], B: [0, 2], C: [-2, 0]}
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "one_sub_coords.yaml"), []byte(layoutYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, layout, err := Load(cfgPath, dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VoltageKV != 20 {
		t.Errorf("VoltageKV = %v, want 20", cfg.VoltageKV)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, layout.Order.Ring); diff != "" {
		t.Errorf("ring order mismatch (-want +got):\n%s", diff)
	}
	if got := layout.Coordinates["outer"]["B"]; got != [2]float64{0, 2} {
		t.Errorf("outer B coord = %v, want [0 2]", got)
	}
}

func TestLayoutFile_Unsupported(t *testing.T) {
	if _, err := LayoutFile(3); !errors.Is(err, ErrConfiguration) {
		t.Errorf("LayoutFile(3) error = %v, want ErrConfiguration", err)
	}
}

func TestSummarize(t *testing.T) {
	cfg := testConfig(2)
	layout := testLayout(centerFor(2), testRing)
	net, err := Build(cfg, layout)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	s := Summarize(cfg, layout, net)
	if s.Buses != 18 || s.Loads != 18 || s.Gens != 18 {
		t.Errorf("buses/loads/gens = %d/%d/%d, want 18 each", s.Buses, s.Loads, s.Gens)
	}
	if s.LinesByClass["external"] != len(testRing) {
		t.Errorf("external lines = %d, want %d", s.LinesByClass["external"], len(testRing))
	}
	if s.LinesByClass["internal_external"] != len(testRing) {
		t.Errorf("internal_external lines = %d, want %d", s.LinesByClass["internal_external"], len(testRing))
	}
	total := 0
	for _, c := range s.Classes() {
		total += s.LinesByClass[c]
	}
	if total != s.Lines || len(s.LineNames) != s.Lines {
		t.Errorf("class counts sum to %d, line names %d, want %d", total, len(s.LineNames), s.Lines)
	}
	if len(s.Unfed) != 0 {
		t.Errorf("Unfed = %v, want none", s.Unfed)
	}
	if diff := cmp.Diff([]string{"external", "internal", "internal_external"}, s.Classes()); diff != "" {
		t.Errorf("Classes() mismatch (-want +got):\n%s", diff)
	}
}
