package eqseries

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/ringsim/internal/grid"
)

var (
	loadP = Pair{grid.ElementLoad, grid.QuantityActivePower}
	genP  = Pair{grid.ElementGen, grid.QuantityActivePower}
)

// testNetwork returns a network with three buses, each carrying a load and a
// generator of the same name.
func testNetwork(t *testing.T) *grid.Network {
	t.Helper()
	net := grid.NewNetwork()
	for _, name := range []string{"inner_A", "inner_B", "outer_A"} {
		b := net.AddBus(grid.Bus{Name: name, VnKV: 10})
		net.AddLoad(grid.Load{Name: name, Bus: b})
		net.AddGen(grid.Gen{Name: name, Bus: b, VmPU: 1})
	}
	if err := net.BuildIndexes(); err != nil {
		t.Fatalf("BuildIndexes() error = %v", err)
	}
	return net
}

func TestLoadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.yaml")
	doc := `load:
  p_mw:
    inner: {A: 1.5, B: 2}
    outer: {A: 0.5}
gen:
  p_mw:
    outer: {A: 3}
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadInput(path, []Pair{loadP, genP})
	if err != nil {
		t.Fatalf("LoadInput() error = %v", err)
	}
	want := Values{
		loadP: {"inner_A": 1.5, "inner_B": 2, "outer_A": 0.5},
		genP:  {"outer_A": 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadInput() mismatch (-want +got):\n%s", diff)
	}

	if _, err := LoadInput(path, []Pair{{grid.ElementLoad, grid.QuantityReactivePower}}); err == nil {
		t.Error("LoadInput() with a pair missing from the document should fail")
	}
}

func TestLoadInput_ShippedExample(t *testing.T) {
	got, err := LoadInput(filepath.Join("..", "..", "config", "two_sub_load_gen_example.yaml"), DefaultPairs)
	if err != nil {
		t.Fatalf("LoadInput() error = %v", err)
	}
	if v := got[loadP]["inner_N"]; v != 0.8 {
		t.Errorf("load p_mw inner_N = %v, want 0.8", v)
	}
	if v := got[Pair{grid.ElementGen, grid.QuantityVoltageSet}]["center_W"]; v != 1 {
		t.Errorf("gen vm_pu center_W = %v, want 1", v)
	}
}

func TestGenerate_ResetsEachStep(t *testing.T) {
	net := testNetwork(t)
	base := Values{loadP: {"inner_A": 1, "inner_B": 2, "outer_A": 3}}

	// The noise adds a step counter on top of whatever is in the table: if
	// the reset did not happen, values would accumulate.
	calls := 0
	noise := func(n *grid.Network) error {
		calls++
		col, err := n.Snapshot(loadP.Element, loadP.Quantity)
		if err != nil {
			return err
		}
		for name := range col {
			col[name] += float64(calls)
		}
		return n.Apply(loadP.Element, loadP.Quantity, col)
	}

	store, err := Generate(context.Background(), net, base, noise, 3, []Pair{loadP, genP})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if store.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", store.Len())
	}

	table, _ := store.Table(loadP)
	if diff := cmp.Diff([]string{"inner_A", "inner_B", "outer_A"}, table.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	want := [][]float64{{2, 3, 4}, {3, 4, 5}, {4, 5, 6}}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	genTable, _ := store.Table(genP)
	if genTable.Len() != 3 {
		t.Errorf("gen table Len() = %d, want 3", genTable.Len())
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, testNetwork(t), nil, nil, 5, []Pair{loadP})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestGenerate_UnknownEntityInBase(t *testing.T) {
	base := Values{loadP: {"nowhere": 1}}
	_, err := Generate(context.Background(), testNetwork(t), base, nil, 2, []Pair{loadP})
	if !errors.Is(err, grid.ErrUnknownEntity) {
		t.Errorf("Generate() error = %v, want ErrUnknownEntity", err)
	}
}

func TestUniformNoise_Bounds(t *testing.T) {
	net := testNetwork(t)
	base := Values{loadP: {"inner_A": 10, "inner_B": 10, "outer_A": 10}}
	noise := UniformNoise(NewRand(7), []Pair{loadP}, 0.2)

	store, err := Generate(context.Background(), net, base, noise, 50, []Pair{loadP})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	table, _ := store.Table(loadP)
	varied := false
	for step, row := range table.Rows {
		for i, v := range row {
			if v < 8 || v > 12 {
				t.Fatalf("step %d %s = %v, outside [8, 12]", step, table.Columns[i], v)
			}
			if v != 10 {
				varied = true
			}
		}
	}
	if !varied {
		t.Error("noise never changed a value")
	}

	// Same seed, same series.
	again, err := Generate(context.Background(), testNetwork(t), base, UniformNoise(NewRand(7), []Pair{loadP}, 0.2), 50, []Pair{loadP})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	againTable, _ := again.Table(loadP)
	if diff := cmp.Diff(table.Rows, againTable.Rows); diff != "" {
		t.Errorf("seeded noise not reproducible:\n%s", diff)
	}
}

func TestSaveLoad(t *testing.T) {
	net := testNetwork(t)
	base := Values{
		loadP: {"inner_A": 1.25, "inner_B": 2.5, "outer_A": 0.125},
		genP:  {"outer_A": 4},
	}
	store, err := Generate(context.Background(), net, base, nil, 4, []Pair{loadP, genP})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	dir := t.TempDir()
	if err := store.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	for _, name := range []string{"load_p_mw.csv", "gen_p_mw.csv", "eq_pairs.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(store.Pairs(), loaded.Pairs()); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
	for _, p := range store.Pairs() {
		want, _ := store.Table(p)
		got, ok := loaded.Table(p)
		if !ok {
			t.Fatalf("loaded store missing %s", p)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s table mismatch (-want +got):\n%s", p, diff)
		}
	}

	row, err := loaded.Row(loadP, 3)
	if err != nil {
		t.Fatalf("Row() error = %v", err)
	}
	if row["inner_B"] != 2.5 {
		t.Errorf("Row(3)[inner_B] = %v, want 2.5", row["inner_B"])
	}
	if _, err := loaded.Row(loadP, 4); err == nil {
		t.Error("Row() past the end should fail")
	}
}

func TestLoad_Malformed(t *testing.T) {
	manifest := "- [load, p_mw]\n"
	tests := []struct {
		name  string
		table string
	}{
		{"step gap", "step,inner_A\n0,1\n2,1\n"},
		{"step not first", "inner_A,step\n1,0\n"},
		{"bad number", "step,inner_A\n0,abc\n"},
		{"empty value", "step,inner_A\n0,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "eq_pairs.yaml"), []byte(manifest), 0644); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "load_p_mw.csv"), []byte(tt.table), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(dir)
			if !errors.Is(err, ErrMalformedTable) {
				t.Errorf("Load() error = %v, want ErrMalformedTable", err)
			}
		})
	}
}

func TestLoad_UnequalLengths(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"eq_pairs.yaml":  "- [load, p_mw]\n- [gen, p_mw]\n",
		"load_p_mw.csv": "step,a\n0,1\n1,2\n",
		"gen_p_mw.csv":  "step,a\n0,1\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	_, err := Load(dir)
	if !errors.Is(err, ErrMalformedTable) {
		t.Errorf("Load() error = %v, want ErrMalformedTable", err)
	}
}

func TestLoad_BadManifest(t *testing.T) {
	tests := map[string]string{
		"unknown element": "- [transformer, p_mw]\n",
		"unsupported":     "- [bus, p_mw]\n",
		"short entry":     "- [load]\n",
	}
	for name, manifest := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "eq_pairs.yaml"), []byte(manifest), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestPair_String(t *testing.T) {
	if got := loadP.String(); got != "load_p_mw" {
		t.Errorf("String() = %q, want load_p_mw", got)
	}
	if got := TableFile(genP); !strings.HasSuffix(got, ".csv") {
		t.Errorf("TableFile() = %q, want .csv suffix", got)
	}
}
