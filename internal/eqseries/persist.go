package eqseries

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ringsim/internal/constants"
	"github.com/nvandessel/ringsim/internal/grid"
)

const stepColumn = "step"

// TableFile returns the file name of a pair's table.
func TableFile(p Pair) string {
	return p.String() + ".csv"
}

// Save writes one CSV table per pair plus the pair manifest into dir.
func (s *Store) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating series dir: %w", err)
	}
	for _, p := range s.pairs {
		t, ok := s.tables[p]
		if !ok {
			return fmt.Errorf("no series for %s", p)
		}
		if err := writeTable(filepath.Join(dir, TableFile(p)), t); err != nil {
			return fmt.Errorf("saving %s: %w", p, err)
		}
	}

	manifest := make([][]string, len(s.pairs))
	for i, p := range s.pairs {
		manifest[i] = []string{string(p.Element), string(p.Quantity)}
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, constants.SeriesManifestFile), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Load reads a store written by Save.
func Load(dir string) (*Store, error) {
	pairs, err := readManifest(filepath.Join(dir, constants.SeriesManifestFile))
	if err != nil {
		return nil, err
	}

	store := NewStore(pairs)
	for _, p := range pairs {
		t, err := readTable(filepath.Join(dir, TableFile(p)))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
		if err := store.set(p, t); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func readManifest(path string) ([]Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var entries [][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w: %w", ErrMalformedTable, err)
	}

	pairs := make([]Pair, 0, len(entries))
	seen := make(map[Pair]bool, len(entries))
	for i, e := range entries {
		if len(e) != 2 {
			return nil, fmt.Errorf("manifest entry %d has %d fields, want 2: %w", i, len(e), ErrMalformedTable)
		}
		el, err := grid.ParseElement(e[0])
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		p := Pair{Element: el, Quantity: grid.Quantity(e[1])}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		if seen[p] {
			return nil, fmt.Errorf("manifest repeats %s: %w", p, ErrMalformedTable)
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func tableSchema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(columns)+1)
	fields = append(fields, arrow.Field{Name: stepColumn, Type: arrow.PrimitiveTypes.Int64})
	for _, name := range columns {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64})
	}
	return arrow.NewSchema(fields, nil)
}

func writeTable(path string, t *Table) error {
	schema := tableSchema(t.Columns)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	steps := b.Field(0).(*array.Int64Builder)
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values for %d columns: %w", i, len(row), len(t.Columns), ErrMalformedTable)
		}
		steps.Append(int64(i))
		for j, v := range row {
			b.Field(j + 1).(*array.Float64Builder).Append(v)
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f, schema, csv.WithHeader(true))
	if err := w.Write(rec); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readTable parses a table file. The header is read first to learn the
// entity columns, then the body goes through the Arrow reader with a schema
// built from it.
func readTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := stdcsv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w: %w", ErrMalformedTable, err)
	}
	if len(header) == 0 || header[0] != stepColumn {
		return nil, fmt.Errorf("first column must be %q: %w", stepColumn, ErrMalformedTable)
	}
	columns := header[1:]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	r := csv.NewReader(f, tableSchema(columns), csv.WithHeader(true), csv.WithChunk(-1))
	defer r.Release()

	t := &Table{Columns: append([]string(nil), columns...)}
	for r.Next() {
		rec := r.Record()
		stepCol, ok := rec.Column(0).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("step column is not integer: %w", ErrMalformedTable)
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			want := int64(len(t.Rows))
			if stepCol.IsNull(i) || stepCol.Value(i) != want {
				return nil, fmt.Errorf("step column must count 0..n-1, row %d is not %d: %w", len(t.Rows), want, ErrMalformedTable)
			}
			row := make([]float64, len(columns))
			for j := range columns {
				col := rec.Column(j + 1).(*array.Float64)
				if col.IsNull(i) {
					return nil, fmt.Errorf("empty value for %s at step %d: %w", columns[j], want, ErrMalformedTable)
				}
				row[j] = col.Value(i)
			}
			t.Rows = append(t.Rows, row)
		}
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTable, err)
	}
	return t, nil
}
