// Package runlog implements the append-only result log of a simulation run.
//
// A log is a CSV file: a header line ",m1,m2,..." naming the metric columns,
// then one line "step,v1,v2,..." per completed step in strictly increasing
// step order. The step of the last line is the only record of how far a run
// got, so a run resumes at last step + 1 after any interruption.
//
// Every line goes to the file in a single write call. A process killed
// between writes leaves a file that still ends on a complete line.
package runlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// State classifies an existing log file.
type State int

const (
	// Fresh: no file or an empty file.
	Fresh State = iota
	// HeaderPending: a header and no rows.
	HeaderPending
	// Resuming: a header and at least one row.
	Resuming
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case HeaderPending:
		return "header_pending"
	case Resuming:
		return "resuming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// indexLabels are the accepted first header fields. Empty is what is written.
var indexLabels = map[string]bool{"": true, "step": true}

// Status is the classification of a log file.
type Status struct {
	Path     string   `json:"path"`
	State    State    `json:"state"`
	Columns  []string `json:"columns,omitempty"`
	Rows     int      `json:"rows"`
	LastStep int      `json:"last_step"`
}

// Inspect classifies the log at path without opening it for writing.
// LastStep is -1 when there are no rows.
func Inspect(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading result log: %w", err)
	}
	st, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	st.Path = path
	return st, nil
}

// parse validates the whole file. Any deviation from header plus complete
// rows is ErrCorruptLog.
func parse(data []byte) (*Status, error) {
	st := &Status{State: Fresh, LastStep: -1}
	if len(data) == 0 {
		return st, nil
	}
	if data[len(data)-1] != '\n' {
		return nil, corruptf("last line is not terminated")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, corruptf("reading header: %v", err)
	}
	if !indexLabels[header[0]] {
		return nil, corruptf("header starts with %q, want an empty index label", header[0])
	}
	columns := header[1:]
	if err := checkColumns(columns); err != nil {
		return nil, corruptf("header: %v", err)
	}
	st.Columns = append([]string(nil), columns...)
	st.State = HeaderPending

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corruptf("row %d: %v", st.Rows+1, err)
		}
		line, _ := r.FieldPos(0)
		if len(rec) != len(columns)+1 {
			return nil, corruptf("line %d has %d fields, want %d", line, len(rec), len(columns)+1)
		}
		step, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, corruptf("line %d: step %q is not an integer", line, rec[0])
		}
		if step < 0 || step <= st.LastStep {
			return nil, corruptf("line %d: step %d after step %d", line, step, st.LastStep)
		}
		for i, v := range rec[1:] {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return nil, corruptf("line %d: %s value %q is not a number", line, columns[i], v)
			}
		}
		st.LastStep = step
		st.Rows++
	}

	if st.Rows > 0 {
		st.State = Resuming
	}
	return st, nil
}

func checkColumns(columns []string) error {
	if len(columns) == 0 {
		return errors.New("no metric columns")
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" {
			return errors.New("empty column name")
		}
		if seen[c] {
			return fmt.Errorf("column %q repeated", c)
		}
		seen[c] = true
	}
	return nil
}

// formatLine renders one CSV record including its trailing newline.
func formatLine(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
