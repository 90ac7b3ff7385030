package runlog

import (
	"fmt"
	"os"
	"slices"
	"strconv"
)

// Logger appends rows to one result log. It owns the file until Close.
type Logger struct {
	path    string
	f       *os.File
	state   State
	columns []string
	last    int

	// headerReady is set once rows may be written: the header was written
	// or verified in this session, or the file already held rows.
	headerReady bool
	closed      bool
}

// Open classifies the log at path and opens it for appending, creating it
// when missing. A corrupt file is rejected without being touched.
func Open(path string) (*Logger, error) {
	st, err := Inspect(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening result log: %w", err)
	}

	return &Logger{
		path:        path,
		f:           f,
		state:       st.State,
		columns:     st.Columns,
		last:        st.LastStep,
		headerReady: st.State == Resuming,
	}, nil
}

// With opens the log at path, calls fn, and closes the log whether fn
// returns normally, fails or panics.
func With(path string, fn func(*Logger) error) (err error) {
	l, err := Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(l)
}

// Path returns the file path.
func (l *Logger) Path() string { return l.path }

// State returns the classification made at Open.
func (l *Logger) State() State { return l.state }

// Columns returns the header columns, or nil while none are known.
func (l *Logger) Columns() []string {
	return slices.Clone(l.columns)
}

// LastStep returns the last logged step. ok is false when the log has no
// rows.
func (l *Logger) LastStep() (step int, ok bool) {
	return l.last, l.last >= 0
}

// WriteHeader fixes the metric columns. On a fresh log it writes the header
// line. On a log whose header exists without rows it checks that columns
// match the stored header and writes nothing. Any later call fails with
// ErrHeaderWritten.
func (l *Logger) WriteHeader(columns []string) error {
	if l.closed {
		return ErrClosed
	}
	if l.headerReady {
		return ErrHeaderWritten
	}
	if err := checkColumns(columns); err != nil {
		return fmt.Errorf("result log header: %w", err)
	}

	if l.state == HeaderPending {
		if !slices.Equal(l.columns, columns) {
			return &SchemaMismatchError{Expected: l.Columns(), Got: slices.Clone(columns)}
		}
		l.headerReady = true
		return nil
	}

	line, err := formatLine(append([]string{""}, columns...))
	if err != nil {
		return fmt.Errorf("formatting header: %w", err)
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	l.columns = slices.Clone(columns)
	l.headerReady = true
	return nil
}

// WriteRow appends one step. values must hold exactly the header columns.
func (l *Logger) WriteRow(step int, values map[string]float64) error {
	if l.closed {
		return ErrClosed
	}
	if !l.headerReady {
		return ErrNoHeader
	}
	if step < 0 || step <= l.last {
		return fmt.Errorf("step %d after step %d: %w", step, l.last, ErrStepOrder)
	}

	fields := make([]string, 0, len(l.columns)+1)
	fields = append(fields, strconv.Itoa(step))
	for _, c := range l.columns {
		v, ok := values[c]
		if !ok {
			return &SchemaMismatchError{Expected: l.Columns(), Got: keys(values)}
		}
		fields = append(fields, formatValue(v))
	}
	if len(values) != len(l.columns) {
		return &SchemaMismatchError{Expected: l.Columns(), Got: keys(values)}
	}

	line, err := formatLine(fields)
	if err != nil {
		return fmt.Errorf("formatting step %d: %w", step, err)
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("writing step %d: %w", step, err)
	}
	l.last = step
	return nil
}

// Close syncs and closes the file. Calling it again is a no-op.
func (l *Logger) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.f.Sync(); err != nil {
		l.f.Close()
		return fmt.Errorf("syncing result log: %w", err)
	}
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("closing result log: %w", err)
	}
	return nil
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
