package runlog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCorruptLog means the file does not parse as a header plus complete,
	// well-formed rows. Such a file is never appended to.
	ErrCorruptLog = errors.New("corrupt result log")

	// ErrHeaderWritten is returned by a second WriteHeader call or by
	// WriteHeader on a log that already holds rows.
	ErrHeaderWritten = errors.New("result log header already written")

	// ErrNoHeader is returned by WriteRow before the header exists.
	ErrNoHeader = errors.New("result log has no header")

	// ErrStepOrder is returned when a row's step does not exceed the last
	// logged step.
	ErrStepOrder = errors.New("steps must be strictly increasing")

	// ErrSchemaMismatch is matched by every SchemaMismatchError.
	ErrSchemaMismatch = errors.New("result columns do not match log header")

	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("result log is closed")
)

// SchemaMismatchError reports a column set that differs from the header.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	missing, unexpected := diffColumns(e.Expected, e.Got)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(unexpected, ", "))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%v: header order [%s], got [%s]", ErrSchemaMismatch,
			strings.Join(e.Expected, ", "), strings.Join(e.Got, ", "))
	}
	return fmt.Sprintf("%v: %s", ErrSchemaMismatch, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrSchemaMismatch) match.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

func diffColumns(expected, got []string) (missing, unexpected []string) {
	want := make(map[string]bool, len(expected))
	for _, c := range expected {
		want[c] = true
	}
	have := make(map[string]bool, len(got))
	for _, c := range got {
		have[c] = true
		if !want[c] {
			unexpected = append(unexpected, c)
		}
	}
	for _, c := range expected {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing, unexpected
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptLog, fmt.Sprintf(format, args...))
}
