package constants

// RunStatus is the lifecycle state of a run in the catalog.
type RunStatus string

const (
	// RunRunning means steps are still being logged.
	RunRunning RunStatus = "running"

	// RunComplete means every step up to the stop bound was logged.
	RunComplete RunStatus = "complete"

	// RunFailed means a step returned an error.
	RunFailed RunStatus = "failed"

	// RunInterrupted means the run was cancelled between steps.
	RunInterrupted RunStatus = "interrupted"
)

// Valid returns true if the status is a recognized value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunComplete, RunFailed, RunInterrupted:
		return true
	}
	return false
}

// Terminal reports whether no further progress is expected.
func (s RunStatus) Terminal() bool {
	return s == RunComplete || s == RunFailed || s == RunInterrupted
}

func (s RunStatus) String() string {
	return string(s)
}
