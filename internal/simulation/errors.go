package simulation

import "fmt"

// StepError wraps a failure at one step. The log holds every step before it.
type StepError struct {
	Step int
	// Phase is "apply" when writing the step's inputs failed and "step" when
	// the step function failed.
	Phase string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
