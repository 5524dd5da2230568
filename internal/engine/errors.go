package engine

import "fmt"

// StepExecutionError records a non-zero exit from a step's external
// executable. It is local to the step: siblings keep running, descendants are
// marked skipped.
type StepExecutionError struct {
	Step     string
	ExitCode int
}

// Error implements the error interface.
func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q exited with code %d", e.Step, e.ExitCode)
}
