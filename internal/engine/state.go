package engine

import "bytes"

// Status is the per-step execution state. pending is initial; completed,
// failed, cancelled and skipped are terminal; running is the only
// intermediate state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	default:
		return false
	}
}

// RunStatus is the whole-run outcome.
type RunStatus string

const (
	// RunCompleted means every non-skipped selected step completed.
	RunCompleted RunStatus = "completed"
	// RunFailed means at least one non-skipped selected step failed.
	RunFailed RunStatus = "failed"
	// RunCancelled means a global cancellation interrupted the run.
	RunCancelled RunStatus = "cancelled"
)

// StepResult is the per-step outcome record. The buffers capture the step's
// streamed output; they are written by at most one worker and read only
// after the step reaches a terminal state.
type StepResult struct {
	Name     string
	Status   Status
	ExitCode int
	Err      error
	Stdout   bytes.Buffer
	Stderr   bytes.Buffer
}

// Result is the outcome of one run.
type Result struct {
	// ID uniquely identifies the run for the presentation layer.
	ID string
	// Status is the whole-run outcome.
	Status RunStatus
	// Steps holds the outcome of every selected step.
	Steps map[string]*StepResult
	// Order is the selected steps in execution (topological) order.
	Order []string
}
