package engine

// Notifier receives live status transitions and raw output chunks, emitted
// synchronously with the per-step state machine. Implementations must be
// safe for concurrent use: in parallel mode output chunks arrive from worker
// goroutines.
type Notifier interface {
	StepStatus(name string, status Status)
	StepOutput(name string, chunk []byte)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) StepStatus(string, Status) {}
func (NopNotifier) StepOutput(string, []byte) {}

// outputWriter forwards a step's raw output to the notifier, tagged by step
// name, while the engine separately captures it.
type outputWriter struct {
	name     string
	notifier Notifier
}

func (w outputWriter) Write(p []byte) (int, error) {
	w.notifier.StepOutput(w.name, p)
	return len(p), nil
}
