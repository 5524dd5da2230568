package engine

// Mode selects which steps a run request targets.
type Mode string

const (
	// ModeAll runs every step; optional steps join only via Include.
	ModeAll Mode = "all"
	// ModeSteps runs exactly the named steps.
	ModeSteps Mode = "steps"
	// ModeFrom runs the named step and everything downstream of it.
	ModeFrom Mode = "from"
)

// Request describes one run. Parallel and MaxWorkers, when set, override the
// configuration document's execution block.
type Request struct {
	Mode  Mode
	Names []string
	From  string
	// Include names optional steps to pull into the selection.
	Include []string
	DryRun  bool

	Parallel   *bool
	MaxWorkers int
}
