package engine

import "context"

// Invocation is one fully resolved command line, labeled by its step name.
// Names synthesized by expansion carry their per-pass or per-item labels.
type Invocation struct {
	Step string
	Argv []string
}

// DryRun performs the same selection and command construction as Run without
// spawning anything, returning the invocations in execution order. The
// output is a pure function of the pipeline and request: invoking it twice
// on an unchanged configuration yields identical listings.
func (e *Engine) DryRun(ctx context.Context, req Request) ([]Invocation, error) {
	order, _, err := e.selectSteps(req)
	if err != nil {
		return nil, err
	}

	invocations := make([]Invocation, 0, len(order))
	for _, name := range order {
		argv, err := BuildCommand(e.pipeline, e.graph.Step(name))
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, Invocation{Step: name, Argv: argv})
	}
	return invocations, nil
}
