package engine

import "context"

// runSequential executes the selection one process at a time, in topological
// order. A failure or cancellation marks the step's selected descendants
// skipped before they are reached; a global cancellation marks every
// remaining pending step cancelled.
func (r *run) runSequential(ctx context.Context) {
	for _, name := range r.result.Order {
		res := r.result.Steps[name]

		if ctx.Err() != nil {
			if res.Status == StatusPending {
				r.setStatus(name, StatusCancelled)
			}
			continue
		}
		if res.Status != StatusPending {
			// Skipped by an upstream failure.
			continue
		}

		r.setStatus(name, StatusRunning)
		status := r.execute(ctx, r.engine.graph.Step(name))
		r.setStatus(name, status)

		if status == StatusFailed || status == StatusCancelled {
			r.skipDescendants(name)
		}
	}
}
