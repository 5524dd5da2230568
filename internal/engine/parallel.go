package engine

import (
	"context"

	"github.com/vk/pipegrid/internal/ctxlog"
)

// runParallel drives a bounded worker pool from a single coordinator loop.
// The coordinator is the only writer of aggregate state; workers execute one
// process each and report back over a channel. Eligible steps dispatch in
// declaration order, which makes dispatch deterministic for a fixed pool
// size and matches dry-run output.
func (r *run) runParallel(ctx context.Context, workers int) {
	logger := ctxlog.FromContext(ctx)

	type doneEvent struct {
		name   string
		status Status
	}
	doneCh := make(chan doneEvent)
	running := make(map[string]bool)
	cancelled := false

	for {
		if !cancelled {
			for _, name := range r.result.Order {
				if len(running) >= workers {
					break
				}
				if r.result.Steps[name].Status != StatusPending {
					continue
				}
				if !r.eligible(name, running) {
					continue
				}

				running[name] = true
				r.setStatus(name, StatusRunning)
				step := r.engine.graph.Step(name)
				logger.Debug("Dispatching step to worker.", "step", name)
				go func() {
					doneCh <- doneEvent{name: step.Name, status: r.execute(ctx, step)}
				}()
			}
		}

		if len(running) == 0 {
			break
		}

		if cancelled {
			ev := <-doneCh
			delete(running, ev.name)
			r.setStatus(ev.name, ev.status)
			continue
		}

		select {
		case ev := <-doneCh:
			delete(running, ev.name)
			r.setStatus(ev.name, ev.status)
			if ev.status == StatusFailed || ev.status == StatusCancelled {
				r.skipDescendants(ev.name)
			}
		case <-ctx.Done():
			// Worker contexts are children of ctx: every running
			// process group is already being terminated. Drain the
			// in-flight events, then stop dispatching for good.
			cancelled = true
		}
	}

	if ctx.Err() != nil {
		for _, name := range r.result.Order {
			if r.result.Steps[name].Status == StatusPending {
				r.setStatus(name, StatusCancelled)
			}
		}
	}
}

// eligible reports whether a step may be dispatched now: every selected
// ancestor completed, and no output conflict with a currently running step.
// Ancestors outside the selection are the user's responsibility (suffix and
// named runs assume their inputs already exist).
func (r *run) eligible(name string, running map[string]bool) bool {
	for ancestor := range r.engine.graph.Ancestors(name) {
		if !r.selected[ancestor] {
			continue
		}
		if r.result.Steps[ancestor].Status != StatusCompleted {
			return false
		}
	}
	for other := range running {
		if r.engine.graph.OutputConflict(name, other) {
			return false
		}
	}
	return true
}
