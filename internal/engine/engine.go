package engine

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/expand"
)

// Engine executes an expanded pipeline over its dependency graph. One engine
// serves one pipeline; each call to Run is an independent run with its own
// outcome state.
type Engine struct {
	graph    *dag.Graph
	pipeline *expand.Pipeline
	runner   Runner
	notifier Notifier

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner replaces the default local process runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithNotifier attaches a live status event consumer.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// New creates an engine for the given graph and pipeline.
func New(graph *dag.Graph, pipeline *expand.Pipeline, opts ...Option) *Engine {
	e := &Engine{
		graph:    graph,
		pipeline: pipeline,
		runner:   &LocalRunner{},
		notifier: NopNotifier{},
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CancelStep terminates the named step's process group if the step is
// currently running. Siblings are unaffected; the step's descendants are
// marked skipped by the scheduler when the cancellation surfaces.
func (e *Engine) CancelStep(name string) {
	e.mu.Lock()
	cancel, ok := e.cancels[name]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Engine) registerCancel(name string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancels[name] = cancel
	e.mu.Unlock()
}

func (e *Engine) unregisterCancel(name string) {
	e.mu.Lock()
	delete(e.cancels, name)
	e.mu.Unlock()
}

// Run executes the steps selected by the request, honoring dependency order.
// Cancelling ctx cancels the whole run: every running process group is
// terminated and no further step starts. Per-step execution failures are
// recorded in the result, not returned; the error return covers selection
// problems only.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	order, selected, err := e.selectSteps(req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:    uuid.NewString(),
		Steps: make(map[string]*StepResult, len(order)),
		Order: order,
	}
	for _, name := range order {
		result.Steps[name] = &StepResult{Name: name, Status: StatusPending}
	}

	r := &run{engine: e, result: result, selected: selected}

	parallel := e.pipeline.Execution.Parallel
	if req.Parallel != nil {
		parallel = *req.Parallel
	}
	workers := req.MaxWorkers
	if workers <= 0 {
		workers = e.pipeline.Execution.MaxWorkers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger.Info("Starting run.", "run_id", result.ID, "steps", len(order),
		"parallel", parallel, "workers", workers)

	if parallel {
		r.runParallel(ctx, workers)
	} else {
		r.runSequential(ctx)
	}

	result.Status = r.outcome(ctx)
	logger.Info("Run finished.", "run_id", result.ID, "status", result.Status)
	return result, nil
}

// run is the per-run execution context: outcome state owned by the
// coordinator, never shared mutable state between workers.
type run struct {
	engine   *Engine
	result   *Result
	selected map[string]bool
}

// setStatus records a transition and emits it synchronously.
func (r *run) setStatus(name string, status Status) {
	r.result.Steps[name].Status = status
	r.engine.notifier.StepStatus(name, status)
}

// skipDescendants marks every still-pending selected descendant of name as
// skipped. Skipped steps are never attempted and never occupy a worker.
func (r *run) skipDescendants(name string) {
	for _, candidate := range r.result.Order {
		if _, isDesc := r.engine.graph.Descendants(name)[candidate]; !isDesc {
			continue
		}
		if r.result.Steps[candidate].Status == StatusPending {
			r.setStatus(candidate, StatusSkipped)
		}
	}
}

// execute spawns one step's process and classifies its outcome. It is called
// by the coordinator in sequential mode and by workers in parallel mode;
// each step's result record has exactly one writer.
func (r *run) execute(ctx context.Context, step *expand.Step) Status {
	res := r.result.Steps[step.Name]

	argv, err := BuildCommand(r.engine.pipeline, step)
	if err != nil {
		res.Err = err
		res.ExitCode = -1
		return StatusFailed
	}

	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.engine.registerCancel(step.Name, cancel)
	defer r.engine.unregisterCancel(step.Name)

	stdout := io.MultiWriter(&res.Stdout, outputWriter{step.Name, r.engine.notifier})
	stderr := io.MultiWriter(&res.Stderr, outputWriter{step.Name, r.engine.notifier})

	exit, runErr := r.engine.runner.Run(stepCtx, argv, stdout, stderr)
	res.ExitCode = exit

	if stepCtx.Err() != nil {
		return StatusCancelled
	}
	if runErr != nil {
		res.Err = runErr
		return StatusFailed
	}
	if exit != 0 {
		res.Err = &StepExecutionError{Step: step.Name, ExitCode: exit}
		return StatusFailed
	}
	return StatusCompleted
}

// outcome derives the whole-run status: cancelled on global cancellation,
// failed if any non-skipped step failed, completed otherwise. A single
// cancelled step does not fail the run; it is recorded distinctly and must
// be explicitly re-run.
func (r *run) outcome(ctx context.Context) RunStatus {
	if ctx.Err() != nil {
		return RunCancelled
	}
	for _, res := range r.result.Steps {
		if res.Status == StatusFailed {
			return RunFailed
		}
	}
	return RunCompleted
}
