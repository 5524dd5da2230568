package engine

import "fmt"

// selectSteps computes the runnable subset for a request and returns it in
// topological order alongside the selection set. Optional steps are excluded
// from full and suffix selections unless explicitly named or included.
func (e *Engine) selectSteps(req Request) ([]string, map[string]bool, error) {
	include := make(map[string]bool, len(req.Include))
	for _, name := range req.Include {
		if e.graph.Step(name) == nil {
			return nil, nil, fmt.Errorf("include references unknown step %q", name)
		}
		include[name] = true
	}

	selected := make(map[string]bool)
	switch req.Mode {
	case ModeAll, "":
		for _, s := range e.graph.Steps() {
			if !s.Optional || include[s.Name] {
				selected[s.Name] = true
			}
		}

	case ModeSteps:
		if len(req.Names) == 0 {
			return nil, nil, fmt.Errorf("steps mode requires at least one step name")
		}
		for _, name := range req.Names {
			if e.graph.Step(name) == nil {
				return nil, nil, fmt.Errorf("unknown step %q", name)
			}
			selected[name] = true
		}

	case ModeFrom:
		if e.graph.Step(req.From) == nil {
			return nil, nil, fmt.Errorf("unknown step %q", req.From)
		}
		selected[req.From] = true
		for name := range e.graph.Descendants(req.From) {
			s := e.graph.Step(name)
			if !s.Optional || include[name] {
				selected[name] = true
			}
		}

	default:
		return nil, nil, fmt.Errorf("unknown run mode %q", req.Mode)
	}

	var order []string
	for _, name := range e.graph.TopologicalOrder() {
		if selected[name] {
			order = append(order, name)
		}
	}
	return order, selected, nil
}
