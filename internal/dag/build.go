package dag

import (
	"context"
	"fmt"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/expand"
)

// Build constructs a validated dependency graph from an expanded pipeline.
// It enforces the single-producer invariant, rejects references to unknown
// data keys and fails on cycles before any process can spawn.
func Build(ctx context.Context, pipeline *expand.Pipeline) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.", "steps", len(pipeline.Steps))

	g := &Graph{
		steps:       pipeline.Steps,
		nodes:       make(map[string]*node, len(pipeline.Steps)),
		producers:   make(map[string]string),
		consumers:   make(map[string][]string),
		ancestors:   make(map[string]map[string]struct{}),
		descendants: make(map[string]map[string]struct{}),
	}

	for _, s := range pipeline.Steps {
		g.nodes[s.Name] = &node{
			step:       s,
			deps:       make(map[string]*node),
			dependents: make(map[string]*node),
		}
	}

	// First pass: record the unique producer of every data key.
	for _, s := range pipeline.Steps {
		for _, key := range producedKeys(s) {
			if _, ok := pipeline.Data[key]; !ok {
				return nil, &ValidationError{
					Kind:    UnknownReference,
					Subject: s.Name,
					Detail:  fmt.Sprintf("produces unknown data node %q", key),
				}
			}
			if existing, ok := g.producers[key]; ok && existing != s.Name {
				return nil, &ValidationError{
					Kind:    DuplicateProducer,
					Subject: key,
					Detail:  fmt.Sprintf("produced by both %q and %q", existing, s.Name),
				}
			}
			g.producers[key] = s.Name
		}
	}

	// Second pass: consumers and edges. A key without a producer is
	// external, pre-existing data and contributes no edge.
	for _, s := range pipeline.Steps {
		for _, in := range s.Inputs {
			if _, ok := pipeline.Data[in.Data]; !ok {
				return nil, &ValidationError{
					Kind:    UnknownReference,
					Subject: s.Name,
					Detail:  fmt.Sprintf("input %q references unknown data node %q", in.Name, in.Data),
				}
			}
			g.consumers[in.Data] = append(g.consumers[in.Data], s.Name)
			if producer, ok := g.producers[in.Data]; ok && producer != s.Name {
				g.addEdge(producer, s.Name)
			}
		}
		for _, after := range s.After {
			if _, ok := g.nodes[after]; !ok {
				return nil, &ValidationError{
					Kind:    UnknownReference,
					Subject: s.Name,
					Detail:  fmt.Sprintf("ordering dependency on unknown step %q", after),
				}
			}
			g.addEdge(after, s.Name)
		}
	}
	logger.Debug("Build: node linking complete.")

	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	logger.Debug("Build: cycle detection passed.")

	return g, nil
}

func (g *Graph) addEdge(from, to string) {
	fromNode := g.nodes[from]
	toNode := g.nodes[to]
	fromNode.dependents[to] = toNode
	toNode.deps[from] = fromNode
}

// detectCycle runs a depth-first search with the classic three-color
// scheme. Hitting a grey node means the current path loops; the path suffix
// from that node is the cycle's participant list.
func (g *Graph) detectCycle() error {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		stack = append(stack, name)

		for _, dependent := range sortedKeys(g.nodes[name].dependents) {
			switch color[dependent] {
			case grey:
				for i, onPath := range stack {
					if onPath == dependent {
						cycle = append([]string{}, stack[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(dependent) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, s := range g.steps {
		if color[s.Name] == white && visit(s.Name) {
			return &CycleError{Participants: cycle}
		}
	}
	return nil
}
