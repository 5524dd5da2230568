package expand

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/config"
)

// Pipeline is the expanded form of a pipeline model: concrete steps only, no
// remaining parametric constructs. It is immutable once built; the engine
// reads it for the lifetime of a run.
type Pipeline struct {
	// Steps holds every concrete step in declaration order.
	Steps []*Step
	// Data maps every data-node key, including keys synthesized by
	// expansion, to its resolved node.
	Data map[string]*config.DataNode
	// DataOrder preserves registration order of data keys.
	DataOrder []string
	// Execution carries the document-level execution settings through to
	// the engine.
	Execution config.Execution
}

// Step is a fully concrete step instance. Names synthesized by expansion
// carry their origin as slash-separated labels (`loop/item`,
// `group/pass/step`).
type Step struct {
	Name     string
	Task     string
	Inputs   []Input
	Outputs  []Output
	Args     []Arg
	Optional bool

	// AlsoProduces lists data keys the step produces beyond its output
	// flags: the unsuffixed alias keys a final multipass instance
	// registers. They join the dependency graph but never the command
	// line.
	AlsoProduces []string

	// After lists explicit ordering predecessors that carry no data
	// relationship, used to chain sequential loop instances.
	After []string

	// DeclIndex orders steps for deterministic tie-breaking in the graph
	// and the engine.
	DeclIndex int
}

// Input binds a named, positional step input to a data-node key.
type Input struct {
	Name string
	Data string
}

// Output binds an output flag to the data-node key it produces.
type Output struct {
	Flag string
	Data string
}

// Arg is one argument flag with its concrete scalar value. Parameter and
// data references are already resolved; booleans surface as bare flags during
// command construction.
type Arg struct {
	Flag  string
	Value cty.Value
}

// Path resolves a data key to its path. The second return is false for
// unknown keys.
func (p *Pipeline) Path(key string) (string, bool) {
	node, ok := p.Data[key]
	if !ok {
		return "", false
	}
	return node.Path, true
}

// StepByName returns the named step, or nil.
func (p *Pipeline) StepByName(name string) *Step {
	for _, s := range p.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}
