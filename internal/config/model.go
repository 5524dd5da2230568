package config

import (
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified representation of an entire pipeline configuration
// document. It is constructed once per run and never mutated afterwards;
// parametric constructs (loops, multipass groups) survive here untouched and
// are eliminated by the expand package.
type Model struct {
	// Data holds every declared data node, keyed by its unique key.
	Data map[string]*DataNode
	// DataOrder preserves the declaration order of data keys.
	DataOrder []string
	// Parameters holds the global scalar parameters.
	Parameters map[string]cty.Value
	// Entries is the ordered pipeline section: steps, groups, multipass
	// groups and loop steps in declaration order.
	Entries []Entry
	// Execution carries the document's execution settings.
	Execution Execution
}

// Entry is one ordered element of the pipeline section. Exactly the concrete
// types *Step, *Group, *MultiPass and *Loop implement it.
type Entry interface {
	entryName() string
}

// DataNode is a named file-system path shared between steps. Paths are
// relative to the pipeline root. The Type tag is semantic only; it never
// influences execution.
type DataNode struct {
	Key  string
	Path string
	Type string
}

// RefKind discriminates the classified reference forms a configuration value
// can take.
type RefKind string

const (
	// RefLiteral is a plain scalar literal.
	RefLiteral RefKind = "literal"
	// RefParam is a `param.<name>` reference.
	RefParam RefKind = "param"
	// RefData is a `data.<key>` reference.
	RefData RefKind = "data"
)

// Value is the classified form of an argument value: a tagged union of a
// literal scalar, a parameter reference or a data reference. References are
// classified at parse time and resolved during expansion, never ad hoc inside
// string formatting.
type Value struct {
	Kind    RefKind
	Literal cty.Value // set when Kind == RefLiteral
	Ref     string    // parameter name or data key otherwise
}

// LiteralValue builds a literal Value.
func LiteralValue(v cty.Value) Value {
	return Value{Kind: RefLiteral, Literal: v}
}

// ParamRef builds a parameter-reference Value.
func ParamRef(name string) Value {
	return Value{Kind: RefParam, Ref: name}
}

// DataRef builds a data-reference Value.
func DataRef(key string) Value {
	return Value{Kind: RefData, Ref: key}
}

// Binding attaches a named step input or a flagged step output to a data key.
type Binding struct {
	// Name is the input name or the output flag.
	Name string
	// Data is the referenced data-node key.
	Data string
}

// Arg is one argument flag with its classified value.
type Arg struct {
	Flag  string
	Value Value
}

// Step is one external-process invocation with declared inputs, outputs and
// arguments. Input order is semantically significant: positional arguments
// are constructed in declaration order.
type Step struct {
	Name     string
	Task     string
	Inputs   []Binding
	Outputs  []Binding
	Args     []Arg
	Optional bool
	Disabled bool

	// DeclIndex is the step's position in the pipeline section, used for
	// deterministic tie-breaking downstream.
	DeclIndex int
}

func (s *Step) entryName() string { return s.Name }

// Group is a named, non-semantic bag of step names used for visual
// clustering. It carries no dependency or scheduling meaning and never
// reaches the dependency graph.
type Group struct {
	Name  string
	Steps []string

	DeclIndex int
}

func (g *Group) entryName() string { return g.Name }

// Pass is one sequential iteration of a multipass group with its own
// parameter overlay.
type Pass struct {
	Name   string
	Params map[string]cty.Value
}

// ChainBinding links one pass's output to the next pass's input.
type ChainBinding struct {
	FromStep   string
	FromOutput string
	ToStep     string
	ToInput    string
}

// MultiPass is an ordered list of passes over a template step list. The
// templates are ordinary step blocks named in Steps; expansion consumes them
// and emits one instance per pass.
type MultiPass struct {
	Name   string
	Steps  []string
	Passes []Pass
	Chain  []ChainBinding

	DeclIndex int
}

func (m *MultiPass) entryName() string { return m.Name }

// Loop is a step template instantiated once per matching file in the `over`
// data folder, writing results into the `into` data folder.
type Loop struct {
	Name       string
	Task       string
	Over       string // data key of the source folder
	Into       string // data key of the destination folder
	Filter     string // optional glob over file names
	OutputFlag string
	Parallel   bool
	Args       []Arg

	DeclIndex int
}

func (l *Loop) entryName() string { return l.Name }

// Execution carries the document-level execution settings. Either value may
// be overridden per run request.
type Execution struct {
	Parallel   bool
	MaxWorkers int
}

// StepsByName returns every step entry keyed by name, including multipass
// template steps.
func (m *Model) StepsByName() map[string]*Step {
	out := make(map[string]*Step)
	for _, e := range m.Entries {
		if s, ok := e.(*Step); ok {
			out[s.Name] = s
		}
	}
	return out
}
