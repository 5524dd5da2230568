package expand

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// Options carries expansion settings.
type Options struct {
	// Root is the pipeline root directory; every data-node path is
	// resolved relative to it.
	Root string
}

// expander accumulates the derived pipeline while walking the model.
type expander struct {
	model *config.Model
	opts  Options
	out   *Pipeline

	base      *Overlay // global parameters, no override
	declIndex int
}

// Expand eliminates loop steps and multipass groups, producing a flat
// pipeline of concrete steps. The model is never mutated.
func Expand(ctx context.Context, model *config.Model, opts Options) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Expand: starting pipeline expansion.")

	e := &expander{
		model: model,
		opts:  opts,
		out: &Pipeline{
			Data:      make(map[string]*config.DataNode),
			Execution: model.Execution,
		},
		base: NewOverlay(model.Parameters, nil),
	}

	// Data nodes carry over untouched; pass suffixing adds derived nodes
	// later without mutating these.
	for _, key := range model.DataOrder {
		node := model.Data[key]
		e.registerData(&config.DataNode{Key: key, Path: node.Path, Type: node.Type})
	}

	// Template steps consumed by a multipass group are instantiated per
	// pass and do not survive as standalone steps.
	consumed := make(map[string]bool)
	for _, entry := range model.Entries {
		if mp, ok := entry.(*config.MultiPass); ok {
			for _, name := range mp.Steps {
				consumed[name] = true
			}
		}
	}

	steps := model.StepsByName()
	for _, entry := range model.Entries {
		var err error
		switch c := entry.(type) {
		case *config.Step:
			if c.Disabled || consumed[c.Name] {
				continue
			}
			err = e.emitPlainStep(c)
		case *config.Group:
			// Visual clustering only; no scheduling meaning.
		case *config.Loop:
			err = e.expandLoop(ctx, c)
		case *config.MultiPass:
			err = e.expandMultiPass(ctx, c, steps)
		}
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Expand: expansion complete.",
		"steps", len(e.out.Steps), "data_nodes", len(e.out.Data))
	return e.out, nil
}

// registerData adds a data node to the derived table. Registering an existing
// key replaces the node; callers that must not collide check first.
func (e *expander) registerData(node *config.DataNode) {
	if _, exists := e.out.Data[node.Key]; !exists {
		e.out.DataOrder = append(e.out.DataOrder, node.Key)
	}
	e.out.Data[node.Key] = node
}

// emit appends a concrete step, assigning its declaration index and
// enforcing post-expansion name uniqueness.
func (e *expander) emit(step *Step) error {
	for _, existing := range e.out.Steps {
		if existing.Name == step.Name {
			return &config.ConfigError{
				Kind:    config.DuplicateKey,
				Subject: step.Name,
				Detail:  "expanded step name collides with an existing step",
			}
		}
	}
	step.DeclIndex = e.declIndex
	e.declIndex++
	e.out.Steps = append(e.out.Steps, step)
	return nil
}

func (e *expander) emitPlainStep(c *config.Step) error {
	args, err := e.resolveArgs(c.Name, c.Args, e.base, nil)
	if err != nil {
		return err
	}

	step := &Step{
		Name:     c.Name,
		Task:     c.Task,
		Optional: c.Optional,
		Args:     args,
	}
	for _, in := range c.Inputs {
		step.Inputs = append(step.Inputs, Input{Name: in.Name, Data: in.Data})
	}
	for _, out := range c.Outputs {
		step.Outputs = append(step.Outputs, Output{Flag: out.Name, Data: out.Data})
	}
	return e.emit(step)
}

// resolveArgs turns classified argument values into concrete scalars.
// Parameter references resolve through the overlay; data references resolve
// to the referenced node's path, with keyFor (when non-nil) first rewriting
// keys produced inside a multipass group to their suffixed form.
func (e *expander) resolveArgs(subject string, args []config.Arg, ov *Overlay, keyFor func(string) string) ([]Arg, error) {
	var out []Arg
	for _, arg := range args {
		var v cty.Value
		switch arg.Value.Kind {
		case config.RefLiteral:
			v = arg.Value.Literal
		case config.RefParam:
			resolved, ok := ov.Lookup(arg.Value.Ref)
			if !ok {
				return nil, &config.ConfigError{
					Kind:    config.UnknownReference,
					Subject: subject,
					Detail:  fmt.Sprintf("arg %q references unknown parameter %q", arg.Flag, arg.Value.Ref),
				}
			}
			v = resolved
		case config.RefData:
			key := arg.Value.Ref
			if keyFor != nil {
				key = keyFor(key)
			}
			path, ok := e.out.Path(key)
			if !ok {
				return nil, &config.ConfigError{
					Kind:    config.UnknownReference,
					Subject: subject,
					Detail:  fmt.Sprintf("arg %q references unknown data node %q", arg.Flag, key),
				}
			}
			v = cty.StringVal(path)
		}
		out = append(out, Arg{Flag: arg.Flag, Value: v})
	}
	return out, nil
}
