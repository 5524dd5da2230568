package engine

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/expand"
)

// BuildCommand assembles the invocation for a step: the task executable,
// positional input paths in declaration order, output flags with their paths,
// then argument flags. Boolean true arguments emit as bare flags; false ones
// are omitted entirely. The function is pure: repeated calls over an
// unchanged pipeline yield identical command lines.
func BuildCommand(pipeline *expand.Pipeline, step *expand.Step) ([]string, error) {
	argv := []string{step.Task}

	for _, in := range step.Inputs {
		path, ok := pipeline.Path(in.Data)
		if !ok {
			return nil, fmt.Errorf("step %q: input %q references unknown data node %q", step.Name, in.Name, in.Data)
		}
		argv = append(argv, path)
	}

	for _, out := range step.Outputs {
		path, ok := pipeline.Path(out.Data)
		if !ok {
			return nil, fmt.Errorf("step %q: output %q references unknown data node %q", step.Name, out.Flag, out.Data)
		}
		argv = append(argv, out.Flag, path)
	}

	for _, arg := range step.Args {
		if arg.Value.Type() == cty.Bool {
			if arg.Value.True() {
				argv = append(argv, arg.Flag)
			}
			continue
		}
		rendered, err := renderScalar(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("step %q: arg %q: %w", step.Name, arg.Flag, err)
		}
		argv = append(argv, arg.Flag, rendered)
	}

	return argv, nil
}

// renderScalar formats a concrete scalar for the command line. Numbers render
// without spurious trailing zeros so 4 stays "4".
func renderScalar(v cty.Value) (string, error) {
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		return v.AsBigFloat().Text('f', -1), nil
	default:
		return "", fmt.Errorf("unsupported argument type %s", v.Type().FriendlyName())
	}
}
