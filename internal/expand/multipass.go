package expand

import (
	"context"
	"fmt"
	"path"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// expandMultiPass instantiates a multipass group's template steps once per
// pass. Data keys produced inside the group are suffixed with the pass name;
// the final pass additionally registers its outputs under the unsuffixed
// keys, which is what downstream steps reference. Chain bindings wire one
// pass's output into the next pass's input; the first pass omits chained
// inputs entirely.
func (e *expander) expandMultiPass(ctx context.Context, mp *config.MultiPass, steps map[string]*config.Step) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Expanding multipass group.", "group", mp.Name, "passes", len(mp.Passes))

	if len(mp.Passes) == 0 {
		return &config.ConfigError{Kind: config.EmptyPasses, Subject: mp.Name}
	}

	// Keys produced anywhere inside the group are subject to suffixing;
	// external keys never are.
	produced := make(map[string]bool)
	for _, name := range mp.Steps {
		for _, out := range steps[name].Outputs {
			produced[out.Data] = true
		}
	}

	chainsTo := make(map[string][]config.ChainBinding)
	for _, b := range mp.Chain {
		chainsTo[b.ToStep] = append(chainsTo[b.ToStep], b)
	}

	for i, pass := range mp.Passes {
		final := i == len(mp.Passes)-1
		suffix := "_" + pass.Name
		keyFor := func(k string) string {
			if produced[k] {
				return k + suffix
			}
			return k
		}
		overlay := NewOverlay(e.model.Parameters, pass.Params)

		// Register every suffixed data node for this pass up front, so
		// argument references between template steps resolve regardless
		// of instantiation order.
		for _, name := range mp.Steps {
			for _, out := range steps[name].Outputs {
				orig := e.model.Data[out.Data]
				suffixed := &config.DataNode{
					Key:  out.Data + suffix,
					Path: suffixPath(orig.Path, pass.Name),
					Type: orig.Type,
				}
				if existing, exists := e.out.Data[suffixed.Key]; exists && existing.Path != suffixed.Path {
					return &config.ConfigError{
						Kind:    config.DuplicateKey,
						Subject: mp.Name,
						Detail:  fmt.Sprintf("suffixed data key %q collides with an existing node", suffixed.Key),
					}
				}
				e.registerData(suffixed)
				if final {
					// Alias the unsuffixed key to the final pass's
					// output so external consumers resolve to it.
					e.registerData(&config.DataNode{Key: out.Data, Path: suffixed.Path, Type: orig.Type})
				}
			}
		}

		for _, name := range mp.Steps {
			t := steps[name]
			if t.Disabled {
				continue
			}

			inst := &Step{
				Name:     mp.Name + "/" + pass.Name + "/" + name,
				Task:     t.Task,
				Optional: t.Optional,
			}

			// Resolve chain bindings targeting this step. Pass 1 omits
			// the chained input entirely; absence, not an empty value,
			// is the signal for the executable to use its default.
			omit := make(map[string]bool)
			chained := make(map[string]string)
			for _, b := range chainsTo[name] {
				if i == 0 {
					omit[b.ToInput] = true
					continue
				}
				producerKey := templateOutputKey(steps[b.FromStep], b.FromOutput)
				chained[b.ToInput] = producerKey + "_" + mp.Passes[i-1].Name
			}

			for _, in := range t.Inputs {
				if omit[in.Name] {
					continue
				}
				if key, ok := chained[in.Name]; ok {
					inst.Inputs = append(inst.Inputs, Input{Name: in.Name, Data: key})
					delete(chained, in.Name)
					continue
				}
				inst.Inputs = append(inst.Inputs, Input{Name: in.Name, Data: keyFor(in.Data)})
			}
			// Chained inputs the template never declared append after the
			// declared ones, in chain declaration order.
			for _, b := range chainsTo[name] {
				if key, ok := chained[b.ToInput]; ok {
					inst.Inputs = append(inst.Inputs, Input{Name: b.ToInput, Data: key})
					delete(chained, b.ToInput)
				}
			}

			for _, out := range t.Outputs {
				inst.Outputs = append(inst.Outputs, Output{Flag: out.Name, Data: out.Data + suffix})
				if final {
					inst.AlsoProduces = append(inst.AlsoProduces, out.Data)
				}
			}

			args, err := e.resolveArgs(inst.Name, t.Args, overlay, keyFor)
			if err != nil {
				return err
			}
			inst.Args = args

			if err := e.emit(inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// templateOutputKey resolves an output flag of a template step to the data
// key it produces. Chain bindings are validated at parse time, so the flag is
// known to exist.
func templateOutputKey(step *config.Step, flag string) string {
	for _, out := range step.Outputs {
		if out.Name == flag {
			return out.Data
		}
	}
	return ""
}

// suffixPath inserts _pass before the path's extension: work/draft.txt with
// pass r1 becomes work/draft_r1.txt.
func suffixPath(p, pass string) string {
	ext := path.Ext(p)
	return p[:len(p)-len(ext)] + "_" + pass + ext
}
