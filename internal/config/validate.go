package config

import "strings"

// validate performs cross-reference checks on a fully decoded model. It never
// touches the file system; path existence is checked by external
// collaborators, not here.
func validate(model *Model) error {
	steps := make(map[string]*Step)
	names := make(map[string]bool)

	for _, entry := range model.Entries {
		name := entry.entryName()
		if name == "" {
			return errf(MissingField, "pipeline", "entry with empty name")
		}
		// The slash is reserved for names synthesized by expansion.
		if strings.Contains(name, "/") {
			return errf(TypeMismatch, name, "names must not contain '/'")
		}
		if names[name] {
			return errf(DuplicateKey, name, "pipeline entry declared twice")
		}
		names[name] = true
		if s, ok := entry.(*Step); ok {
			steps[s.Name] = s
		}
	}

	for _, entry := range model.Entries {
		var err error
		switch e := entry.(type) {
		case *Step:
			err = validateStep(model, e)
		case *Group:
			err = validateGroup(steps, e)
		case *MultiPass:
			err = validateMultiPass(steps, e)
		case *Loop:
			err = validateLoop(model, e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func validateStep(model *Model, step *Step) error {
	for _, in := range step.Inputs {
		if _, ok := model.Data[in.Data]; !ok {
			return errf(UnknownReference, step.Name, "input %q references unknown data node %q", in.Name, in.Data)
		}
	}
	for _, out := range step.Outputs {
		if _, ok := model.Data[out.Data]; !ok {
			return errf(UnknownReference, step.Name, "output %q references unknown data node %q", out.Name, out.Data)
		}
	}
	return validateArgs(model, step.Name, step.Args)
}

func validateArgs(model *Model, subject string, args []Arg) error {
	for _, arg := range args {
		switch arg.Value.Kind {
		case RefParam:
			if _, ok := model.Parameters[arg.Value.Ref]; !ok {
				return errf(UnknownReference, subject, "arg %q references unknown parameter %q", arg.Flag, arg.Value.Ref)
			}
		case RefData:
			if _, ok := model.Data[arg.Value.Ref]; !ok {
				return errf(UnknownReference, subject, "arg %q references unknown data node %q", arg.Flag, arg.Value.Ref)
			}
		}
	}
	return nil
}

func validateGroup(steps map[string]*Step, group *Group) error {
	for _, name := range group.Steps {
		if _, ok := steps[name]; !ok {
			return errf(UnknownReference, group.Name, "group references unknown step %q", name)
		}
	}
	return nil
}

func validateMultiPass(steps map[string]*Step, mp *MultiPass) error {
	template := make(map[string]*Step, len(mp.Steps))
	for _, name := range mp.Steps {
		s, ok := steps[name]
		if !ok {
			return errf(UnknownReference, mp.Name, "multipass references unknown step %q", name)
		}
		template[name] = s
	}

	for _, binding := range mp.Chain {
		producer, ok := template[binding.FromStep]
		if !ok {
			return errf(InvalidChain, mp.Name, "chain producer %q is not a template step", binding.FromStep)
		}
		if _, ok := template[binding.ToStep]; !ok {
			return errf(InvalidChain, mp.Name, "chain consumer %q is not a template step", binding.ToStep)
		}
		found := false
		for _, out := range producer.Outputs {
			if out.Name == binding.FromOutput {
				found = true
				break
			}
		}
		if !found {
			return errf(InvalidChain, mp.Name, "step %q declares no output flag %q", binding.FromStep, binding.FromOutput)
		}
	}
	return nil
}

func validateLoop(model *Model, loop *Loop) error {
	for _, ref := range []struct {
		attr string
		key  string
	}{
		{"over", loop.Over},
		{"into", loop.Into},
	} {
		node, ok := model.Data[ref.key]
		if !ok {
			return errf(UnknownReference, loop.Name, "%s references unknown data node %q", ref.attr, ref.key)
		}
		if node.Type == "file" {
			return errf(TypeMismatch, loop.Name, "%s data node %q is tagged as a file, expected a folder", ref.attr, ref.key)
		}
	}
	return validateArgs(model, loop.Name, loop.Args)
}
