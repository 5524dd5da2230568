package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/fsutil"
)

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "data", LabelNames: []string{"key"}},
		{Type: "parameters"},
		{Type: "execution"},
		{Type: "step", LabelNames: []string{"name"}},
		{Type: "group", LabelNames: []string{"name"}},
		{Type: "multipass", LabelNames: []string{"name"}},
		{Type: "loop", LabelNames: []string{"name"}},
	},
}

var dataSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "path"},
		{Name: "type"},
	},
}

var executionSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "parallel"},
		{Name: "max_workers"},
	},
}

var stepSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "task"},
		{Name: "optional"},
		{Name: "disabled"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "inputs"},
		{Type: "outputs"},
		{Type: "args"},
	},
}

var groupSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "steps"},
	},
}

var multipassSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "steps"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "pass", LabelNames: []string{"name"}},
		{Type: "chain"},
	},
}

var passSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "params"},
	},
}

var chainSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "from_step"},
		{Name: "from_output"},
		{Name: "to_step"},
		{Name: "to_input"},
	},
}

var loopSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "task"},
		{Name: "over"},
		{Name: "into"},
		{Name: "filter"},
		{Name: "output_flag"},
		{Name: "parallel"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "args"},
	},
}

// Load parses the configuration document at path, a single .hcl file or a
// directory of .hcl files, into a validated Model. It returns a *ConfigError
// for structural problems and a wrapped hcl.Diagnostics error for documents
// that do not parse at all.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading pipeline configuration.", "path", path)

	files, err := configFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errf(MissingField, path, "no .hcl configuration files found")
	}

	model := &Model{
		Data:       make(map[string]*DataNode),
		Parameters: make(map[string]cty.Value),
	}

	parser := hclparse.NewParser()
	declIndex := 0
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}
		if err := decodeDocument(hclFile.Body, model, &declIndex); err != nil {
			return nil, err
		}
	}

	if err := validate(model); err != nil {
		return nil, err
	}
	return model, nil
}

// requireAttr fetches a required attribute, reporting its absence as a
// MissingField configuration error.
func requireAttr(content *hcl.BodyContent, name, subject string) (*hcl.Attribute, error) {
	attr, ok := content.Attributes[name]
	if !ok {
		return nil, errf(MissingField, subject, "required attribute %q is missing", name)
	}
	return attr, nil
}

func configFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration path: %w", err)
	}
	if info.IsDir() {
		return fsutil.FindFilesByExtension(path, ".hcl")
	}
	return []string{path}, nil
}

// decodeDocument folds one parsed file into the model. Pipeline entries keep
// their source order via declIndex, which is shared across files.
func decodeDocument(body hcl.Body, model *Model, declIndex *int) error {
	content, diags := body.Content(rootSchema)
	if diags.HasErrors() {
		return fmt.Errorf("invalid document structure: %w", diags)
	}

	for _, block := range content.Blocks {
		var err error
		switch block.Type {
		case "data":
			err = decodeData(block, model)
		case "parameters":
			err = decodeParameters(block, model)
		case "execution":
			err = decodeExecution(block, model)
		case "step":
			err = decodeStep(block, model, declIndex)
		case "group":
			err = decodeGroup(block, model, declIndex)
		case "multipass":
			err = decodeMultiPass(block, model, declIndex)
		case "loop":
			err = decodeLoop(block, model, declIndex)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func decodeData(block *hcl.Block, model *Model) error {
	key := block.Labels[0]
	if _, exists := model.Data[key]; exists {
		return errf(DuplicateKey, key, "data node declared twice")
	}

	content, diags := block.Body.Content(dataSchema)
	if diags.HasErrors() {
		return fmt.Errorf("invalid data block %q: %w", key, diags)
	}

	node := &DataNode{Key: key}
	pathAttr, err := requireAttr(content, "path", key)
	if err != nil {
		return err
	}
	if node.Path, err = evalString(pathAttr, key); err != nil {
		return err
	}
	if attr, ok := content.Attributes["type"]; ok {
		if node.Type, err = evalString(attr, key); err != nil {
			return err
		}
	}

	model.Data[key] = node
	model.DataOrder = append(model.DataOrder, key)
	return nil
}

func decodeParameters(block *hcl.Block, model *Model) error {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("invalid parameters block: %w", diags)
	}
	for _, attr := range sortedAttributes(attrs) {
		if _, exists := model.Parameters[attr.Name]; exists {
			return errf(DuplicateKey, attr.Name, "parameter declared twice")
		}
		v, err := evalScalar(attr, attr.Name)
		if err != nil {
			return err
		}
		model.Parameters[attr.Name] = v
	}
	return nil
}

func decodeExecution(block *hcl.Block, model *Model) error {
	content, diags := block.Body.Content(executionSchema)
	if diags.HasErrors() {
		return fmt.Errorf("invalid execution block: %w", diags)
	}
	var err error
	if attr, ok := content.Attributes["parallel"]; ok {
		if model.Execution.Parallel, err = evalBool(attr, "execution"); err != nil {
			return err
		}
	}
	if attr, ok := content.Attributes["max_workers"]; ok {
		if model.Execution.MaxWorkers, err = evalInt(attr, "execution"); err != nil {
			return err
		}
	}
	return nil
}

func decodeStep(block *hcl.Block, model *Model, declIndex *int) error {
	name := block.Labels[0]
	content, diags := block.Body.Content(stepSchema)
	if diags.HasErrors() {
		return fmt.Errorf("invalid step block %q: %w", name, diags)
	}

	step := &Step{Name: name, DeclIndex: *declIndex}
	*declIndex++

	taskAttr, err := requireAttr(content, "task", name)
	if err != nil {
		return err
	}
	if step.Task, err = evalString(taskAttr, name); err != nil {
		return err
	}
	if attr, ok := content.Attributes["optional"]; ok {
		if step.Optional, err = evalBool(attr, name); err != nil {
			return err
		}
	}
	if attr, ok := content.Attributes["disabled"]; ok {
		if step.Disabled, err = evalBool(attr, name); err != nil {
			return err
		}
	}

	for _, inner := range content.Blocks {
		switch inner.Type {
		case "inputs":
			step.Inputs, err = decodeBindings(inner, name)
		case "outputs":
			if step.Outputs, err = decodeBindings(inner, name); err == nil {
				for i := range step.Outputs {
					step.Outputs[i].Name = flagFor(step.Outputs[i].Name)
				}
			}
		case "args":
			step.Args, err = decodeArgs(inner, name)
		}
		if err != nil {
			return err
		}
	}

	model.Entries = append(model.Entries, step)
	return nil
}

func decodeGroup(block *hcl.Block, model *Model, declIndex *int) error {
	name := block.Labels[0]
	content, diags := block.Body.Content(groupSchema)
	if diags.HasErrors() {
		return fmt.Errorf("invalid group block %q: %w", name, diags)
	}

	group := &Group{Name: name, DeclIndex: *declIndex}
	*declIndex++

	stepsAttr, err := requireAttr(content, "steps", name)
	if err != nil {
		return err
	}
	if group.Steps, err = evalStringList(stepsAttr, name); err != nil {
		return err
	}

	model.Entries = append(model.Entries, group)
	return nil
}

func decodeMultiPass(block *hcl.Block, model *Model, declIndex *int) error {
	name := block.Labels[0]
	content, diags := block.Body.Content(multipassSchema)
	if diags.HasErrors() {
		return fmt.Errorf("invalid multipass block %q: %w", name, diags)
	}

	mp := &MultiPass{Name: name, DeclIndex: *declIndex}
	*declIndex++

	stepsAttr, err := requireAttr(content, "steps", name)
	if err != nil {
		return err
	}
	if mp.Steps, err = evalStringList(stepsAttr, name); err != nil {
		return err
	}

	for _, inner := range content.Blocks {
		switch inner.Type {
		case "pass":
			pass, err := decodePass(inner, name)
			if err != nil {
				return err
			}
			for _, existing := range mp.Passes {
				if existing.Name == pass.Name {
					return errf(DuplicateKey, name, "pass %q declared twice", pass.Name)
				}
			}
			mp.Passes = append(mp.Passes, pass)
		case "chain":
			binding, err := decodeChain(inner, name)
			if err != nil {
				return err
			}
			mp.Chain = append(mp.Chain, binding)
		}
	}

	if len(mp.Passes) == 0 {
		return errf(EmptyPasses, name, "multipass group declares no passes")
	}

	model.Entries = append(model.Entries, mp)
	return nil
}

func decodePass(block *hcl.Block, group string) (Pass, error) {
	pass := Pass{Name: block.Labels[0], Params: make(map[string]cty.Value)}

	content, diags := block.Body.Content(passSchema)
	if diags.HasErrors() {
		return pass, fmt.Errorf("invalid pass block %q in %q: %w", pass.Name, group, diags)
	}
	for _, inner := range content.Blocks {
		attrs, diags := inner.Body.JustAttributes()
		if diags.HasErrors() {
			return pass, fmt.Errorf("invalid params block in pass %q: %w", pass.Name, diags)
		}
		for _, attr := range sortedAttributes(attrs) {
			v, err := evalScalar(attr, group+"/"+pass.Name)
			if err != nil {
				return pass, err
			}
			pass.Params[attr.Name] = v
		}
	}
	return pass, nil
}

func decodeChain(block *hcl.Block, group string) (ChainBinding, error) {
	var binding ChainBinding
	content, diags := block.Body.Content(chainSchema)
	if diags.HasErrors() {
		return binding, fmt.Errorf("invalid chain block in %q: %w", group, diags)
	}

	fields := []struct {
		name string
		dst  *string
	}{
		{"from_step", &binding.FromStep},
		{"from_output", &binding.FromOutput},
		{"to_step", &binding.ToStep},
		{"to_input", &binding.ToInput},
	}
	for _, f := range fields {
		attr, err := requireAttr(content, f.name, group)
		if err != nil {
			return binding, err
		}
		v, err := evalString(attr, group)
		if err != nil {
			return binding, err
		}
		*f.dst = v
	}
	// Output flags are stored normalized, so the chain's producer side
	// normalizes the same way: "o" and "-o" name the same output.
	binding.FromOutput = flagFor(binding.FromOutput)
	return binding, nil
}

func decodeLoop(block *hcl.Block, model *Model, declIndex *int) error {
	name := block.Labels[0]
	content, diags := block.Body.Content(loopSchema)
	if diags.HasErrors() {
		return fmt.Errorf("invalid loop block %q: %w", name, diags)
	}

	loop := &Loop{Name: name, OutputFlag: "-o", DeclIndex: *declIndex}
	*declIndex++

	taskAttr, err := requireAttr(content, "task", name)
	if err != nil {
		return err
	}
	if loop.Task, err = evalString(taskAttr, name); err != nil {
		return err
	}
	overAttr, err := requireAttr(content, "over", name)
	if err != nil {
		return err
	}
	if loop.Over, err = evalDataRef(overAttr, name); err != nil {
		return err
	}
	intoAttr, err := requireAttr(content, "into", name)
	if err != nil {
		return err
	}
	if loop.Into, err = evalDataRef(intoAttr, name); err != nil {
		return err
	}
	if attr, ok := content.Attributes["filter"]; ok {
		if loop.Filter, err = evalString(attr, name); err != nil {
			return err
		}
	}
	if attr, ok := content.Attributes["output_flag"]; ok {
		if loop.OutputFlag, err = evalString(attr, name); err != nil {
			return err
		}
	}
	if attr, ok := content.Attributes["parallel"]; ok {
		if loop.Parallel, err = evalBool(attr, name); err != nil {
			return err
		}
	}

	for _, inner := range content.Blocks {
		if loop.Args, err = decodeArgs(inner, name); err != nil {
			return err
		}
	}

	model.Entries = append(model.Entries, loop)
	return nil
}

// decodeBindings reads an inputs or outputs block. Declaration order matters
// for positional argument construction, so attributes are recovered in source
// order from their ranges rather than map order.
func decodeBindings(block *hcl.Block, step string) ([]Binding, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid %s block in step %q: %w", block.Type, step, diags)
	}

	var bindings []Binding
	for _, attr := range sortedAttributes(attrs) {
		key, err := dataRefForExpr(attr.Expr, step)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{Name: attr.Name, Data: key})
	}
	return bindings, nil
}

func decodeArgs(block *hcl.Block, step string) ([]Arg, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid args block in step %q: %w", step, diags)
	}

	var args []Arg
	for _, attr := range sortedAttributes(attrs) {
		value, err := classifyValue(attr.Expr, step)
		if err != nil {
			return nil, err
		}
		args = append(args, Arg{Flag: flagFor(attr.Name), Value: value})
	}
	return args, nil
}

// flagFor renders an attribute identifier as a command-line flag. HCL argument
// names cannot start with a dash, so output and arg attributes use bare
// identifiers: single characters become short flags, everything else long
// flags, underscores read as dashes. Names already carrying a dash prefix pass
// through untouched.
func flagFor(name string) string {
	if strings.HasPrefix(name, "-") {
		return name
	}
	name = strings.ReplaceAll(name, "_", "-")
	if len(name) == 1 {
		return "-" + name
	}
	return "--" + name
}

// sortedAttributes returns the attributes of a block ordered by their source
// position, restoring the declaration order that the attribute map discards.
func sortedAttributes(attrs hcl.Attributes) []*hcl.Attribute {
	out := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, attr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Filename != out[j].Range.Filename {
			return out[i].Range.Filename < out[j].Range.Filename
		}
		return out[i].Range.Start.Byte < out[j].Range.Start.Byte
	})
	return out
}

// classifyValue turns an argument expression into the tagged union of
// literal, parameter reference or data reference.
func classifyValue(expr hcl.Expression, subject string) (Value, error) {
	if trav, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		root := trav.RootName()
		if len(trav) == 2 {
			if attr, ok := trav[1].(hcl.TraverseAttr); ok {
				switch root {
				case "param":
					return ParamRef(attr.Name), nil
				case "data":
					return DataRef(attr.Name), nil
				}
			}
		}
		return Value{}, errf(UnknownReference, subject,
			"unsupported reference %q: only param.<name> and data.<key> are allowed", root)
	}

	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return Value{}, errf(TypeMismatch, subject, "value is not a scalar literal or reference: %s", diags.Error())
	}
	if err := checkScalar(v, subject); err != nil {
		return Value{}, err
	}
	return LiteralValue(v), nil
}

func dataRefForExpr(expr hcl.Expression, subject string) (string, error) {
	trav, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() || trav.RootName() != "data" || len(trav) != 2 {
		return "", errf(UnknownReference, subject, "expected a data.<key> reference")
	}
	attr, ok := trav[1].(hcl.TraverseAttr)
	if !ok {
		return "", errf(UnknownReference, subject, "expected a data.<key> reference")
	}
	return attr.Name, nil
}

func evalDataRef(attr *hcl.Attribute, subject string) (string, error) {
	return dataRefForExpr(attr.Expr, subject)
}

func evalScalar(attr *hcl.Attribute, subject string) (cty.Value, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, errf(TypeMismatch, subject, "%s must be a scalar literal: %s", attr.Name, diags.Error())
	}
	if err := checkScalar(v, subject); err != nil {
		return cty.NilVal, err
	}
	return v, nil
}

func checkScalar(v cty.Value, subject string) error {
	switch v.Type() {
	case cty.String, cty.Number, cty.Bool:
		return nil
	default:
		return errf(TypeMismatch, subject, "expected a string, number or bool, got %s", v.Type().FriendlyName())
	}
}

func evalString(attr *hcl.Attribute, subject string) (string, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", errf(TypeMismatch, subject, "%s must be a string: %s", attr.Name, diags.Error())
	}
	if v.Type() != cty.String {
		return "", errf(TypeMismatch, subject, "%s must be a string, got %s", attr.Name, v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

func evalBool(attr *hcl.Attribute, subject string) (bool, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return false, errf(TypeMismatch, subject, "%s must be a bool: %s", attr.Name, diags.Error())
	}
	if v.Type() != cty.Bool {
		return false, errf(TypeMismatch, subject, "%s must be a bool, got %s", attr.Name, v.Type().FriendlyName())
	}
	return v.True(), nil
}

func evalInt(attr *hcl.Attribute, subject string) (int, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return 0, errf(TypeMismatch, subject, "%s must be an integer: %s", attr.Name, diags.Error())
	}
	if v.Type() != cty.Number {
		return 0, errf(TypeMismatch, subject, "%s must be an integer, got %s", attr.Name, v.Type().FriendlyName())
	}
	i, _ := v.AsBigFloat().Int64()
	return int(i), nil
}

func evalStringList(attr *hcl.Attribute, subject string) ([]string, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, errf(TypeMismatch, subject, "%s must be a list of strings: %s", attr.Name, diags.Error())
	}
	if !v.Type().IsTupleType() && !v.Type().IsListType() {
		return nil, errf(TypeMismatch, subject, "%s must be a list of strings, got %s", attr.Name, v.Type().FriendlyName())
	}

	var out []string
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.Type() != cty.String {
			return nil, errf(TypeMismatch, subject, "%s must contain only strings", attr.Name)
		}
		out = append(out, elem.AsString())
	}
	return out, nil
}
