package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/testutil"
)

// load writes a single-file document into a temp dir and parses it.
func load(t *testing.T, doc string) (*config.Model, error) {
	t.Helper()
	path := testutil.WriteFile(t, t.TempDir(), "pipeline.hcl", doc)
	return config.Load(testutil.Context(t), path)
}

func mustLoad(t *testing.T, doc string) *config.Model {
	t.Helper()
	model, err := load(t, doc)
	require.NoError(t, err)
	return model
}

// requireKind asserts an error is a ConfigError of the given kind.
func requireKind(t *testing.T, err error, kind config.ErrorKind) {
	t.Helper()
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, kind, cfgErr.Kind)
}

func TestLoad_FullDocument(t *testing.T) {
	model := mustLoad(t, `
data "src" {
  path = "input/src.txt"
  type = "file"
}

data "out" {
  path = "work/out.txt"
}

parameters {
  mode    = "fast"
  retries = 3
}

execution {
  parallel    = true
  max_workers = 4
}

step "convert" {
  task = "bin/convert"

  inputs {
    source = data.src
  }
  outputs {
    o = data.out
  }
  args {
    mode    = param.mode
    retries = param.retries
    verbose = true
  }
}
`)

	require.Equal(t, []string{"src", "out"}, model.DataOrder)
	require.Contains(t, model.Data, "src")
	assert.Equal(t, "input/src.txt", model.Data["src"].Path)
	assert.Equal(t, "file", model.Data["src"].Type)
	assert.Empty(t, model.Data["out"].Type)

	assert.Equal(t, cty.StringVal("fast"), model.Parameters["mode"])
	assert.True(t, model.Parameters["retries"].RawEquals(cty.NumberIntVal(3)))

	assert.True(t, model.Execution.Parallel)
	assert.Equal(t, 4, model.Execution.MaxWorkers)

	require.Len(t, model.Entries, 1)
	step, ok := model.Entries[0].(*config.Step)
	require.True(t, ok)
	assert.Equal(t, "convert", step.Name)
	assert.Equal(t, "bin/convert", step.Task)
	assert.Equal(t, []config.Binding{{Name: "source", Data: "src"}}, step.Inputs)
	assert.Equal(t, []config.Binding{{Name: "-o", Data: "out"}}, step.Outputs)

	require.Len(t, step.Args, 3)
	assert.Equal(t, config.Arg{Flag: "--mode", Value: config.ParamRef("mode")}, step.Args[0])
	assert.Equal(t, config.Arg{Flag: "--retries", Value: config.ParamRef("retries")}, step.Args[1])
	assert.Equal(t, "--verbose", step.Args[2].Flag)
	assert.Equal(t, config.RefLiteral, step.Args[2].Value.Kind)
	assert.True(t, step.Args[2].Value.Literal.True())
}

func TestLoad_InputOrderFollowsSource(t *testing.T) {
	// Declaration order drives positional argument construction, so the
	// parser must not fall back to the attribute map's random order.
	model := mustLoad(t, `
data "zulu"  { path = "z" }
data "alpha" { path = "a" }
data "mike"  { path = "m" }

step "merge" {
  task = "bin/merge"
  inputs {
    z = data.zulu
    a = data.alpha
    m = data.mike
  }
}
`)
	step := model.Entries[0].(*config.Step)
	require.Len(t, step.Inputs, 3)
	assert.Equal(t, "zulu", step.Inputs[0].Data)
	assert.Equal(t, "alpha", step.Inputs[1].Data)
	assert.Equal(t, "mike", step.Inputs[2].Data)
}

func TestLoad_FlagRendering(t *testing.T) {
	model := mustLoad(t, `
data "out" { path = "out.txt" }

step "render" {
  task = "bin/render"
  outputs {
    o = data.out
  }
  args {
    v         = true
    log_level = "debug"
    dry-run   = false
  }
}
`)
	step := model.Entries[0].(*config.Step)
	assert.Equal(t, "-o", step.Outputs[0].Name)
	assert.Equal(t, "-v", step.Args[0].Flag)
	assert.Equal(t, "--log-level", step.Args[1].Flag)
	assert.Equal(t, "--dry-run", step.Args[2].Flag)
}

func TestLoad_MultiPass(t *testing.T) {
	model := mustLoad(t, `
data "src" { path = "src.txt" }
data "doc" { path = "work/doc.txt" }

step "draft" {
  task = "bin/draft"
  inputs  { text = data.src }
  outputs { o = data.doc }
}

multipass "refine" {
  steps = ["draft"]

  pass "r1" {
    params { temperature = 0.9 }
  }
  pass "r2" {
    params { temperature = 0.2 }
  }

  chain {
    from_step   = "draft"
    from_output = "o"
    to_step     = "draft"
    to_input    = "prev"
  }
}
`)
	require.Len(t, model.Entries, 2)
	mp, ok := model.Entries[1].(*config.MultiPass)
	require.True(t, ok)
	assert.Equal(t, []string{"draft"}, mp.Steps)
	require.Len(t, mp.Passes, 2)
	assert.Equal(t, "r1", mp.Passes[0].Name)
	assert.Equal(t, "r2", mp.Passes[1].Name)
	assert.Contains(t, mp.Passes[0].Params, "temperature")

	require.Len(t, mp.Chain, 1)
	// from_output normalizes like output attributes do.
	assert.Equal(t, config.ChainBinding{
		FromStep: "draft", FromOutput: "-o", ToStep: "draft", ToInput: "prev",
	}, mp.Chain[0])
}

func TestLoad_Loop(t *testing.T) {
	model := mustLoad(t, `
data "raw"  { path = "raw" }
data "done" { path = "done" }

loop "transcode" {
  task     = "bin/transcode"
  over     = data.raw
  into     = data.done
  filter   = "*.wav"
  parallel = true
  args {
    bitrate = 128
  }
}
`)
	loop, ok := model.Entries[0].(*config.Loop)
	require.True(t, ok)
	assert.Equal(t, "bin/transcode", loop.Task)
	assert.Equal(t, "raw", loop.Over)
	assert.Equal(t, "done", loop.Into)
	assert.Equal(t, "*.wav", loop.Filter)
	assert.True(t, loop.Parallel)
	assert.Equal(t, "-o", loop.OutputFlag, "default output flag")
	require.Len(t, loop.Args, 1)
	assert.Equal(t, "--bitrate", loop.Args[0].Flag)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a_data.hcl", `
data "src" { path = "src.txt" }
`)
	testutil.WriteFile(t, dir, "b_steps.hcl", `
step "one" {
  task = "bin/one"
  inputs { text = data.src }
}

step "two" {
  task = "bin/two"
}
`)

	model, err := config.Load(testutil.Context(t), dir)
	require.NoError(t, err)
	require.Len(t, model.Entries, 2)
	assert.Equal(t, 0, model.Entries[0].(*config.Step).DeclIndex)
	assert.Equal(t, 1, model.Entries[1].(*config.Step).DeclIndex)
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		kind config.ErrorKind
	}{
		{
			name: "step without task",
			doc:  `step "broken" {}`,
			kind: config.MissingField,
		},
		{
			name: "data without path",
			doc:  `data "src" { type = "file" }`,
			kind: config.MissingField,
		},
		{
			name: "duplicate data key",
			doc: `
data "src" { path = "a" }
data "src" { path = "b" }
`,
			kind: config.DuplicateKey,
		},
		{
			name: "duplicate step name",
			doc: `
step "x" { task = "a" }
step "x" { task = "b" }
`,
			kind: config.DuplicateKey,
		},
		{
			name: "duplicate parameter",
			doc: `
parameters { mode = "a" }
parameters { mode = "b" }
`,
			kind: config.DuplicateKey,
		},
		{
			name: "input references unknown data",
			doc: `
step "x" {
  task = "bin/x"
  inputs { text = data.ghost }
}
`,
			kind: config.UnknownReference,
		},
		{
			name: "arg references unknown parameter",
			doc: `
step "x" {
  task = "bin/x"
  args { mode = param.ghost }
}
`,
			kind: config.UnknownReference,
		},
		{
			name: "arg references unsupported root",
			doc: `
step "x" {
  task = "bin/x"
  args { mode = env.HOME }
}
`,
			kind: config.UnknownReference,
		},
		{
			name: "input bound to a literal",
			doc: `
step "x" {
  task = "bin/x"
  inputs { text = "not-a-ref" }
}
`,
			kind: config.UnknownReference,
		},
		{
			name: "name contains slash",
			doc:  `step "a/b" { task = "bin/x" }`,
			kind: config.TypeMismatch,
		},
		{
			name: "non-scalar parameter",
			doc:  `parameters { mode = ["a", "b"] }`,
			kind: config.TypeMismatch,
		},
		{
			name: "multipass without passes",
			doc: `
step "draft" { task = "bin/draft" }
multipass "refine" { steps = ["draft"] }
`,
			kind: config.EmptyPasses,
		},
		{
			name: "multipass names unknown template",
			doc: `
multipass "refine" {
  steps = ["ghost"]
  pass "r1" {}
}
`,
			kind: config.UnknownReference,
		},
		{
			name: "chain producer outside the group",
			doc: `
data "doc" { path = "doc.txt" }
step "draft" {
  task = "bin/draft"
  outputs { o = data.doc }
}
multipass "refine" {
  steps = ["draft"]
  pass "r1" {}
  chain {
    from_step   = "ghost"
    from_output = "o"
    to_step     = "draft"
    to_input    = "prev"
  }
}
`,
			kind: config.InvalidChain,
		},
		{
			name: "chain names unknown output flag",
			doc: `
data "doc" { path = "doc.txt" }
step "draft" {
  task = "bin/draft"
  outputs { o = data.doc }
}
multipass "refine" {
  steps = ["draft"]
  pass "r1" {}
  chain {
    from_step   = "draft"
    from_output = "result"
    to_step     = "draft"
    to_input    = "prev"
  }
}
`,
			kind: config.InvalidChain,
		},
		{
			name: "chain missing field",
			doc: `
step "draft" { task = "bin/draft" }
multipass "refine" {
  steps = ["draft"]
  pass "r1" {}
  chain {
    from_step = "draft"
  }
}
`,
			kind: config.MissingField,
		},
		{
			name: "group references unknown step",
			doc:  `group "g" { steps = ["ghost"] }`,
			kind: config.UnknownReference,
		},
		{
			name: "loop over unknown data",
			doc: `
data "done" { path = "done" }
loop "l" {
  task = "bin/x"
  over = data.ghost
  into = data.done
}
`,
			kind: config.UnknownReference,
		},
		{
			name: "loop over file-typed data",
			doc: `
data "raw" {
  path = "raw.txt"
  type = "file"
}
data "done" { path = "done" }
loop "l" {
  task = "bin/x"
  over = data.raw
  into = data.done
}
`,
			kind: config.TypeMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, tc.doc)
			require.Error(t, err)
			requireKind(t, err, tc.kind)
		})
	}
}

func TestLoad_InvalidHCLIsRejected(t *testing.T) {
	_, err := load(t, `step "broken" {`)
	require.Error(t, err)
	var cfgErr *config.ConfigError
	assert.NotErrorAs(t, err, &cfgErr, "syntax errors are not ConfigErrors")
}
