package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/app"
	"github.com/vk/pipegrid/internal/engine"
	"github.com/vk/pipegrid/internal/testutil"
)

func newTestApp(t *testing.T, doc string) (*app.App, *bytes.Buffer) {
	t.Helper()
	path := testutil.WriteFile(t, t.TempDir(), "pipeline.hcl", doc)
	cfg, err := app.NewConfig(app.Config{
		ConfigPath: path,
		LogFormat:  "text",
		LogLevel:   "error",
	})
	require.NoError(t, err)
	var out bytes.Buffer
	return app.NewApp(&out, cfg), &out
}

func TestNewConfig_RequiresConfigPath(t *testing.T) {
	_, err := app.NewConfig(app.Config{})
	require.Error(t, err)
}

func TestApp_DryRun(t *testing.T) {
	a, out := newTestApp(t, `
data "src" { path = "input/src.txt" }
data "out" { path = "work/out.txt" }

step "convert" {
  task = "bin/convert"
  inputs  { source = data.src }
  outputs { o = data.out }
}
`)

	err := a.Run(context.Background(), engine.Request{Mode: engine.ModeAll, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "convert: bin/convert input/src.txt -o work/out.txt\n", out.String())
}

func TestApp_RunExecutesProcesses(t *testing.T) {
	a, _ := newTestApp(t, `
step "ok" { task = "true" }
`)
	err := a.Run(context.Background(), engine.Request{Mode: engine.ModeAll})
	require.NoError(t, err)
}

func TestApp_RunSurfacesFailure(t *testing.T) {
	a, _ := newTestApp(t, `
step "broken" { task = "false" }
`)
	err := a.Run(context.Background(), engine.Request{Mode: engine.ModeAll})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestApp_RunRejectsBadConfiguration(t *testing.T) {
	a, _ := newTestApp(t, `
step "x" {
  task = "bin/x"
  inputs { text = data.ghost }
}
`)
	err := a.Run(context.Background(), engine.Request{Mode: engine.ModeAll})
	require.Error(t, err)
}
