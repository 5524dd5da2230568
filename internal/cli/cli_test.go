package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/cli"
	"github.com/vk/pipegrid/internal/engine"
)

func TestParse_NoArgsShowsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, req, shouldExit, err := cli.Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Nil(t, req)
	assert.Contains(t, out.String(), "pipegrid")
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	var out bytes.Buffer
	_, _, shouldExit, err := cli.Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
}

func TestParse_ConfigPathSources(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"positional", []string{"grid.hcl"}, "grid.hcl"},
		{"config flag", []string{"-config", "a.hcl"}, "a.hcl"},
		{"shorthand", []string{"-c", "b.hcl"}, "b.hcl"},
		{"flag wins over positional", []string{"-config", "a.hcl", "b.hcl"}, "a.hcl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg, req, shouldExit, err := cli.Parse(tc.args, &out)
			require.NoError(t, err)
			require.False(t, shouldExit)
			require.NotNil(t, cfg)
			assert.Equal(t, tc.want, cfg.ConfigPath)
			assert.Equal(t, engine.ModeAll, req.Mode)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	var out bytes.Buffer
	cfg, req, _, err := cli.Parse([]string{"grid.hcl"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Root)

	assert.Equal(t, engine.ModeAll, req.Mode)
	assert.Nil(t, req.Parallel, "absent -parallel leaves the document's setting in charge")
	assert.Zero(t, req.MaxWorkers)
	assert.False(t, req.DryRun)
	assert.Empty(t, req.Include)
}

func TestParse_RunSelection(t *testing.T) {
	t.Run("steps", func(t *testing.T) {
		var out bytes.Buffer
		_, req, _, err := cli.Parse([]string{"-steps", "a, b ,c", "grid.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, engine.ModeSteps, req.Mode)
		assert.Equal(t, []string{"a", "b", "c"}, req.Names)
	})

	t.Run("from", func(t *testing.T) {
		var out bytes.Buffer
		_, req, _, err := cli.Parse([]string{"-from", "convert", "grid.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, engine.ModeFrom, req.Mode)
		assert.Equal(t, "convert", req.From)
	})

	t.Run("steps and from are mutually exclusive", func(t *testing.T) {
		var out bytes.Buffer
		_, _, _, err := cli.Parse([]string{"-steps", "a", "-from", "b", "grid.hcl"}, &out)
		var exitErr *cli.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("include and dry-run", func(t *testing.T) {
		var out bytes.Buffer
		_, req, _, err := cli.Parse([]string{"-include", "opt", "-dry-run", "grid.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, []string{"opt"}, req.Include)
		assert.True(t, req.DryRun)
	})
}

func TestParse_ParallelOverride(t *testing.T) {
	t.Run("explicit true", func(t *testing.T) {
		var out bytes.Buffer
		_, req, _, err := cli.Parse([]string{"-parallel", "-workers", "3", "grid.hcl"}, &out)
		require.NoError(t, err)
		require.NotNil(t, req.Parallel)
		assert.True(t, *req.Parallel)
		assert.Equal(t, 3, req.MaxWorkers)
	})

	t.Run("explicit false", func(t *testing.T) {
		var out bytes.Buffer
		_, req, _, err := cli.Parse([]string{"-parallel=false", "grid.hcl"}, &out)
		require.NoError(t, err)
		require.NotNil(t, req.Parallel)
		assert.False(t, *req.Parallel)
	})
}

func TestParse_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"-log-format", "yaml", "grid.hcl"}},
		{"bad log level", []string{"-log-level", "loud", "grid.hcl"}},
		{"unknown flag", []string{"-frobnicate", "grid.hcl"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, _, err := cli.Parse(tc.args, &out)
			var exitErr *cli.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
