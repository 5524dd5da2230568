package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/engine"
	"github.com/vk/pipegrid/internal/expand"
)

// App encapsulates the application's dependencies, configuration and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp constructs the application with its own isolated logger.
func NewApp(outW io.Writer, cfg *Config) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config: cfg,
	}
}

// Run loads, expands and validates the pipeline, then either prints the
// dry-run listing or executes the request. The returned error reflects
// structural problems or a run that did not complete.
func (a *App) Run(ctx context.Context, req engine.Request) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	model, err := config.Load(ctx, a.config.ConfigPath)
	if err != nil {
		return err
	}

	root, err := a.pipelineRoot()
	if err != nil {
		return err
	}

	pipeline, err := expand.Expand(ctx, model, expand.Options{Root: root})
	if err != nil {
		return err
	}

	graph, err := dag.Build(ctx, pipeline)
	if err != nil {
		return err
	}

	eng := engine.New(graph, pipeline,
		engine.WithRunner(&engine.LocalRunner{Dir: root}),
		engine.WithNotifier(&logNotifier{logger: a.logger, outW: a.outW}),
	)

	if req.DryRun {
		invocations, err := eng.DryRun(ctx, req)
		if err != nil {
			return err
		}
		for _, inv := range invocations {
			fmt.Fprintf(a.outW, "%s: %s\n", inv.Step, strings.Join(inv.Argv, " "))
		}
		return nil
	}

	result, err := eng.Run(ctx, req)
	if err != nil {
		return err
	}

	switch result.Status {
	case engine.RunCompleted:
		return nil
	case engine.RunCancelled:
		return fmt.Errorf("run %s cancelled", result.ID)
	default:
		return fmt.Errorf("run %s failed", result.ID)
	}
}

// pipelineRoot resolves the directory data-node paths are relative to: the
// configured root, or the configuration document's directory.
func (a *App) pipelineRoot() (string, error) {
	if a.config.Root != "" {
		return a.config.Root, nil
	}
	info, err := os.Stat(a.config.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve pipeline root: %w", err)
	}
	if info.IsDir() {
		return a.config.ConfigPath, nil
	}
	return filepath.Dir(a.config.ConfigPath), nil
}
