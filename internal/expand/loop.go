package expand

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/fsutil"
)

// expandLoop synthesizes one step per file matched under the loop's source
// folder. Enumeration is lexicographic so instance order never depends on the
// file system's directory order. Zero matches yields zero steps.
func (e *expander) expandLoop(ctx context.Context, loop *config.Loop) error {
	logger := ctxlog.FromContext(ctx)

	overPath, _ := e.out.Path(loop.Over)
	intoPath, _ := e.out.Path(loop.Into)

	dir := filepath.Join(e.opts.Root, filepath.FromSlash(overPath))
	names, err := fsutil.ListMatching(dir, loop.Filter)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Loop source folder does not exist, expanding to zero steps.",
				"loop", loop.Name, "dir", dir)
			return nil
		}
		return fmt.Errorf("enumerating loop %q source folder: %w", loop.Name, err)
	}
	logger.Debug("Expanding loop step.", "loop", loop.Name, "items", len(names))

	args, err := e.resolveArgs(loop.Name, loop.Args, e.base, nil)
	if err != nil {
		return err
	}

	prev := ""
	for _, fileName := range names {
		stem := fsutil.Stem(fileName)
		name := loop.Name + "/" + stem

		inKey := name + ".in"
		outKey := name + ".out"
		if _, exists := e.out.Data[inKey]; exists {
			return &config.ConfigError{
				Kind:    config.DuplicateKey,
				Subject: loop.Name,
				Detail:  fmt.Sprintf("items %q and another share the stem %q", fileName, stem),
			}
		}
		e.registerData(&config.DataNode{Key: inKey, Path: path.Join(overPath, fileName)})
		e.registerData(&config.DataNode{Key: outKey, Path: path.Join(intoPath, fileName)})

		step := &Step{
			Name:    name,
			Task:    loop.Task,
			Inputs:  []Input{{Name: "item", Data: inKey}},
			Outputs: []Output{{Flag: loop.OutputFlag, Data: outKey}},
			Args:    args,
		}
		if !loop.Parallel && prev != "" {
			// Sequential loops chain in enumeration order instead of
			// relying on the scheduler's default ordering.
			step.After = []string{prev}
		}
		if err := e.emit(step); err != nil {
			return err
		}
		prev = name
	}
	return nil
}
