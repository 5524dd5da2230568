package engine

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
)

// Runner spawns one external process and blocks until it exits. The returned
// exit code is meaningful only when the error is nil or the context was
// cancelled; any other error means the process could not be run at all.
type Runner interface {
	Run(ctx context.Context, argv []string, stdout, stderr io.Writer) (int, error)
}

// LocalRunner executes processes on the local machine. Children are started
// in their own process group so cancellation can terminate the whole group,
// grandchildren included.
type LocalRunner struct {
	// Dir is the working directory for every spawned process, normally
	// the pipeline root.
	Dir string
}

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, argv []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		// Negative pid addresses the process group.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		<-done
		return -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
}
