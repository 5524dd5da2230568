package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/pipegrid/internal/app"
	"github.com/vk/pipegrid/internal/engine"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app config
// and run request, a boolean indicating the program should exit cleanly, or
// an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, *engine.Request, bool, error) {
	flagSet := flag.NewFlagSet("pipegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
pipegrid - a declarative, dependency-ordered pipeline runner.

Usage:
  pipegrid [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Path to a single .hcl pipeline file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the pipeline file or directory.")
	cFlag := flagSet.String("c", "", "Path to the pipeline file or directory (shorthand).")
	rootFlag := flagSet.String("root", "", "Pipeline root directory. Defaults to the configuration's directory.")
	stepsFlag := flagSet.String("steps", "", "Comma-separated step names to run (exactly these).")
	fromFlag := flagSet.String("from", "", "Run the named step and everything downstream of it.")
	includeFlag := flagSet.String("include", "", "Comma-separated optional step names to include.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print resolved command lines without executing anything.")
	parallelFlag := flagSet.Bool("parallel", false, "Override the document's parallel setting.")
	workersFlag := flagSet.Int("workers", 0, "Worker pool size for parallel mode. 0 uses the document's setting or the host core count.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, nil, true, nil
		}
		return nil, nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *stepsFlag != "" && *fromFlag != "" {
		return nil, nil, false, &ExitError{Code: 2, Message: "-steps and -from are mutually exclusive"}
	}

	req := &engine.Request{
		Mode:       engine.ModeAll,
		Include:    splitList(*includeFlag),
		DryRun:     *dryRunFlag,
		MaxWorkers: *workersFlag,
	}
	if *stepsFlag != "" {
		req.Mode = engine.ModeSteps
		req.Names = splitList(*stepsFlag)
	}
	if *fromFlag != "" {
		req.Mode = engine.ModeFrom
		req.From = *fromFlag
	}
	// Only an explicitly passed -parallel overrides the document.
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "parallel" {
			req.Parallel = parallelFlag
		}
	})

	cfg, err := app.NewConfig(app.Config{
		ConfigPath: path,
		Root:       *rootFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	})
	if err != nil {
		return nil, nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return cfg, req, false, nil
}

// splitList splits a comma-separated flag value, trimming whitespace and
// dropping empty elements.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
