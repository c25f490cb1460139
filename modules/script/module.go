// Package script provides the 'script' runner: it interprets an inline POSIX
// shell fragment in-process. Existing workflow snippets can be pasted into a
// pipeline verbatim without depending on a system shell.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Script      string            `cryo:"script"`
	Dir         string            `cryo:"dir"`
	Env         map[string]string `cryo:"env"`
	IgnoreError bool              `cryo:"ignore_error"`
	Trace       bool              `cryo:"trace"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output defines the data structure returned by the runner.
type Output struct {
	ExitCode int `cty:"exit_code"`
}

// logWriter adapts an slog stream attribute to an io.Writer so the
// interpreter's output lands in the run log.
type logWriter struct {
	emit func(string)
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		w.emit(line)
	}
	return len(p), nil
}

// OnRunScript is the handler for the 'script' runner.
func OnRunScript(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "script")

	if strings.TrimSpace(input.Script) == "" {
		return nil, fmt.Errorf("script: script body must not be empty")
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(input.Script), "script")
	if err != nil {
		return nil, fmt.Errorf("script: parse failed: %w", err)
	}

	env := os.Environ()
	env = append(env, sortedEnv(input.Env)...)

	params := []string{"-e"}
	if input.Trace {
		params = append(params, "-x")
	}

	stdout := &logWriter{emit: func(line string) { logger.Info(line, "stream", "stdout") }}
	stderr := &logWriter{emit: func(line string) { logger.Info(line, "stream", "stderr") }}

	runner, err := interp.New(
		interp.Dir(input.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
		interp.Params(params...),
	)
	if err != nil {
		return nil, fmt.Errorf("script: interpreter setup failed: %w", err)
	}

	if err := runner.Run(ctx, file); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if input.IgnoreError {
				logger.Warn("Script failed; continuing.", "exit_code", int(status))
				return &Output{ExitCode: int(status)}, nil
			}
			return nil, fmt.Errorf("script exited with status %d", int(status))
		}
		return nil, fmt.Errorf("script: %w", err)
	}

	return &Output{ExitCode: 0}, nil
}

func sortedEnv(env map[string]string) []string {
	entries := make([]string, 0, len(env))
	for k, v := range env {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return entries
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunScript", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunScript,
	})
}
