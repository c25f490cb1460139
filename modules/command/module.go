// Package command provides the 'command' runner: it executes an arbitrary
// argv vector, streaming output into the run's logger. It covers pipeline
// steps that fall outside the toolkit's subcommand surface, such as staging
// input data.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Argv        []string          `cryo:"argv"`
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

// OnRunCommand is the handler for the 'command' runner.
func OnRunCommand(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "command")

	if len(input.Argv) == 0 {
		return nil, fmt.Errorf("command: argv must not be empty")
	}

	if input.Trace {
		fmt.Fprintf(os.Stderr, "+ %s\n", strings.Join(input.Argv, " "))
	}

	cmd := exec.CommandContext(ctx, input.Argv[0], input.Argv[1:]...)
	cmd.Dir = input.Dir
	cmd.Env = append(os.Environ(), sortedEnv(input.Env)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", input.Argv[0], err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relayLines(stdout, func(line string) { logger.Info(line, "stream", "stdout") })
	}()
	go func() {
		defer wg.Done()
		relayLines(stderr, func(line string) { logger.Info(line, "stream", "stderr") })
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			code := exitErr.ExitCode()
			if input.IgnoreError {
				logger.Warn("Command failed; continuing.", "exit_code", code)
				return &Output{ExitCode: code}, nil
			}
			return nil, fmt.Errorf("command %q exited with status %d", input.Argv[0], code)
		}
		return nil, fmt.Errorf("failed to run %q: %w", input.Argv[0], err)
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

func relayLines(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunCommand", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunCommand,
	})
}
