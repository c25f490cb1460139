package toolkit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/vk/cryoflow/internal/ctxlog"
)

// ExitError reports a toolkit subcommand that ran and returned a non-zero
// exit status.
type ExitError struct {
	Subcommand string
	Code       int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("toolkit subcommand %q exited with status %d", e.Subcommand, e.Code)
}

// Toolkit is a configured installation of the external reconstruction tool.
// Reconstruction subcommands run through Binary, file utilities through
// UtilsBinary. Every invocation is echoed to Trace before it executes,
// matching the `set -x` behavior of the shell workflows it replaces.
type Toolkit struct {
	Binary      string
	UtilsBinary string
	Env         []string // extra KEY=VALUE entries appended to the inherited environment
	Trace       io.Writer
}

// New resolves both toolkit binaries on PATH and returns a ready Toolkit.
// Trace defaults to stderr, where a shell's xtrace output goes.
func New(binary, utilsBinary string) (*Toolkit, error) {
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("toolkit binary %q not found: %w", binary, err)
	}
	resolvedUtils, err := exec.LookPath(utilsBinary)
	if err != nil {
		return nil, fmt.Errorf("toolkit utilities binary %q not found: %w", utilsBinary, err)
	}

	return &Toolkit{
		Binary:      resolved,
		UtilsBinary: resolvedUtils,
		Trace:       os.Stderr,
	}, nil
}

// CommandLine renders the full command line for an invocation as it will be
// echoed and executed.
func (t *Toolkit) CommandLine(inv Invocation) string {
	return strings.Join(inv.Argv(t.Binary, t.UtilsBinary), " ")
}

// Run executes one invocation to completion. The child's stdout and stderr
// are streamed line-by-line into the context logger, so toolkit output is
// interleaved with the engine's own logs in order.
func (t *Toolkit) Run(ctx context.Context, inv Invocation) error {
	logger := ctxlog.FromContext(ctx).With("subcommand", inv.Subcommand)

	argv := inv.Argv(t.Binary, t.UtilsBinary)
	if t.Trace != nil {
		fmt.Fprintf(t.Trace, "+ %s\n", strings.Join(argv, " "))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), t.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", inv.Subcommand, err)
	}
	logger.Debug("Toolkit subcommand started.", "pid", cmd.Process.Pid)

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
			// Prefer the context error when the run was cancelled: the child
			// was killed, its exit status is incidental.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ExitError{Subcommand: inv.Subcommand, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run %q: %w", inv.Subcommand, err)
	}

	logger.Debug("Toolkit subcommand finished.")
	return nil
}

func relayLines(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}
