// Package testutil provides the shared harness for system-level tests: it
// materializes inline HCL into a temporary directory, boots the application
// against it, and captures the run's outcome and logs.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/cryoflow/internal/app"
	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/hcl"
	"github.com/vk/cryoflow/internal/registry"
)

// HarnessResult holds the outcomes of a system test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// Context returns a context carrying a discard logger, for calling handlers
// directly without booting the app.
func Context(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// RunPipelineTest runs a pipeline described by inline files with a default
// background context. Keys are paths relative to a fresh temp dir; the
// pipeline goes under "pipeline/", module manifests under "modules/".
func RunPipelineTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunPipelineTestWithContext(context.Background(), t, files, modules...)
}

// RunPipelineTestWithContext is RunPipelineTest with a caller-owned context,
// for cancellation and timeout tests.
func RunPipelineTestWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	pipelineDir := filepath.Join(tmpDir, "pipeline")
	modulesDir := filepath.Join(tmpDir, "modules")
	require.NoError(t, os.Mkdir(pipelineDir, 0o755))
	require.NoError(t, os.Mkdir(modulesDir, 0o755))

	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	appConfig := &app.Config{
		PipelinePath: pipelineDir,
		ModulesPath:  modulesDir,
		LogFormat:    "text",
		LogLevel:     "debug",
		WorkerCount:  4,
	}

	// Startup panics (bad HCL, registry drift) surface as harness errors so
	// tests can assert on them like any other failure.
	var testApp *app.App
	var logBuffer *app.SafeBuffer
	var panicErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = fmt.Errorf("application startup panicked: %v", r)
			}
		}()
		testApp, logBuffer = app.SetupAppTest(t, appConfig, hcl.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{Err: panicErr}
	}

	runErr := testApp.Run(ctx)

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}
