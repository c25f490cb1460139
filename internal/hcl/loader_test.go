package hcl

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cryoflow/internal/ctxlog"
)

func loaderContext() context.Context {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func writeHCL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MergesPipelineAndManifests(t *testing.T) {
	tmpDir := t.TempDir()
	writeHCL(t, tmpDir, "modules/downsample/manifest.hcl", `
		runner "downsample" {
			description = "shrink a stack"
			lifecycle { on_run = "OnRunDownsample" }
			input "boxsize" {}
			input "chunk" {
				default = 0
			}
			output "path" {}
			uses "toolkit" {
				asset_type = "toolkit"
			}
		}
	`)
	writeHCL(t, tmpDir, "modules/toolkit/manifest.hcl", `
		asset "toolkit" {
			lifecycle {
				create  = "OnCreateToolkit"
				destroy = "OnDestroyToolkit"
			}
			input "binary" {
				default = "cryodrgn"
			}
		}
	`)
	writeHCL(t, tmpDir, "pipeline/main.hcl", `
		resource "toolkit" "main" {
			arguments {}
		}

		step "downsample" "d128" {
			arguments {
				boxsize = 128
			}
			uses { toolkit = resource.toolkit.main }
		}
	`)

	model, converter, err := NewLoader().Load(loaderContext(), filepath.Join(tmpDir, "pipeline"), filepath.Join(tmpDir, "modules"))

	require.NoError(t, err)
	require.NotNil(t, converter)

	require.Len(t, model.Pipeline.Steps, 1)
	step := model.Pipeline.Steps[0]
	assert.Equal(t, "downsample", step.RunnerType)
	assert.Equal(t, "d128", step.Name)
	assert.Contains(t, step.Arguments, "boxsize")
	assert.Contains(t, step.Uses, "toolkit")

	require.Len(t, model.Pipeline.Resources, 1)
	assert.Equal(t, "toolkit", model.Pipeline.Resources[0].AssetType)

	runnerDef := model.Runners["downsample"]
	require.NotNil(t, runnerDef)
	assert.Equal(t, "OnRunDownsample", runnerDef.Lifecycle.OnRun)

	boxsize := runnerDef.Inputs["boxsize"]
	require.NotNil(t, boxsize)
	assert.False(t, boxsize.Optional)
	assert.Nil(t, boxsize.Default)

	chunk := runnerDef.Inputs["chunk"]
	require.NotNil(t, chunk)
	assert.True(t, chunk.Optional)
	require.NotNil(t, chunk.Default)

	assetDef := model.Assets["toolkit"]
	require.NotNil(t, assetDef)
	assert.Equal(t, "OnCreateToolkit", assetDef.Lifecycle.Create)
	assert.Equal(t, "OnDestroyToolkit", assetDef.Lifecycle.Destroy)
}

func TestLoad_RejectsDuplicateStep(t *testing.T) {
	tmpDir := t.TempDir()
	writeHCL(t, tmpDir, "modules/noop/manifest.hcl", `
		runner "noop" {
			lifecycle { on_run = "OnRunNoop" }
		}
	`)
	writeHCL(t, tmpDir, "pipeline/a.hcl", `
		step "noop" "same" {
			arguments {}
		}
	`)
	writeHCL(t, tmpDir, "pipeline/b.hcl", `
		step "noop" "same" {
			arguments {}
		}
	`)

	_, _, err := NewLoader().Load(loaderContext(), filepath.Join(tmpDir, "pipeline"), filepath.Join(tmpDir, "modules"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate step "step.noop.same"`)
}

func TestLoad_RejectsUnknownRunnerReference(t *testing.T) {
	tmpDir := t.TempDir()
	writeHCL(t, tmpDir, "pipeline/main.hcl", `
		step "missing" "x" {
			arguments {}
		}
	`)

	_, _, err := NewLoader().Load(loaderContext(), filepath.Join(tmpDir, "pipeline"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown runner type "missing"`)
}

func TestLoad_RejectsDuplicateRunnerManifest(t *testing.T) {
	tmpDir := t.TempDir()
	writeHCL(t, tmpDir, "modules/a/manifest.hcl", `
		runner "noop" {
			lifecycle { on_run = "OnRunNoop" }
		}
	`)
	writeHCL(t, tmpDir, "modules/b/manifest.hcl", `
		runner "noop" {
			lifecycle { on_run = "OnRunNoop" }
		}
	`)

	_, _, err := NewLoader().Load(loaderContext(), filepath.Join(tmpDir, "modules"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate runner manifest "noop"`)
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeHCL(t, tmpDir, "pipeline/bad.hcl", `step "noop" {`)

	_, _, err := NewLoader().Load(loaderContext(), filepath.Join(tmpDir, "pipeline"))

	require.Error(t, err)
}
