package integrationtests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cryoflow/internal/registry"
	"github.com/vk/cryoflow/internal/testutil"
)

func noopModule(handlerName string) *testutil.SimpleModule {
	return &testutil.SimpleModule{
		RunnerName: handlerName,
		Runner: &registry.RegisteredRunner{
			NewInput: func() any { return new(struct{}) },
			NewDeps:  func() any { return new(struct{}) },
			Fn: func(ctx context.Context, deps *struct{}, input *struct{}) (any, error) {
				return nil, nil
			},
		},
	}
}

func TestLoader_RejectsMalformedHCL(t *testing.T) {
	files := map[string]string{
		"pipeline/main.hcl": `
			step "noop" "broken" {
				arguments {
		`,
	}

	result := testutil.RunPipelineTest(t, files, noopModule("OnRunNoop"))

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "panicked")
}

func TestLoader_RejectsUnknownRunnerType(t *testing.T) {
	files := map[string]string{
		"modules/noop/manifest.hcl": `
			runner "noop" {
				lifecycle { on_run = "OnRunNoop" }
			}
		`,
		"pipeline/main.hcl": `
			step "does_not_exist" "x" {
				arguments {}
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, noopModule("OnRunNoop"))

	require.Error(t, result.Err)
}

func TestLoader_RejectsManifestWithoutHandler(t *testing.T) {
	// The manifest names a handler that no compiled module registered.
	files := map[string]string{
		"modules/ghost/manifest.hcl": `
			runner "ghost" {
				lifecycle { on_run = "OnRunGhost" }
			}
		`,
		"pipeline/main.hcl": `
			step "ghost" "x" {
				arguments {}
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, noopModule("OnRunNoop"))

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "panicked")
}

func TestLoader_RejectsDuplicateStepIdentity(t *testing.T) {
	files := map[string]string{
		"modules/noop/manifest.hcl": `
			runner "noop" {
				lifecycle { on_run = "OnRunNoop" }
			}
		`,
		"pipeline/main.hcl": `
			step "noop" "same" {
				arguments {}
			}

			step "noop" "same" {
				arguments {}
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, noopModule("OnRunNoop"))

	require.Error(t, result.Err)
}

func TestRun_FailsOnMissingRequiredArgument(t *testing.T) {
	type strictInput struct {
		Path string `cryo:"path"`
	}
	mod := &testutil.SimpleModule{
		RunnerName: "OnRunStrict",
		Runner: &registry.RegisteredRunner{
			NewInput: func() any { return new(strictInput) },
			NewDeps:  func() any { return new(struct{}) },
			Fn: func(ctx context.Context, deps *struct{}, input *strictInput) (any, error) {
				return nil, nil
			},
		},
	}

	files := map[string]string{
		"modules/strict/manifest.hcl": `
			runner "strict" {
				lifecycle { on_run = "OnRunStrict" }
				input "path" {}
			}
		`,
		"pipeline/main.hcl": `
			step "strict" "x" {
				arguments {}
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, mod)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), `missing required argument "path"`)
}

func TestRun_AppliesManifestDefault(t *testing.T) {
	type defaultedInput struct {
		Level int `cryo:"level"`
	}
	var got int
	mod := &testutil.SimpleModule{
		RunnerName: "OnRunDefaulted",
		Runner: &registry.RegisteredRunner{
			NewInput: func() any { return new(defaultedInput) },
			NewDeps:  func() any { return new(struct{}) },
			Fn: func(ctx context.Context, deps *struct{}, input *defaultedInput) (any, error) {
				got = input.Level
				return nil, nil
			},
		},
	}

	files := map[string]string{
		"modules/defaulted/manifest.hcl": `
			runner "defaulted" {
				lifecycle { on_run = "OnRunDefaulted" }
				input "level" {
					default = 3
				}
			}
		`,
		"pipeline/main.hcl": `
			step "defaulted" "x" {
				arguments {}
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, mod)

	require.NoError(t, result.Err)
	assert.Equal(t, 3, got)
}

func TestRun_RejectsDependencyCycle(t *testing.T) {
	files := map[string]string{
		"modules/noop/manifest.hcl": `
			runner "noop" {
				lifecycle { on_run = "OnRunNoop" }
			}
		`,
		"pipeline/main.hcl": `
			step "noop" "a" {
				arguments {}
				depends_on = ["step.noop.b"]
			}

			step "noop" "b" {
				arguments {}
				depends_on = ["step.noop.a"]
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, noopModule("OnRunNoop"))

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "cycle")
}
