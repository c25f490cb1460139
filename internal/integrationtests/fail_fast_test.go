package integrationtests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cryoflow/internal/registry"
	"github.com/vk/cryoflow/internal/testutil"
)

// failerSpyModule registers a runner that fails with an injected error and a
// spy runner that records whether it ever executed.
type failerSpyModule struct {
	injectedError error
	spyExecuted   *atomic.Bool
}

func (m *failerSpyModule) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunFailer", &registry.RegisteredRunner{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps *struct{}, input *struct{}) (any, error) {
			return nil, m.injectedError
		},
	})
	r.RegisterRunner("OnRunSpy", &registry.RegisteredRunner{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps *struct{}, input *struct{}) (any, error) {
			m.spyExecuted.Store(true)
			return nil, nil
		},
	})
}

func TestFailingStep_SkipsDependentsAndFailsRun(t *testing.T) {
	expectedErr := errors.New("handler failed as expected")
	var spyExecuted atomic.Bool

	files := map[string]string{
		"modules/failer/manifest.hcl": `
			runner "failer" {
				lifecycle { on_run = "OnRunFailer" }
			}
		`,
		"modules/spy/manifest.hcl": `
			runner "spy" {
				lifecycle { on_run = "OnRunSpy" }
			}
		`,
		"pipeline/main.hcl": `
			step "failer" "broken" {
				arguments {}
			}

			step "spy" "downstream" {
				arguments {}
				depends_on = ["step.failer.broken"]
			}
		`,
	}

	mod := &failerSpyModule{injectedError: expectedErr, spyExecuted: &spyExecuted}
	result := testutil.RunPipelineTest(t, files, mod)

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, expectedErr)
	assert.False(t, spyExecuted.Load(), "a step dependent on the failing step was executed")
	assert.Contains(t, result.LogOutput, "Skipping node")
}

func TestFailingStep_DoesNotStopIndependentBranch(t *testing.T) {
	var spyExecuted atomic.Bool
	mod := &failerSpyModule{injectedError: errors.New("boom"), spyExecuted: &spyExecuted}

	files := map[string]string{
		"modules/failer/manifest.hcl": `
			runner "failer" {
				lifecycle { on_run = "OnRunFailer" }
			}
		`,
		"modules/spy/manifest.hcl": `
			runner "spy" {
				lifecycle { on_run = "OnRunSpy" }
			}
		`,
		// The spy has no dependency on the failer. With fail-fast it may or
		// may not run depending on scheduling, so it runs first.
		"pipeline/main.hcl": `
			step "spy" "independent" {
				arguments {}
			}

			step "failer" "broken" {
				arguments {}
				depends_on = ["step.spy.independent"]
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, mod)

	require.Error(t, result.Err)
	assert.True(t, spyExecuted.Load(), "upstream step should have run before the failure")
}
