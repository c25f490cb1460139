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

// spyAssetModule registers an asset that counts create/destroy calls and a
// runner that records which instance it was handed.
type spyAssetModule struct {
	creates   atomic.Int64
	destroys  atomic.Int64
	instances []any
	failStep  bool
}

type spyInstance struct {
	serial int64
}

type spyDeps struct {
	Res *spyInstance `cryo:"res"`
}

func (m *spyAssetModule) Register(r *registry.Registry) {
	asset := &registry.RegisteredAsset{
		NewInput: func() any { return new(struct{}) },
		CreateFn: func(ctx context.Context, input *struct{}) (any, error) {
			return &spyInstance{serial: m.creates.Add(1)}, nil
		},
		DestroyFn: func(ctx context.Context, instance any) error {
			m.destroys.Add(1)
			return nil
		},
	}
	r.RegisterAssetHandler("OnCreateSpyRes", asset)
	r.RegisterAssetHandler("OnDestroySpyRes", asset)

	r.RegisterRunner("OnRunUser", &registry.RegisteredRunner{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(spyDeps) },
		Fn: func(ctx context.Context, deps *spyDeps, input *struct{}) (any, error) {
			m.instances = append(m.instances, deps.Res)
			if m.failStep {
				return nil, errors.New("user step failed")
			}
			return nil, nil
		},
	})
}

func lifecycleFiles() map[string]string {
	return map[string]string{
		"modules/spy_res/manifest.hcl": `
			asset "spy_res" {
				lifecycle {
					create  = "OnCreateSpyRes"
					destroy = "OnDestroySpyRes"
				}
			}
		`,
		"modules/user/manifest.hcl": `
			runner "user" {
				lifecycle { on_run = "OnRunUser" }
				uses "res" {
					asset_type = "spy_res"
				}
			}
		`,
		"pipeline/main.hcl": `
			resource "spy_res" "shared" {
				arguments {}
			}

			step "user" "a" {
				arguments {}
				uses { res = resource.spy_res.shared }
			}

			step "user" "b" {
				arguments {}
				uses { res = resource.spy_res.shared }
				depends_on = ["step.user.a"]
			}
		`,
	}
}

func TestResource_CreatedOnceSharedAndDestroyed(t *testing.T) {
	mod := &spyAssetModule{}
	result := testutil.RunPipelineTest(t, lifecycleFiles(), mod)

	require.NoError(t, result.Err)
	assert.Equal(t, int64(1), mod.creates.Load(), "resource should be created exactly once")
	assert.Equal(t, int64(1), mod.destroys.Load(), "resource should be destroyed exactly once")

	require.Len(t, mod.instances, 2)
	assert.Same(t, mod.instances[0], mod.instances[1], "both steps should share one instance")
}

func TestResource_DestroyedWhenDependentStepFails(t *testing.T) {
	mod := &spyAssetModule{failStep: true}
	result := testutil.RunPipelineTest(t, lifecycleFiles(), mod)

	require.Error(t, result.Err)
	assert.Equal(t, int64(1), mod.creates.Load())
	assert.Equal(t, int64(1), mod.destroys.Load(), "teardown must run even when the pipeline fails")
}
