// Package scratch provides the 'scratch_dir' asset: a temporary working
// directory created before the pipeline's steps run and removed after the
// last step using it finishes.
package scratch

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Prefix string `cryo:"prefix"`
	Keep   bool   `cryo:"keep"`
}

// Dir is the created scratch directory instance.
type Dir struct {
	Path string
	keep bool
}

// CtyOutputs publishes the directory path for pipeline expressions, e.g.
// "${resource.scratch_dir.work.path}/ctf.pkl".
func (d *Dir) CtyOutputs() map[string]any {
	return map[string]any{"path": d.Path}
}

// OnCreateScratchDir creates the temporary directory.
func OnCreateScratchDir(ctx context.Context, input *Input) (any, error) {
	logger := ctxlog.FromContext(ctx)

	path, err := os.MkdirTemp("", input.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	logger.Info("Scratch directory created.", "path", path)
	return &Dir{Path: path, keep: input.Keep}, nil
}

// OnDestroyScratchDir removes the directory unless the pipeline asked to
// keep it for inspection.
func OnDestroyScratchDir(ctx context.Context, instance any) error {
	logger := ctxlog.FromContext(ctx)

	dir, ok := instance.(*Dir)
	if !ok {
		return fmt.Errorf("scratch destroy received unexpected instance type %T", instance)
	}

	if dir.keep {
		logger.Info("Scratch directory kept.", "path", dir.Path)
		return nil
	}

	logger.Debug("Removing scratch directory.", "path", dir.Path)
	return os.RemoveAll(dir.Path)
}

// Register registers the asset handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	asset := &registry.RegisteredAsset{
		NewInput:  func() any { return new(Input) },
		CreateFn:  OnCreateScratchDir,
		DestroyFn: OnDestroyScratchDir,
	}
	r.RegisterAssetHandler("OnCreateScratchDir", asset)
	r.RegisterAssetHandler("OnDestroyScratchDir", asset)
}
