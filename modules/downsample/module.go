// Package downsample provides the 'downsample' runner: it reduces an image
// stack to a smaller box size by invoking the external toolkit.
package downsample

import (
	"context"
	"fmt"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/fsutil"
	"github.com/vk/cryoflow/internal/registry"
	"github.com/vk/cryoflow/internal/toolkit"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Input   string `cryo:"input"`
	BoxSize int    `cryo:"boxsize"`
	Chunk   int    `cryo:"chunk"`
	Indices string `cryo:"ind"`
	Datadir string `cryo:"datadir"`
	Output  string `cryo:"output"`
}

// Deps defines the injected resources from the 'uses' HCL block.
type Deps struct {
	Toolkit *toolkit.Toolkit `cryo:"toolkit"`
}

// Output defines the data structure returned by the runner. A chunked run
// writes several numbered files next to Path, so SHA256 is empty then.
type Output struct {
	Path   string `cty:"path"`
	SHA256 string `cty:"sha256"`
}

// OnRunDownsample is the handler for the 'downsample' runner.
func OnRunDownsample(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "downsample")

	if deps.Toolkit == nil {
		return nil, fmt.Errorf("toolkit dependency was not injected")
	}

	inv, err := toolkit.Downsample(toolkit.DownsampleArgs{
		Input:   input.Input,
		BoxSize: input.BoxSize,
		Chunk:   input.Chunk,
		Indices: input.Indices,
		Datadir: input.Datadir,
		Output:  input.Output,
	})
	if err != nil {
		return nil, err
	}

	if err := deps.Toolkit.Run(ctx, inv); err != nil {
		return nil, err
	}

	out := &Output{Path: input.Output}
	if input.Chunk == 0 {
		sum, err := fsutil.SHA256File(input.Output)
		if err != nil {
			return nil, fmt.Errorf("toolkit reported success but output artifact is unreadable: %w", err)
		}
		out.SHA256 = sum
	}

	logger.Info("Stack downsampled.", "output", input.Output, "boxsize", input.BoxSize)
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunDownsample", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunDownsample,
	})
}
