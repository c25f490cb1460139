// Package writestar provides the 'write_star' runner: it assembles a STAR
// metadata file from an image stack and serialized CTF/pose files by
// invoking the external toolkit's utilities binary.
package writestar

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
	Particles string `cryo:"particles"`
	CTF       string `cryo:"ctf"`
	Poses     string `cryo:"poses"`
	Indices   string `cryo:"ind"`
	FullPath  bool   `cryo:"full_path"`
	Output    string `cryo:"output"`
}

// Deps defines the injected resources from the 'uses' HCL block.
type Deps struct {
	Toolkit *toolkit.Toolkit `cryo:"toolkit"`
}

// Output defines the data structure returned by the runner.
type Output struct {
	Path   string `cty:"path"`
	SHA256 string `cty:"sha256"`
}

// OnRunWriteStar is the handler for the 'write_star' runner.
func OnRunWriteStar(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "write_star")

	if deps.Toolkit == nil {
		return nil, fmt.Errorf("toolkit dependency was not injected")
	}

	inv, err := toolkit.WriteStar(toolkit.WriteStarArgs{
		Particles: input.Particles,
		CTF:       input.CTF,
		Poses:     input.Poses,
		Indices:   input.Indices,
		FullPath:  input.FullPath,
		Output:    input.Output,
	})
	if err != nil {
		return nil, err
	}

	if err := deps.Toolkit.Run(ctx, inv); err != nil {
		return nil, err
	}

	sum, err := fsutil.SHA256File(input.Output)
	if err != nil {
		return nil, fmt.Errorf("toolkit reported success but output artifact is unreadable: %w", err)
	}

	logger.Info("STAR file written.", "output", input.Output)
	return &Output{Path: input.Output, SHA256: sum}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunWriteStar", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunWriteStar,
	})
}
