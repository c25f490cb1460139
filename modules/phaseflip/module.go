// Package phaseflip provides the 'phase_flip' runner: it applies CTF phase
// correction to an image stack via the external toolkit's utilities binary.
package phaseflip

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
	Input  string `cryo:"input"`
	CTF    string `cryo:"ctf"`
	Output string `cryo:"output"`
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

// OnRunPhaseFlip is the handler for the 'phase_flip' runner.
func OnRunPhaseFlip(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "phase_flip")

	if deps.Toolkit == nil {
		return nil, fmt.Errorf("toolkit dependency was not injected")
	}

	inv, err := toolkit.PhaseFlip(toolkit.PhaseFlipArgs{
		Input:  input.Input,
		CTF:    input.CTF,
		Output: input.Output,
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

	logger.Info("Stack phase-flipped.", "output", input.Output)
	return &Output{Path: input.Output, SHA256: sum}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunPhaseFlip", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunPhaseFlip,
	})
}
