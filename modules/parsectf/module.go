// Package parsectf provides the 'parse_ctf_star' runner: it extracts CTF
// parameters from a STAR file into a serialized parameter file by invoking
// the external toolkit.
package parsectf

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
	Input             string  `cryo:"input"`
	BoxSize           int     `cryo:"boxsize"`
	Apix              float64 `cryo:"apix"`
	Voltage           float64 `cryo:"kv"`
	SphericalAberr    float64 `cryo:"cs"`
	AmplitudeContrast float64 `cryo:"w"`
	PhaseShift        float64 `cryo:"ps"`
	Output            string  `cryo:"output"`
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

// OnRunParseCtfStar is the handler for the 'parse_ctf_star' runner.
func OnRunParseCtfStar(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "parse_ctf_star")

	if deps.Toolkit == nil {
		return nil, fmt.Errorf("toolkit dependency was not injected")
	}

	inv, err := toolkit.ParseCTFStar(toolkit.ParseCTFArgs{
		Input:             input.Input,
		BoxSize:           input.BoxSize,
		Apix:              input.Apix,
		Voltage:           input.Voltage,
		SphericalAberr:    input.SphericalAberr,
		AmplitudeContrast: input.AmplitudeContrast,
		PhaseShift:        input.PhaseShift,
		Output:            input.Output,
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

	logger.Info("CTF parameters extracted.", "output", input.Output)
	return &Output{Path: input.Output, SHA256: sum}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunParseCtfStar", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunParseCtfStar,
	})
}
