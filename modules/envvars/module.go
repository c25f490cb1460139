// Package envvars provides the 'env_vars' runner for reading process
// environment variables into pipeline expressions, e.g. dataset root paths.
package envvars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/cryoflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the env_vars runner.
type Input struct {
	Names []string `cryo:"names"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output defines the data structure returned by the runner.
type Output struct {
	Values map[string]string `cty:"values"`
}

// OnRunEnvVars is the handler for the 'env_vars' runner. With no names it
// returns the whole environment; otherwise only the named variables, with
// unset ones mapped to empty strings.
func OnRunEnvVars(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	values := make(map[string]string)

	if len(input.Names) == 0 {
		for _, e := range os.Environ() {
			pair := strings.SplitN(e, "=", 2)
			if len(pair) == 2 {
				values[pair[0]] = pair[1]
			}
		}
		return &Output{Values: values}, nil
	}

	for _, name := range input.Names {
		values[name] = os.Getenv(name)
	}
	return &Output{Values: values}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunEnvVars", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunEnvVars,
	})
}
