// Package toolkitres provides the 'toolkit' asset: a configured installation
// of the external reconstruction toolkit, shared by every step that invokes
// one of its subcommands.
package toolkitres

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/registry"
	"github.com/vk/cryoflow/internal/toolkit"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Binary      string            `cryo:"binary"`
	UtilsBinary string            `cryo:"utils_binary"`
	Env         map[string]string `cryo:"env"`
	Trace       bool              `cryo:"trace"`
}

// OnCreateToolkit resolves the toolkit binaries and returns the shared instance.
func OnCreateToolkit(ctx context.Context, input *Input) (any, error) {
	logger := ctxlog.FromContext(ctx)

	tk, err := toolkit.New(input.Binary, input.UtilsBinary)
	if err != nil {
		return nil, err
	}

	if len(input.Env) > 0 {
		keys := make([]string, 0, len(input.Env))
		for k := range input.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tk.Env = append(tk.Env, fmt.Sprintf("%s=%s", k, input.Env[k]))
		}
	}
	if !input.Trace {
		tk.Trace = nil
	}

	logger.Info("Toolkit resolved.", "binary", tk.Binary, "utils_binary", tk.UtilsBinary)
	return tk, nil
}

// OnDestroyToolkit releases the toolkit. The binaries are external; there is
// nothing to tear down beyond logging.
func OnDestroyToolkit(ctx context.Context, instance any) error {
	ctxlog.FromContext(ctx).Debug("Toolkit released.")
	return nil
}

// Register registers the asset handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	asset := &registry.RegisteredAsset{
		NewInput:  func() any { return new(Input) },
		CreateFn:  OnCreateToolkit,
		DestroyFn: OnDestroyToolkit,
	}
	r.RegisterAssetHandler("OnCreateToolkit", asset)
	r.RegisterAssetHandler("OnDestroyToolkit", asset)
}
