// Package registry provides the central glue for the module system.
//
// The Registry stores mappings between the string identifiers used in module
// manifests (e.g. "OnRunDownsample") and the compiled Go functions and types
// that implement each module. During startup the registry is populated and
// then validated so that drift between the Go code and the manifests fails
// before anything executes.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/vk/cryoflow/internal/config"
	"github.com/vk/cryoflow/internal/ctxlog"
)

// Module is the interface that all modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredRunner holds the compiled Go parts of a runner's lifecycle.
// Fn must have the shape func(ctx, *Deps, *Input) (*Output, error).
type RegisteredRunner struct {
	NewInput func() any
	NewDeps  func() any
	Fn       any
}

// RegisteredAsset holds the compiled Go parts of an asset's lifecycle.
// CreateFn has the shape func(ctx, *Input) (any, error); DestroyFn has the
// shape func(ctx, instance any) error.
type RegisteredAsset struct {
	NewInput  func() any
	CreateFn  any
	DestroyFn any
}

// OutputProvider is implemented by asset instances that expose values
// referenceable from pipeline expressions (resource.<type>.<name>.<field>).
type OutputProvider interface {
	CtyOutputs() map[string]any
}

// Registry holds all registered handlers, definitions, and interfaces for a
// single application instance.
type Registry struct {
	HandlerRegistry         map[string]*RegisteredRunner
	AssetHandlerRegistry    map[string]*RegisteredAsset
	DefinitionRegistry      map[string]*config.RunnerDefinition
	AssetDefinitionRegistry map[string]*config.AssetDefinition
	AssetInterfaceRegistry  map[string]reflect.Type
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		HandlerRegistry:         make(map[string]*RegisteredRunner),
		AssetHandlerRegistry:    make(map[string]*RegisteredAsset),
		DefinitionRegistry:      make(map[string]*config.RunnerDefinition),
		AssetDefinitionRegistry: make(map[string]*config.AssetDefinition),
		AssetInterfaceRegistry:  make(map[string]reflect.Type),
	}
}

// RegisterRunner registers a Go function for a runner's lifecycle event.
func (r *Registry) RegisterRunner(name string, handler *RegisteredRunner) {
	if _, exists := r.HandlerRegistry[name]; exists {
		panic(fmt.Sprintf("runner handler with name '%s' already registered", name))
	}
	slog.Debug("Registering runner handler.", "name", name)
	r.HandlerRegistry[name] = handler
}

// RegisterAssetHandler registers Go functions for an asset's lifecycle events.
func (r *Registry) RegisterAssetHandler(name string, handler *RegisteredAsset) {
	if _, exists := r.AssetHandlerRegistry[name]; exists {
		panic(fmt.Sprintf("asset handler with name '%s' already registered", name))
	}
	slog.Debug("Registering asset handler.", "name", name)
	r.AssetHandlerRegistry[name] = handler
}

// RegisterAssetInterface registers the Go interface contract for an asset type.
func (r *Registry) RegisterAssetInterface(assetType string, iface reflect.Type) {
	if _, exists := r.AssetInterfaceRegistry[assetType]; exists {
		panic(fmt.Sprintf("interface for asset type '%s' already registered", assetType))
	}
	slog.Debug("Registering asset interface.", "assetType", assetType, "interface", iface.String())
	r.AssetInterfaceRegistry[assetType] = iface
}

// PopulateDefinitionsFromModel copies the loaded module definitions from the
// config model into the registry for access during execution. Re-population
// (watch mode reload) replaces previous definitions.
func (r *Registry) PopulateDefinitionsFromModel(model *config.Model) {
	r.DefinitionRegistry = make(map[string]*config.RunnerDefinition, len(model.Runners))
	r.AssetDefinitionRegistry = make(map[string]*config.AssetDefinition, len(model.Assets))
	for key, val := range model.Runners {
		r.DefinitionRegistry[key] = val
	}
	for key, val := range model.Assets {
		r.AssetDefinitionRegistry[key] = val
	}
}

// ValidateRegistry verifies that every manifest lifecycle name resolves to a
// registered Go handler. A mismatch is a packaging error, not a user error.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	for runnerType, def := range r.DefinitionRegistry {
		if def.Lifecycle == nil || def.Lifecycle.OnRun == "" {
			return fmt.Errorf("runner manifest %q declares no on_run handler", runnerType)
		}
		if _, ok := r.HandlerRegistry[def.Lifecycle.OnRun]; !ok {
			return fmt.Errorf("runner manifest %q references unregistered handler %q", runnerType, def.Lifecycle.OnRun)
		}
	}

	for assetType, def := range r.AssetDefinitionRegistry {
		if def.Lifecycle == nil {
			return fmt.Errorf("asset manifest %q declares no lifecycle", assetType)
		}
		if _, ok := r.AssetHandlerRegistry[def.Lifecycle.Create]; !ok {
			return fmt.Errorf("asset manifest %q references unregistered create handler %q", assetType, def.Lifecycle.Create)
		}
		if _, ok := r.AssetHandlerRegistry[def.Lifecycle.Destroy]; !ok {
			return fmt.Errorf("asset manifest %q references unregistered destroy handler %q", assetType, def.Lifecycle.Destroy)
		}
	}

	logger.Debug("Registry validation passed.",
		"runner_handlers", len(r.HandlerRegistry),
		"asset_handlers", len(r.AssetHandlerRegistry),
	)
	return nil
}
