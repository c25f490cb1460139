package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/dag"
	"github.com/vk/cryoflow/internal/registry"
)

// runResourceNode creates a resource instance through its asset's create
// handler and stores it on the node for dependency injection.
func (e *Executor) runResourceNode(ctx context.Context, n *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("resource", n.ID())
	logger.Info("🔧 Creating resource")

	assetDef, ok := e.registry.AssetDefinitionRegistry[n.ResourceConfig.AssetType]
	if !ok {
		return fmt.Errorf("unknown asset type %q", n.ResourceConfig.AssetType)
	}
	handler, ok := e.registry.AssetHandlerRegistry[assetDef.Lifecycle.Create]
	if !ok {
		return fmt.Errorf("create handler %q not registered", assetDef.Lifecycle.Create)
	}

	evalCtx := e.buildEvalContext(ctx, n)

	inputStruct := handler.NewInput()
	if inputStruct != nil {
		err := e.converter.DecodeBody(ctx, inputStruct, n.ResourceConfig.Arguments, assetDef.Inputs, evalCtx)
		if err != nil {
			return fmt.Errorf("failed to decode arguments for %s: %w", n.ID(), err)
		}
	}

	createFunc := reflect.ValueOf(handler.CreateFn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx)}
	if inputStruct == nil {
		callArgs = append(callArgs, reflect.Zero(createFunc.Type().In(1)))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}

	results := createFunc.Call(callArgs)
	instance, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}
	n.Instance = instance

	// Asset instances may publish values for pipeline expressions, e.g. a
	// scratch directory's path.
	if provider, ok := instance.(registry.OutputProvider); ok {
		outputs := provider.CtyOutputs()
		vals := make(map[string]cty.Value, len(outputs))
		for name, v := range outputs {
			cv, err := e.converter.ToCtyValue(v)
			if err != nil {
				return fmt.Errorf("failed to convert output %q of %s: %w", name, n.ID(), err)
			}
			vals[name] = cv
		}
		if len(vals) > 0 {
			n.Output = cty.ObjectVal(vals)
		}
	}

	logger.Info("✅ Resource ready")
	return nil
}

// destroyResource tears down a created resource exactly once.
func (e *Executor) destroyResource(ctx context.Context, n *dag.Node) {
	if !n.MarkDestroyed() {
		return
	}

	logger := ctxlog.FromContext(ctx).With("resource", n.ID())
	if n.Instance == nil {
		return
	}

	assetDef, ok := e.registry.AssetDefinitionRegistry[n.ResourceConfig.AssetType]
	if !ok {
		logger.Error("Cannot destroy resource: unknown asset type.", "assetType", n.ResourceConfig.AssetType)
		return
	}
	handler, ok := e.registry.AssetHandlerRegistry[assetDef.Lifecycle.Destroy]
	if !ok {
		logger.Error("Cannot destroy resource: destroy handler not registered.", "handler", assetDef.Lifecycle.Destroy)
		return
	}

	logger.Info("🧹 Destroying resource")
	destroyFunc := reflect.ValueOf(handler.DestroyFn)
	results := destroyFunc.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(n.Instance)})
	if errResult := results[0].Interface(); errResult != nil {
		// A failed teardown does not fail the run; the artifacts are intact.
		logger.Error("Resource destroy failed.", "error", errResult.(error))
	}
}

// destroyRemaining tears down any created resources that were not released
// through the normal use-count path (their dependent steps were skipped).
func (e *Executor) destroyRemaining(ctx context.Context) {
	for _, n := range e.graph.Nodes {
		if n.Type == dag.ResourceNode && n.Instance != nil {
			e.destroyResource(ctx, n)
		}
	}
}
