package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/dag"
)

// runStepNode executes a single step node through its registered handler.
func (e *Executor) runStepNode(ctx context.Context, n *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("step", n.ID())
	logger.Info("▶️ Starting step")

	runnerDef, ok := e.registry.DefinitionRegistry[n.StepConfig.RunnerType]
	if !ok {
		return fmt.Errorf("unknown runner type %q", n.StepConfig.RunnerType)
	}
	handlerName := runnerDef.Lifecycle.OnRun
	handler, ok := e.registry.HandlerRegistry[handlerName]
	if !ok {
		return fmt.Errorf("handler %q not registered", handlerName)
	}

	evalCtx := e.buildEvalContext(ctx, n)

	inputStruct := handler.NewInput()
	if inputStruct != nil {
		err := e.converter.DecodeBody(ctx, inputStruct, n.StepConfig.Arguments, runnerDef.Inputs, evalCtx)
		if err != nil {
			return fmt.Errorf("failed to decode arguments for %s: %w", n.ID(), err)
		}
	}

	depsStruct, err := e.buildDepsStruct(ctx, n, handler.NewDeps())
	if err != nil {
		return err
	}

	logger.Debug("Calling step run handler.", "handler", handlerName)
	handlerFunc := reflect.ValueOf(handler.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(depsStruct)}

	if inputStruct == nil {
		callArgs = append(callArgs, reflect.Zero(handlerFunc.Type().In(2)))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}

	results := handlerFunc.Call(callArgs)
	nativeOutput, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	ctyOutput, err := e.converter.ToCtyValue(nativeOutput)
	if err != nil {
		return fmt.Errorf("failed to convert handler output for %s: %w", n.ID(), err)
	}
	n.Output = ctyOutput

	logger.Info("✅ Finished step")
	return nil
}
