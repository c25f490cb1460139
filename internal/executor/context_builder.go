package executor

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/dag"
)

// buildEvalContext creates the HCL evaluation context for a node. Finished
// step dependencies appear as step.<runner_type>.<name>.output.<field>;
// finished resources with published outputs appear as
// resource.<asset_type>.<name>.<field>.
func (e *Executor) buildEvalContext(ctx context.Context, n *dag.Node) *hcl.EvalContext {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building HCL evaluation context.", "node", n.ID())

	stepOutputsByRunner := make(map[string]map[string]cty.Value)
	resourceOutputsByAsset := make(map[string]map[string]cty.Value)

	for _, depNode := range n.Deps {
		if depNode.State() != dag.Done {
			continue
		}

		output := depNode.Output
		if output == cty.NilVal {
			output = cty.EmptyObjectVal
		}

		switch depNode.Type {
		case dag.StepNode:
			runnerType := depNode.StepConfig.RunnerType
			if _, ok := stepOutputsByRunner[runnerType]; !ok {
				stepOutputsByRunner[runnerType] = make(map[string]cty.Value)
			}
			stepOutputsByRunner[runnerType][depNode.StepConfig.Name] = cty.ObjectVal(map[string]cty.Value{
				"output": output,
			})
		case dag.ResourceNode:
			assetType := depNode.ResourceConfig.AssetType
			if _, ok := resourceOutputsByAsset[assetType]; !ok {
				resourceOutputsByAsset[assetType] = make(map[string]cty.Value)
			}
			resourceOutputsByAsset[assetType][depNode.ResourceConfig.Name] = output
		}
	}

	vars := make(map[string]cty.Value)
	vars["step"] = nestedObject(stepOutputsByRunner)
	vars["resource"] = nestedObject(resourceOutputsByAsset)

	return &hcl.EvalContext{Variables: vars}
}

func nestedObject(byType map[string]map[string]cty.Value) cty.Value {
	if len(byType) == 0 {
		return cty.EmptyObjectVal
	}
	outer := make(map[string]cty.Value, len(byType))
	for typeName, instances := range byType {
		outer[typeName] = cty.ObjectVal(instances)
	}
	return cty.ObjectVal(outer)
}
