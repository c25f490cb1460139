package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/dag"
)

// buildDepsStruct populates a handler's deps struct by resolving each field's
// `cryo` tag against the step's 'uses' block and injecting the matching
// resource instance.
func (e *Executor) buildDepsStruct(ctx context.Context, n *dag.Node, depsStruct any) (any, error) {
	logger := ctxlog.FromContext(ctx)

	if n.StepConfig == nil || n.StepConfig.Uses == nil {
		return depsStruct, nil
	}

	usesMap := n.StepConfig.Uses
	depsValue := reflect.ValueOf(depsStruct).Elem()
	depsType := depsValue.Type()

	for i := 0; i < depsValue.NumField(); i++ {
		field := depsType.Field(i)

		tag := field.Tag.Get("cryo")
		if tag == "" || tag == "-" {
			continue
		}
		lookupKey := strings.Split(tag, ",")[0]

		resourceExpr, ok := usesMap[lookupKey]
		if !ok {
			continue
		}

		vars := resourceExpr.Variables()
		if len(vars) != 1 {
			return nil, fmt.Errorf("field %q in 'uses' must be a direct reference to one resource", lookupKey)
		}
		resourceID, err := resourceTraversalID(vars[0])
		if err != nil {
			return nil, err
		}

		resourceNode, found := e.graph.Nodes[resourceID]
		if !found || resourceNode.Instance == nil {
			return nil, fmt.Errorf("step %q requires resource %q, which has not been created", n.ID(), resourceID)
		}
		instance := resourceNode.Instance

		instanceType := reflect.TypeOf(instance)
		fieldType := field.Type

		if fieldType.Kind() == reflect.Interface {
			if !instanceType.Implements(fieldType) {
				return nil, fmt.Errorf("type mismatch for %q: resource of type %v does not implement %v", lookupKey, instanceType, fieldType)
			}
		} else if !instanceType.AssignableTo(fieldType) {
			return nil, fmt.Errorf("type mismatch for %q: resource of type %v is not assignable to %v", lookupKey, instanceType, fieldType)
		}

		logger.Debug("Injecting resource dependency.", "step", n.ID(), "field", field.Name, "resource", resourceID)
		depsValue.Field(i).Set(reflect.ValueOf(instance))
	}

	return depsStruct, nil
}

// resourceTraversalID converts an HCL traversal for a resource into its
// canonical node identity.
func resourceTraversalID(t hcl.Traversal) (string, error) {
	if t.RootName() != "resource" || len(t) < 3 {
		return "", fmt.Errorf("'uses' entries must reference resource.<asset_type>.<name>")
	}
	typeAttr, ok1 := t[1].(hcl.TraverseAttr)
	nameAttr, ok2 := t[2].(hcl.TraverseAttr)
	if !ok1 || !ok2 {
		return "", fmt.Errorf("'uses' entries must reference resource.<asset_type>.<name>")
	}
	return fmt.Sprintf("resource.%s.%s", typeAttr.Name, nameAttr.Name), nil
}
