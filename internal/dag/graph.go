// Package dag builds and validates the dependency graph for a pipeline.
// Edges come from two places: explicit depends_on lists, and implicit
// references inside argument/uses expressions (step.X.Y / resource.X.Y).
// The underlying structure is a directed dominikbraun/graph with cycle
// prevention, so an invalid pipeline is rejected before anything runs.
package dag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/cryoflow/internal/config"
	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/registry"
)

// Graph is the validated execution graph for one pipeline.
type Graph struct {
	Nodes map[string]*Node

	g graph.Graph[string, string]
}

// Build constructs a complete, validated dependency graph from a config model.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.")

	dg := &Graph{
		Nodes: make(map[string]*Node),
		g:     graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}

	// First pass: create all nodes.
	if err := dg.createNodes(model, reg); err != nil {
		return nil, err
	}
	logger.Debug("Build: node creation complete.", "node_count", len(dg.Nodes))

	// Second pass: link explicit and implicit dependencies.
	if err := dg.linkNodes(); err != nil {
		return nil, err
	}
	logger.Debug("Build: node linking complete.")

	// Third pass: seed runtime counters.
	for _, node := range dg.Nodes {
		node.setInitialCounters()
	}

	logger.Debug("Build: graph construction successful.")
	return dg, nil
}

func (dg *Graph) createNodes(model *config.Model, reg *registry.Registry) error {
	for _, r := range model.Pipeline.Resources {
		if _, ok := reg.AssetDefinitionRegistry[r.AssetType]; !ok {
			return fmt.Errorf("resource %q uses unknown asset type %q", r.Name, r.AssetType)
		}
		node := &Node{
			id:             fmt.Sprintf("resource.%s.%s", r.AssetType, r.Name),
			Type:           ResourceNode,
			ResourceConfig: r,
			Deps:           make(map[string]*Node),
			Dependents:     make(map[string]*Node),
		}
		if err := dg.addNode(node); err != nil {
			return err
		}
	}

	for _, s := range model.Pipeline.Steps {
		if _, ok := reg.DefinitionRegistry[s.RunnerType]; !ok {
			return fmt.Errorf("step %q uses unknown runner type %q", s.Name, s.RunnerType)
		}
		node := &Node{
			id:         fmt.Sprintf("step.%s.%s", s.RunnerType, s.Name),
			Type:       StepNode,
			StepConfig: s,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
		if err := dg.addNode(node); err != nil {
			return err
		}
	}

	return nil
}

func (dg *Graph) addNode(node *Node) error {
	if _, exists := dg.Nodes[node.id]; exists {
		return fmt.Errorf("duplicate node identity %q", node.id)
	}
	dg.Nodes[node.id] = node
	return dg.g.AddVertex(node.id)
}

func (dg *Graph) linkNodes() error {
	for _, node := range dg.Nodes {
		var exprs []hcl.Expression
		var explicit []string

		switch node.Type {
		case StepNode:
			explicit = node.StepConfig.DependsOn
			for _, e := range node.StepConfig.Arguments {
				exprs = append(exprs, e)
			}
			for _, e := range node.StepConfig.Uses {
				exprs = append(exprs, e)
			}
		case ResourceNode:
			explicit = node.ResourceConfig.DependsOn
			for _, e := range node.ResourceConfig.Arguments {
				exprs = append(exprs, e)
			}
		}

		for _, depID := range explicit {
			if err := dg.addEdge(depID, node.id); err != nil {
				return err
			}
		}

		for _, expr := range exprs {
			for _, traversal := range expr.Variables() {
				depID, ok := traversalToID(traversal)
				if !ok {
					continue
				}
				if err := dg.addEdge(depID, node.id); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addEdge records that toID depends on fromID.
func (dg *Graph) addEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("node %q depends on itself", toID)
	}

	fromNode, ok := dg.Nodes[fromID]
	if !ok {
		return fmt.Errorf("node %q depends on unknown node %q", toID, fromID)
	}
	toNode := dg.Nodes[toID]

	err := dg.g.AddEdge(fromID, toID)
	switch {
	case errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return fmt.Errorf("dependency cycle detected involving %q and %q", fromID, toID)
	case err != nil:
		return fmt.Errorf("failed to link %q -> %q: %w", fromID, toID, err)
	}

	toNode.Deps[fromID] = fromNode
	fromNode.Dependents[toID] = toNode
	return nil
}

// traversalToID converts an HCL variable traversal like step.downsample.d128
// into a node identity. Traversals rooted elsewhere (count, env) are not
// dependencies and are ignored.
func traversalToID(t hcl.Traversal) (string, bool) {
	root := t.RootName()
	if root != "step" && root != "resource" {
		return "", false
	}
	if len(t) < 3 {
		return "", false
	}

	typeAttr, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	nameAttr, ok := t[2].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}

	return fmt.Sprintf("%s.%s.%s", root, typeAttr.Name, nameAttr.Name), true
}

// Roots returns the nodes with no dependencies, in deterministic order.
func (dg *Graph) Roots() []*Node {
	var roots []*Node
	for _, node := range dg.Nodes {
		if len(node.Deps) == 0 {
			roots = append(roots, node)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].id < roots[j].id })
	return roots
}

// TopologicalBatches groups node IDs into waves: every node in batch N
// depends only on nodes in earlier batches. Used by dry-run reporting.
func (dg *Graph) TopologicalBatches() [][]string {
	remaining := make(map[string]int, len(dg.Nodes))
	for id, node := range dg.Nodes {
		remaining[id] = len(node.Deps)
	}

	var batches [][]string
	for len(remaining) > 0 {
		var batch []string
		for id, count := range remaining {
			if count == 0 {
				batch = append(batch, id)
			}
		}
		// A pipeline that passed Build cannot stall here; the guard keeps a
		// corrupted graph from looping forever.
		if len(batch) == 0 {
			break
		}
		sort.Strings(batch)

		for _, id := range batch {
			delete(remaining, id)
			for depID := range dg.Nodes[id].Dependents {
				if _, ok := remaining[depID]; ok {
					remaining[depID]--
				}
			}
		}
		batches = append(batches, batch)
	}

	return batches
}
