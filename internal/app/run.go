package app

import (
	"context"
	"fmt"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/dag"
	"github.com/vk/cryoflow/internal/executor"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.appConfig.HealthcheckPort)
	}

	if a.appConfig.Watch {
		return a.runWatch(ctx)
	}

	return a.runOnce(ctx)
}

// runOnce builds the graph from the currently loaded model and executes it
// (or, for dry runs, prints the execution plan).
func (a *App) runOnce(ctx context.Context) error {
	a.logger.Debug("Building dependency graph from config model...")
	graph, err := dag.Build(ctx, a.config, a.registry)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

	if len(graph.Nodes) == 0 {
		a.logger.Warn("No nodes found in graph, execution not required.")
		return nil
	}

	if a.appConfig.DryRun {
		return a.printPlan(graph)
	}

	a.logger.Info("🚀 Starting pipeline execution.", "nodes", len(graph.Nodes), "workers", a.appConfig.WorkerCount)
	exec := executor.New(graph, a.appConfig.WorkerCount, a.registry, a.converter)
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Pipeline finished.")

	return nil
}

// printPlan writes the topological execution plan to the output writer.
func (a *App) printPlan(graph *dag.Graph) error {
	fmt.Fprintln(a.outW, "Execution plan (dry run):")
	for i, batch := range graph.TopologicalBatches() {
		fmt.Fprintf(a.outW, "  wave %d:\n", i+1)
		for _, id := range batch {
			fmt.Fprintf(a.outW, "    %s\n", id)
		}
	}
	return nil
}
