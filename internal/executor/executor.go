// Package executor runs a validated pipeline graph to completion. A fixed
// pool of workers consumes nodes as their dependencies finish. Failure
// semantics follow the shell scripts this engine replaces: the first failing
// node cancels the run, every transitive dependent is skipped, and the first
// failure is the run's result.
package executor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vk/cryoflow/internal/config"
	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/dag"
	"github.com/vk/cryoflow/internal/registry"
)

// Executor orchestrates the end-to-end execution of a pipeline graph.
type Executor struct {
	graph     *dag.Graph
	workers   int
	registry  *registry.Registry
	converter config.Converter

	ready chan *dag.Node
	wg    sync.WaitGroup

	failOnce sync.Once
	firstErr error
}

// New creates an executor for the given graph.
func New(graph *dag.Graph, workers int, reg *registry.Registry, converter config.Converter) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		graph:     graph,
		workers:   workers,
		registry:  reg,
		converter: converter,
	}
}

// Run executes the graph and blocks until every node reached a terminal
// state. It returns the first failure, or nil when all nodes are Done.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	total := len(e.graph.Nodes)
	if total == 0 {
		logger.Warn("Nothing to execute: graph is empty.")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.ready = make(chan *dag.Node, total)
	e.wg.Add(total)

	var eg errgroup.Group
	for i := 0; i < e.workers; i++ {
		workerID := i
		eg.Go(func() error {
			e.worker(runCtx, cancel, workerID)
			return nil
		})
	}

	roots := e.graph.Roots()
	logger.Debug("Seeding ready queue.", "roots", len(roots), "workers", e.workers)
	for _, n := range roots {
		e.ready <- n
	}

	e.wg.Wait()
	close(e.ready)
	_ = eg.Wait()

	// Resources whose dependent steps were skipped never hit a zero use
	// count; tear them down now. The teardown context must survive the
	// fail-fast cancellation.
	e.destroyRemaining(context.WithoutCancel(ctx))

	return e.firstErr
}

// recordFailure keeps the first failure as the run's result.
func (e *Executor) recordFailure(n *dag.Node, err error) {
	e.failOnce.Do(func() {
		e.firstErr = fmt.Errorf("%s failed: %w", n.ID(), err)
	})
}
