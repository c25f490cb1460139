package executor

import (
	"context"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/dag"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range e.ready {
		workerLogger := logger.With("workerID", workerID, "nodeID", n.ID())

		// After a failure the run context is cancelled; drain the queue by
		// skipping whatever is still pending.
		if ctx.Err() != nil {
			if n.TransitionState(dag.Pending, dag.Skipped) {
				n.Err = ctx.Err()
				workerLogger.Debug("Node skipped: run cancelled.")
				e.wg.Done()
				// Its dependents will never be enqueued; settle them too.
				e.skipDependents(ctx, n, ctx.Err())
			}
			continue
		}

		// A node can be skipped by a failing dependency while queued; its
		// accounting was settled by the skipper.
		if !n.TransitionState(dag.Pending, dag.Running) {
			continue
		}

		var err error
		switch n.Type {
		case dag.ResourceNode:
			err = e.runResourceNode(ctx, n)
		case dag.StepNode:
			err = e.runStepNode(ctx, n)
		}

		if err != nil {
			workerLogger.Error("Node execution failed.", "error", err)
			n.Err = err
			n.SetState(dag.Failed)
			e.recordFailure(n, err)
			cancel()
			e.skipDependents(ctx, n, err)
			e.wg.Done()
			continue
		}

		workerLogger.Debug("Node execution succeeded.")
		n.SetState(dag.Done)

		for _, dependent := range n.Dependents {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.ID())
				e.ready <- dependent
			}
		}

		// A finished step releases its resources; the last release triggers
		// the resource's destroy handler.
		if n.Type == dag.StepNode {
			for _, dep := range n.Deps {
				if dep.Type == dag.ResourceNode && dep.DecrementUseCount() == 0 {
					e.destroyResource(ctx, dep)
				}
			}
		}

		e.wg.Done()
	}

	logger.Debug("Worker finished.", "workerID", workerID)
}

// skipDependents marks every transitive dependent of a failed node as
// Skipped. Each node's wait-group slot is settled exactly once, guarded by
// the Pending->Skipped transition.
func (e *Executor) skipDependents(ctx context.Context, n *dag.Node, cause error) {
	logger := ctxlog.FromContext(ctx)

	for _, dependent := range n.Dependents {
		if !dependent.TransitionState(dag.Pending, dag.Skipped) {
			continue
		}
		dependent.Err = cause
		logger.Info("⏭️ Skipping node: upstream failure.", "nodeID", dependent.ID(), "failed", n.ID())
		e.wg.Done()
		e.skipDependents(ctx, dependent, cause)
	}
}
