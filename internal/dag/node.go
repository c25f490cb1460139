package dag

import (
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/cryoflow/internal/config"
)

// NodeType distinguishes runnable steps from managed resources.
type NodeType int

const (
	StepNode NodeType = iota
	ResourceNode
)

// State is the runtime execution state of a node.
type State int32

const (
	Pending State = iota
	Running
	Done
	Failed
	Skipped
)

// String returns the lowercase name of the state for logs.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Node is a single vertex in the execution graph: either one step (a toolkit
// invocation, script, or assertion) or one resource instance.
type Node struct {
	id   string
	Type NodeType

	StepConfig     *config.Step
	ResourceConfig *config.Resource

	// Deps and Dependents are populated during Build and immutable afterwards.
	Deps       map[string]*Node
	Dependents map[string]*Node

	// Output is set exactly once, by the worker that completes the node.
	Output cty.Value

	// Instance holds the created asset instance for resource nodes.
	Instance any

	// Err records why the node failed or was skipped.
	Err error

	state     atomic.Int32
	depCount  atomic.Int32
	useCount  atomic.Int32
	destroyed atomic.Bool
}

// ID returns the canonical node identity, e.g. "step.downsample.particles".
func (n *Node) ID() string { return n.id }

// State returns the node's current execution state.
func (n *Node) State() State { return State(n.state.Load()) }

// SetState unconditionally moves the node to the given state.
func (n *Node) SetState(s State) { n.state.Store(int32(s)) }

// TransitionState atomically moves the node from one state to another. It
// reports false when the node was no longer in the expected state, which
// callers use to avoid double-skipping during fail-fast teardown.
func (n *Node) TransitionState(from, to State) bool {
	return n.state.CompareAndSwap(int32(from), int32(to))
}

// DecrementDepCount marks one dependency as finished and returns the number
// still outstanding.
func (n *Node) DecrementDepCount() int32 { return n.depCount.Add(-1) }

// DecrementUseCount marks one dependent step as finished with this resource
// and returns the number still outstanding.
func (n *Node) DecrementUseCount() int32 { return n.useCount.Add(-1) }

// MarkDestroyed flags the resource as torn down. It reports false when the
// resource was already destroyed, so teardown runs at most once.
func (n *Node) MarkDestroyed() bool { return n.destroyed.CompareAndSwap(false, true) }

// setInitialCounters seeds the dependency counter from the linked graph and,
// for resources, the count of step nodes that use it.
func (n *Node) setInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))

	if n.Type == ResourceNode {
		var uses int32
		for _, dep := range n.Dependents {
			if dep.Type == StepNode {
				uses++
			}
		}
		n.useCount.Store(uses)
	}
}
