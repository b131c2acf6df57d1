package dag

import (
	"sync"
	"sync/atomic"

	"github.com/vk/conveyor/internal/matrix"
	"github.com/vk/conveyor/internal/report"
)

// Graph is the executable DAG of job instances for one run.
type Graph struct {
	// Nodes stores all nodes, keyed by instance ID.
	Nodes map[string]*Node
	// Order preserves matrix expansion order, which is the canonical
	// reporting order. Execution order is unspecified beyond readiness.
	Order []string
}

// Node is one job instance plus its runtime state. Deps and Dependents are
// fixed after Build; status and Result are mutated only by the executor.
type Node struct {
	ID       string
	Instance *matrix.Instance

	Deps       map[string]*Node
	Dependents map[string]*Node

	// depCount tracks unfinished dependencies; the node becomes ready when
	// it reaches zero.
	depCount atomic.Int32
	state    atomic.Int32

	// finishOnce guards the single transition into a terminal status.
	finishOnce sync.Once

	// Result accumulates the node's report entry. Identity fields are set
	// at build time; the executing worker owns the rest.
	Result report.JobResult
}

// Status returns the node's current runtime status.
func (n *Node) Status() report.Status {
	return report.Status(n.state.Load())
}

func (n *Node) setStatus(s report.Status) {
	n.state.Store(int32(s))
}
