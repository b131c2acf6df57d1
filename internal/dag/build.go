package dag

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/ctxlog"
	"github.com/vk/conveyor/internal/matrix"
	"github.com/vk/conveyor/internal/report"
)

// ErrCyclicDependency marks a dependency cycle between job templates,
// detected at graph-build time before anything is scheduled.
var ErrCyclicDependency = errors.New("cyclic dependency")

// Build constructs a validated execution graph from the expanded instances.
// Dependencies are declared per job template and matched matrix-independent:
// an instance depending on job "build" waits for every instance of "build".
func Build(ctx context.Context, instances []*matrix.Instance) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	graph := &Graph{Nodes: make(map[string]*Node, len(instances))}

	// First pass: create all nodes, grouped by template for linking.
	byJob := make(map[string][]*Node)
	for _, inst := range instances {
		node := &Node{
			ID:         inst.ID,
			Instance:   inst,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
			Result: report.JobResult{
				Job:        inst.Job.Name,
				InstanceID: inst.ID,
				Assignment: inst.Assignment,
			},
		}
		graph.Nodes[node.ID] = node
		graph.Order = append(graph.Order, node.ID)
		byJob[inst.Job.Name] = append(byJob[inst.Job.Name], node)
	}
	logger.Debug("Build: node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link dependency edges.
	for _, node := range graph.Nodes {
		for _, dep := range node.Instance.Job.Needs {
			depNodes, ok := byJob[dep]
			if !ok {
				return nil, fmt.Errorf("%w: job %q needs unknown job %q", config.ErrInvalidSpec, node.Instance.Job.Name, dep)
			}
			for _, depNode := range depNodes {
				if _, exists := node.Deps[depNode.ID]; exists {
					continue
				}
				node.Deps[depNode.ID] = depNode
				depNode.Dependents[node.ID] = node
			}
		}
	}
	logger.Debug("Build: node linking complete.")

	// Third pass: initialize readiness counters.
	for _, node := range graph.Nodes {
		node.depCount.Store(int32(len(node.Deps)))
	}

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: cycle detection passed.")
	return graph, nil
}

// detectCycles checks for circular dependencies using DFS.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(node *Node) error
	visit = func(node *Node) error {
		visiting[node.ID] = true
		for _, dep := range node.Deps {
			if visiting[dep.ID] {
				return fmt.Errorf("%w involving '%s'", ErrCyclicDependency, dep.ID)
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, node.ID)
		visited[node.ID] = true
		return nil
	}

	for _, node := range g.Nodes {
		if !visited[node.ID] {
			if err := visit(node); err != nil {
				return err
			}
		}
	}
	return nil
}
