// Package matrix expands job templates with N-dimensional axis lists into
// concrete job instances, one per combination.
package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/conveyor/internal/config"
)

// Instance is one concrete expansion of a job template: the template plus a
// unique axis-value assignment. Instances are created at run start and are
// otherwise immutable; runtime state lives in the execution graph.
type Instance struct {
	// ID uniquely identifies the instance, e.g. "job.test[go=1.24,os=linux]".
	ID string
	// Job is the template this instance was expanded from.
	Job *config.Job
	// Assignment maps axis name to the value chosen for this instance.
	// Empty for jobs without a matrix.
	Assignment map[string]string
}

// Expand produces the instances for one job template. A template without a
// matrix yields exactly one instance. A template with axes of cardinalities
// c1..cn yields the full Cartesian product in deterministic order: axes in
// declaration order, values in declared order, last axis varying fastest.
func Expand(job *config.Job) ([]*Instance, error) {
	if job.Matrix == nil {
		return []*Instance{{ID: instanceID(job.Name, nil), Job: job}}, nil
	}

	axes := job.Matrix.Axes
	total := 1
	for _, axis := range axes {
		if len(axis.Values) == 0 {
			return nil, fmt.Errorf("%w: job %q matrix axis %q has no values", config.ErrInvalidSpec, job.Name, axis.Name)
		}
		total *= len(axis.Values)
	}

	instances := make([]*Instance, 0, total)
	indices := make([]int, len(axes))
	for {
		assignment := make(map[string]string, len(axes))
		for i, axis := range axes {
			assignment[axis.Name] = axis.Values[indices[i]]
		}
		instances = append(instances, &Instance{
			ID:         instanceID(job.Name, assignment),
			Job:        job,
			Assignment: assignment,
		})

		// Odometer increment, last axis fastest.
		i := len(indices) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(axes[i].Values) {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return instances, nil
}

// ExpandAll expands every job of a pipeline, preserving job declaration
// order. The resulting order is the canonical reporting order for a run.
func ExpandAll(p *config.Pipeline) ([]*Instance, error) {
	var all []*Instance
	for _, job := range p.Jobs {
		instances, err := Expand(job)
		if err != nil {
			return nil, err
		}
		all = append(all, instances...)
	}
	return all, nil
}

// instanceID renders a stable identifier. Assignment keys are sorted so the
// ID does not depend on map iteration order.
func instanceID(jobName string, assignment map[string]string) string {
	if len(assignment) == 0 {
		return "job." + jobName
	}
	keys := make([]string, 0, len(assignment))
	for k := range assignment {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("job.")
	sb.WriteString(jobName)
	sb.WriteRune('[')
	for i, k := range keys {
		if i > 0 {
			sb.WriteRune(',')
		}
		sb.WriteString(k)
		sb.WriteRune('=')
		sb.WriteString(assignment[k])
	}
	sb.WriteRune(']')
	return sb.String()
}
