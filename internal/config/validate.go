package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the structural invariants of a loaded pipeline definition.
// Every violation is fatal at load time and wraps ErrInvalidSpec.
func Validate(m *Model) error {
	if m == nil || m.Pipeline == nil {
		return fmt.Errorf("%w: no pipeline block found", ErrInvalidSpec)
	}
	p := m.Pipeline
	if len(p.Jobs) == 0 {
		return fmt.Errorf("%w: pipeline %q declares no jobs", ErrInvalidSpec, p.Name)
	}

	if p.Trigger != nil && p.Trigger.Schedule != "" {
		if _, err := cron.ParseStandard(p.Trigger.Schedule); err != nil {
			return fmt.Errorf("%w: bad schedule %q: %v", ErrInvalidSpec, p.Trigger.Schedule, err)
		}
	}

	names := make(map[string]bool, len(p.Jobs))
	for _, job := range p.Jobs {
		if job.Name == "" {
			return fmt.Errorf("%w: job with empty name", ErrInvalidSpec)
		}
		if names[job.Name] {
			return fmt.Errorf("%w: duplicate job %q", ErrInvalidSpec, job.Name)
		}
		names[job.Name] = true
		if err := validateJob(job); err != nil {
			return err
		}
	}

	// Needs targets must exist. Cycles are the graph builder's concern.
	for _, job := range p.Jobs {
		for _, dep := range job.Needs {
			if !names[dep] {
				return fmt.Errorf("%w: job %q needs unknown job %q", ErrInvalidSpec, job.Name, dep)
			}
			if dep == job.Name {
				return fmt.Errorf("%w: job %q needs itself", ErrInvalidSpec, job.Name)
			}
		}
	}
	return nil
}

func validateJob(job *Job) error {
	if len(job.Steps) == 0 {
		return fmt.Errorf("%w: job %q has no steps", ErrInvalidSpec, job.Name)
	}
	for i, step := range job.Steps {
		if step.Run == "" {
			return fmt.Errorf("%w: job %q step %d has an empty run command", ErrInvalidSpec, job.Name, i)
		}
	}
	if job.Matrix != nil {
		if len(job.Matrix.Axes) == 0 {
			return fmt.Errorf("%w: job %q declares an empty matrix", ErrInvalidSpec, job.Name)
		}
		seen := make(map[string]bool, len(job.Matrix.Axes))
		for _, axis := range job.Matrix.Axes {
			if axis.Name == "" {
				return fmt.Errorf("%w: job %q matrix axis with empty name", ErrInvalidSpec, job.Name)
			}
			if seen[axis.Name] {
				return fmt.Errorf("%w: job %q duplicates matrix axis %q", ErrInvalidSpec, job.Name, axis.Name)
			}
			seen[axis.Name] = true
			if len(axis.Values) == 0 {
				return fmt.Errorf("%w: job %q matrix axis %q has no values", ErrInvalidSpec, job.Name, axis.Name)
			}
		}
	}
	if job.Cache != nil {
		if job.Cache.Key == "" {
			return fmt.Errorf("%w: job %q cache without a primary key", ErrInvalidSpec, job.Name)
		}
		if len(job.Cache.Paths) == 0 {
			return fmt.Errorf("%w: job %q cache without paths", ErrInvalidSpec, job.Name)
		}
	}
	return nil
}
