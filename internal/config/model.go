package config

// Model is the unified, format-agnostic representation of a loaded pipeline
// definition. It is immutable after loading; the rest of the engine only
// reads from it.
type Model struct {
	Pipeline *Pipeline
}

// Pipeline represents a single pipeline definition: trigger conditions, a
// concurrency policy, and an ordered set of job templates.
type Pipeline struct {
	Name        string
	Trigger     *Trigger
	Concurrency *Concurrency
	Jobs        []*Job
}

// Trigger gates whether a run is created at all.
type Trigger struct {
	// Branches holds ref patterns ("main", "release/*", "refs/pull/**").
	// Empty means every ref triggers.
	Branches []string
	// Schedule is an optional cron expression for scheduled runs.
	Schedule string
}

// Concurrency declares the run group policy. Group is a key template that
// may reference ${ref}; at most one run per expanded group key is active,
// and a newer run cancels the older one when CancelInProgress is set.
type Concurrency struct {
	Group            string
	CancelInProgress bool
}

// Job is a job template: the unit of matrix expansion and scheduling.
type Job struct {
	Name string
	// Matrix is nil for jobs that expand to exactly one instance.
	Matrix *Matrix
	// Steps run strictly in declared order.
	Steps []*Step
	// Cache is nil for jobs with no cacheable state.
	Cache *Cache
	// Needs names job templates that must complete before this one runs.
	Needs []string
}

// Matrix is an ordered list of axes. Axis declaration order is significant:
// expansion enumerates instances lexicographically over it.
type Matrix struct {
	Axes []Axis
}

// Axis is one matrix dimension with its ordered values.
type Axis struct {
	Name   string
	Values []string
}

// Step is a single opaque command handed to the host shell.
type Step struct {
	Name string
	Run  string
}

// Cache declares a job's cache policy. Key and RestoreKeys are templates
// expanded per instance (see the cache package); Paths are opaque to the
// engine beyond packing and unpacking.
type Cache struct {
	Key         string
	RestoreKeys []string
	Paths       []string
}
