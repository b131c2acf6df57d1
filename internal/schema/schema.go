package schema

import "github.com/hashicorp/hcl/v2"

// Root represents the top-level structure of a pipeline definition file.
type Root struct {
	Pipelines []*Pipeline `hcl:"pipeline,block"`
	Body      hcl.Body    `hcl:",remain"`
}

// Pipeline represents a `pipeline` block: trigger conditions, a concurrency
// policy, and the job templates.
type Pipeline struct {
	Name        string       `hcl:"name,label"`
	On          *Trigger     `hcl:"on,block"`
	Concurrency *Concurrency `hcl:"concurrency,block"`
	Jobs        []*Job       `hcl:"job,block"`
}

// Trigger represents the `on` block gating run creation.
type Trigger struct {
	Branches []string `hcl:"branches,optional"`
	Schedule string   `hcl:"schedule,optional"`
}

// Concurrency represents the `concurrency` block. The group attribute is a
// key template; `${ref}` expands to the triggering ref.
type Concurrency struct {
	Group            string `hcl:"group"`
	CancelInProgress bool   `hcl:"cancel_in_progress,optional"`
}

// Job represents a `job` block from a pipeline file.
type Job struct {
	Name   string   `hcl:"name,label"`
	Matrix *Matrix  `hcl:"matrix,block"`
	Needs  []string `hcl:"needs,optional"`
	Cache  *Cache   `hcl:"cache,block"`
	Steps  []*Step  `hcl:"step,block"`
}

// Matrix represents the `matrix` block. Axes are free-form attributes, so
// the body is kept raw; the loader extracts them in source order.
type Matrix struct {
	Body hcl.Body `hcl:",remain"`
}

// Cache represents the `cache` block within a job.
type Cache struct {
	Key         string   `hcl:"key"`
	RestoreKeys []string `hcl:"restore_keys,optional"`
	Paths       []string `hcl:"paths"`
}

// Step represents a single `step` block: an opaque shell command.
type Step struct {
	Name string `hcl:"name,label"`
	Run  string `hcl:"run"`
}
