// Package report defines the structured output of a run: per-instance
// statuses, step results, and the overall verdict with its exit-code
// mapping.
package report

import "time"

// Status is the runtime state of a job instance.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

// String returns the lowercase name used in rendered reports.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders statuses as their names in JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the status is one an instance never leaves.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Verdict is the aggregated outcome of a whole run.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictFailure
	VerdictCancelled
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictFailure:
		return "failure"
	case VerdictCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders verdicts as their names in JSON reports.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ExitCode maps a verdict to the process exit status, letting callers
// distinguish a real failure from a run superseded by a newer one.
func (v Verdict) ExitCode() int {
	switch v {
	case VerdictSuccess:
		return 0
	case VerdictFailure:
		return 1
	default:
		return 3
	}
}

// StepResult records one executed step.
type StepResult struct {
	Name     string `json:"name,omitempty"`
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
}

// JobResult records the terminal state of one job instance. Steps that were
// skipped by fail-fast or cancellation do not appear.
type JobResult struct {
	Job        string            `json:"job"`
	InstanceID string            `json:"instance_id"`
	Assignment map[string]string `json:"matrix,omitempty"`
	Status     Status            `json:"status"`
	Steps      []StepResult      `json:"steps,omitempty"`
	// Reason explains a cancelled instance (supersession, failed dependency).
	Reason string `json:"reason,omitempty"`
	// CacheKey and CacheHit describe the cache consultation, when any.
	CacheKey string `json:"cache_key,omitempty"`
	CacheHit bool   `json:"cache_hit,omitempty"`
}

// RunReport is the engine's final output for one run. It is produced once
// and never mutated afterwards; Jobs appear in matrix expansion order.
type RunReport struct {
	RunID    string      `json:"run_id"`
	Group    string      `json:"group,omitempty"`
	Started  time.Time   `json:"started"`
	Finished time.Time   `json:"finished"`
	Jobs     []JobResult `json:"jobs"`
	Verdict  Verdict     `json:"verdict"`
}

// Aggregate computes the overall verdict: Success iff every instance
// succeeded; any failure wins over cancellation.
func Aggregate(jobs []JobResult) Verdict {
	verdict := VerdictSuccess
	for _, job := range jobs {
		switch job.Status {
		case StatusFailed:
			return VerdictFailure
		case StatusCancelled:
			verdict = VerdictCancelled
		}
	}
	return verdict
}
