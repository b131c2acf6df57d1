// Package dag builds the executable graph of job instances and runs it on
// a bounded pool of concurrent workers. Failure isolation is per instance:
// a failed step terminates its own instance and cancels transitive
// dependents, but never aborts sibling instances. Run-level cancellation
// (supersession by a newer run) is cooperative and observed at step
// boundaries.
package dag
