// Package app wires the engine together: it loads and validates a pipeline
// spec, consults the trigger filter and the concurrency governor, expands
// the job matrix, builds the execution graph and runs it, then renders the
// final run report.
package app
