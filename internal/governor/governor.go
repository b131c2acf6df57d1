// Package governor enforces "at most one active run per concurrency group".
// A later run for the same group supersedes the earlier one by cancelling
// its context; the executor observes the cancellation at step boundaries.
package governor

import (
	"context"
	"sync"

	"github.com/vk/conveyor/internal/ctxlog"
)

// Admission is the governor's decision for an admit call.
type Admission int

const (
	// Proceed means the run is now the active run for its group.
	Proceed Admission = iota
	// Superseded means a newer run has already replaced this one; the
	// caller must not execute.
	Superseded
)

func (a Admission) String() string {
	if a == Proceed {
		return "proceed"
	}
	return "superseded"
}

// Governor tracks the active run per group key. Process-wide state; safe
// for concurrent use. Mutual exclusion is per group, not global.
type Governor struct {
	mu     sync.Mutex
	groups map[string]*group
}

type group struct {
	activeID string
	ctx      context.Context
	cancel   context.CancelFunc
	// seen holds every run ID ever admitted for the group so a superseded
	// run re-admitting itself is recognized.
	seen map[string]bool
}

// New creates an empty governor.
func New() *Governor {
	return &Governor{groups: make(map[string]*group)}
}

// Admit registers runID as the active run for groupKey and returns a
// context, derived from parent, that is cancelled if a later run supersedes
// this one. Admitting the currently active run again is an idempotent
// Proceed returning the same context. Admitting a run that was already
// superseded returns Superseded with an immediately cancelled context.
func (g *Governor) Admit(parent context.Context, groupKey, runID string) (context.Context, Admission) {
	logger := ctxlog.FromContext(parent)
	g.mu.Lock()
	defer g.mu.Unlock()

	grp, ok := g.groups[groupKey]
	if !ok {
		grp = &group{seen: make(map[string]bool)}
		g.groups[groupKey] = grp
	}

	if grp.activeID == runID {
		return grp.ctx, Proceed
	}
	if grp.seen[runID] {
		logger.Debug("Run was already superseded.", "group", groupKey, "run_id", runID)
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, Superseded
	}

	if grp.activeID != "" {
		logger.Info("Superseding in-flight run.", "group", groupKey, "old_run_id", grp.activeID, "new_run_id", runID)
		grp.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	grp.activeID = runID
	grp.ctx = ctx
	grp.cancel = cancel
	grp.seen[runID] = true
	return ctx, Proceed
}

// Release clears the active slot when a run completes. Calls for runs that
// are no longer active are ignored.
func (g *Governor) Release(groupKey, runID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	grp, ok := g.groups[groupKey]
	if !ok || grp.activeID != runID {
		return
	}
	grp.cancel()
	grp.activeID = ""
	grp.ctx = nil
	grp.cancel = nil
}

// Active returns the active run ID for a group, if any.
func (g *Governor) Active(groupKey string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	grp, ok := g.groups[groupKey]
	if !ok || grp.activeID == "" {
		return "", false
	}
	return grp.activeID, true
}
