package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vk/conveyor/internal/cache"
	"github.com/vk/conveyor/internal/ctxlog"
	"github.com/vk/conveyor/internal/dag"
	"github.com/vk/conveyor/internal/governor"
	"github.com/vk/conveyor/internal/matrix"
	"github.com/vk/conveyor/internal/report"
	"github.com/vk/conveyor/internal/trigger"
)

// Run executes one pipeline run end to end and returns its report. A nil
// error with a Cancelled verdict means the run was superseded or drained,
// not that the engine broke.
func (a *App) Run(ctx context.Context) (*report.RunReport, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx)
		defer a.closeHealthcheckServer(ctx)
	}

	runID := a.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	rep := &report.RunReport{RunID: runID, Started: time.Now()}

	if !trigger.Matches(a.pipeline.Trigger, a.cfg.Ref) {
		a.logger.Info("Ref does not match the pipeline trigger, nothing to run.", "ref", a.cfg.Ref)
		rep.Finished = time.Now()
		return rep, nil
	}

	runCtx := ctx
	if a.pipeline.Concurrency != nil && a.pipeline.Concurrency.Group != "" {
		groupKey := expandGroupKey(a.pipeline.Concurrency.Group, a.pipeline.Name, a.cfg.Ref)
		rep.Group = groupKey
		if a.pipeline.Concurrency.CancelInProgress {
			var admission governor.Admission
			runCtx, admission = a.governor.Admit(ctx, groupKey, runID)
			if admission == governor.Superseded {
				a.logger.Warn("Run superseded by a newer run in its group.", "group", groupKey, "run_id", runID)
				rep.Verdict = report.VerdictCancelled
				rep.Finished = time.Now()
				return rep, nil
			}
			defer a.governor.Release(groupKey, runID)
		}
	}

	instances, err := matrix.ExpandAll(a.pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to expand job matrix: %w", err)
	}
	a.logger.Debug("Job matrix expanded.", "instances", len(instances))

	graph, err := dag.Build(runCtx, instances)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

	var resolver *cache.Resolver
	if a.store != nil {
		resolver = cache.NewResolver(a.store)
	}

	exec := dag.NewExecutor(graph, dag.Options{
		Workers:     a.cfg.Workers,
		Runner:      a.runner,
		Cache:       resolver,
		WorkDir:     a.cfg.WorkDir,
		StepTimeout: a.cfg.StepTimeout,
	})
	a.logger.Info("🚀 Starting concurrent execution.", "run_id", runID, "instances", len(instances))
	rep.Jobs = exec.Run(runCtx)
	rep.Verdict = report.Aggregate(rep.Jobs)
	rep.Finished = time.Now()
	a.logger.Info("🏁 Execution finished.", "verdict", rep.Verdict.String())

	return rep, nil
}

// Render writes a run report as indented JSON to the App's output writer.
func (a *App) Render(rep *report.RunReport) error {
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// expandGroupKey substitutes ${pipeline} and ${ref} references in a
// concurrency group template.
func expandGroupKey(template, pipeline, ref string) string {
	template = strings.ReplaceAll(template, "${pipeline}", pipeline)
	return strings.ReplaceAll(template, "${ref}", ref)
}
