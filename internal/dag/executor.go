package dag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/vk/conveyor/internal/cache"
	"github.com/vk/conveyor/internal/ctxlog"
	"github.com/vk/conveyor/internal/matrix"
	"github.com/vk/conveyor/internal/report"
	"github.com/vk/conveyor/internal/runner"
)

// Options configures an Executor. Zero values select sane defaults.
type Options struct {
	// Workers bounds concurrent job instances; <=0 means host parallelism.
	Workers int
	// Runner executes step commands; nil means the host shell in WorkDir.
	Runner runner.StepRunner
	// Cache enables dependency caching when non-nil.
	Cache *cache.Resolver
	// Packer turns cached paths into blobs; nil means TarPacker.
	Packer cache.Packer
	// WorkDir is the working tree the steps run in.
	WorkDir string
	// StepTimeout bounds each step; 0 disables the limit.
	StepTimeout time.Duration
}

// Executor runs a built graph to completion.
type Executor struct {
	graph       *Graph
	workers     int
	runner      runner.StepRunner
	cache       *cache.Resolver
	packer      cache.Packer
	workDir     string
	stepTimeout time.Duration
	wg          sync.WaitGroup
}

// NewExecutor creates an executor for the given graph.
func NewExecutor(graph *Graph, opts Options) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Runner == nil {
		opts.Runner = runner.NewShell(opts.WorkDir)
	}
	if opts.Packer == nil {
		opts.Packer = cache.TarPacker{}
	}
	return &Executor{
		graph:       graph,
		workers:     opts.Workers,
		runner:      opts.Runner,
		cache:       opts.Cache,
		packer:      opts.Packer,
		workDir:     opts.WorkDir,
		stepTimeout: opts.StepTimeout,
	}
}

// Run executes every node and returns the per-instance results in matrix
// expansion order. Cancellation of ctx (supersession) drains the graph:
// in-flight instances stop at their next step boundary and everything not
// yet terminal ends Cancelled.
func (e *Executor) Run(ctx context.Context) []report.JobResult {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *Node, len(e.graph.Nodes))
	rootCount := 0
	for _, id := range e.graph.Order {
		node := e.graph.Nodes[id]
		if node.depCount.Load() == 0 {
			readyChan <- node
			rootCount++
		}
	}
	logger.Debug("Executor initialized.", "nodes", len(e.graph.Nodes), "roots", rootCount, "workers", e.workers)

	// readyChan is buffered for every node and never closed: each node is
	// sent at most once (as a root or on its final dep-count decrement), and
	// a send may still happen for an already-cancelled dependent after the
	// last node finishes. Workers stop via done instead.
	done := make(chan struct{})
	e.wg.Add(len(e.graph.Nodes))
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, readyChan, done, i)
	}

	e.wg.Wait()
	close(done)
	logger.Debug("All instances completed.")

	results := make([]report.JobResult, 0, len(e.graph.Order))
	for _, id := range e.graph.Order {
		node := e.graph.Nodes[id]
		// Nothing should still be non-terminal here; guard anyway so the
		// report never shows a running instance.
		if !node.Status().Terminal() {
			e.finish(node, report.StatusCancelled, "never scheduled")
		}
		results = append(results, node.Result)
	}
	return results
}

// worker is the processing loop for one concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, done <-chan struct{}, workerID int) {
	logger := ctxlog.FromContext(ctx)

	for {
		var node *Node
		select {
		case <-done:
			return
		case node = <-readyChan:
		}
		if node.Status().Terminal() {
			continue
		}
		workerLogger := logger.With("workerID", workerID, "instance", node.ID)

		if ctx.Err() != nil {
			workerLogger.Warn("Run cancelled, not starting instance.")
			e.finish(node, report.StatusCancelled, "run superseded")
			e.cancelDependents(ctx, node, "run superseded")
			continue
		}

		workerLogger.Debug("Worker picked up instance.")
		node.setStatus(report.StatusRunning)
		e.executeInstance(ctx, node, workerLogger)

		switch node.Status() {
		case report.StatusSucceeded:
			workerLogger.Debug("Instance succeeded.")
			for _, dependent := range node.Dependents {
				if dependent.depCount.Add(-1) == 0 {
					readyChan <- dependent
				}
			}
		default:
			workerLogger.Warn("Instance did not succeed.", "status", node.Status().String())
			e.cancelDependents(ctx, node, fmt.Sprintf("dependency %s %s", node.ID, node.Status()))
		}
	}
}

// cancelDependents recursively marks all downstream nodes Cancelled without
// running them. Sibling instances are untouched.
func (e *Executor) cancelDependents(ctx context.Context, node *Node, reason string) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		if e.finish(dependent, report.StatusCancelled, reason) {
			logger.Warn("Cancelling dependent instance.", "instance", dependent.ID, "reason", reason)
			e.cancelDependents(ctx, dependent, reason)
		}
	}
}

// finish performs the single transition into a terminal status. It reports
// whether this call performed the transition.
func (e *Executor) finish(node *Node, status report.Status, reason string) bool {
	finished := false
	node.finishOnce.Do(func() {
		node.setStatus(status)
		node.Result.Status = status
		if status == report.StatusCancelled {
			node.Result.Reason = reason
		}
		e.wg.Done()
		finished = true
	})
	return finished
}

// executeInstance runs one instance's steps in declared order, consulting
// the cache around them.
func (e *Executor) executeInstance(ctx context.Context, node *Node, logger *slog.Logger) {
	inst := node.Instance
	primaryKey, hit := e.restoreCache(ctx, node, logger)
	if node.Status().Terminal() {
		// Cache key expansion failed; finish already recorded it.
		return
	}

	for _, step := range inst.Job.Steps {
		if ctx.Err() != nil {
			logger.Warn("Run cancelled at step boundary.")
			e.finish(node, report.StatusCancelled, "run superseded")
			return
		}

		stepCtx := ctx
		cancel := context.CancelFunc(func() {})
		if e.stepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		}
		result, err := e.runner.Run(stepCtx, e.expandCommand(step.Run, inst), e.stepEnv(node))
		cancel()

		stepResult := report.StepResult{
			Name:     step.Name,
			Command:  step.Run,
			ExitCode: result.ExitCode,
			Output:   string(result.Output),
		}
		if err != nil {
			if ctx.Err() != nil {
				e.finish(node, report.StatusCancelled, "run superseded")
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				stepResult.Output += "\nstep timed out"
			} else {
				stepResult.Output += "\n" + err.Error()
			}
			node.Result.Steps = append(node.Result.Steps, stepResult)
			logger.Error("Step could not complete.", "command", step.Run, "error", err)
			e.finish(node, report.StatusFailed, "")
			return
		}

		node.Result.Steps = append(node.Result.Steps, stepResult)
		if result.ExitCode != 0 {
			logger.Error("Step failed, skipping remaining steps.", "command", step.Run, "exit_code", result.ExitCode)
			e.finish(node, report.StatusFailed, "")
			return
		}
	}

	e.saveCache(ctx, node, primaryKey, hit, logger)
	e.finish(node, report.StatusSucceeded, "")
}

// restoreCache resolves and unpacks the instance's cache entry, if any.
// It returns the expanded primary key and whether the hit was exact.
func (e *Executor) restoreCache(ctx context.Context, node *Node, logger *slog.Logger) (string, bool) {
	inst := node.Instance
	if e.cache == nil || inst.Job.Cache == nil {
		return "", false
	}

	primaryKey, err := cache.ExpandKey(inst.Job.Cache.Key, inst.Assignment, e.workDir)
	if err != nil {
		logger.Error("Bad cache key template.", "error", err)
		e.finish(node, report.StatusFailed, "")
		return "", false
	}
	restoreKeys := make([]string, 0, len(inst.Job.Cache.RestoreKeys))
	for _, tmpl := range inst.Job.Cache.RestoreKeys {
		expanded, err := cache.ExpandKey(tmpl, inst.Assignment, e.workDir)
		if err != nil {
			logger.Error("Bad restore key template.", "error", err)
			e.finish(node, report.StatusFailed, "")
			return "", false
		}
		restoreKeys = append(restoreKeys, expanded)
	}

	node.Result.CacheKey = primaryKey
	entry, err := e.cache.Resolve(ctx, primaryKey, restoreKeys)
	if err != nil {
		// A broken cache backend degrades to a miss; the job still runs.
		logger.Warn("Cache resolve failed, treating as miss.", "key", primaryKey, "error", err)
		return primaryKey, false
	}
	if entry == nil {
		return primaryKey, false
	}
	if err := e.packer.Unpack(entry.Blob, e.workDir); err != nil {
		logger.Warn("Cache entry could not be unpacked, treating as miss.", "key", entry.Key, "error", err)
		return primaryKey, false
	}
	node.Result.CacheHit = true
	logger.Info("Cache restored.", "key", entry.Key)
	return primaryKey, entry.Key == primaryKey
}

// saveCache stores a fresh entry after a fully successful instance. Save
// failures are logged, never fatal.
func (e *Executor) saveCache(ctx context.Context, node *Node, primaryKey string, exactHit bool, logger *slog.Logger) {
	inst := node.Instance
	if e.cache == nil || inst.Job.Cache == nil || primaryKey == "" || exactHit {
		return
	}
	blob, err := e.packer.Pack(e.workDir, inst.Job.Cache.Paths)
	if err != nil {
		logger.Warn("Could not pack cache paths.", "key", primaryKey, "error", err)
		return
	}
	if err := e.cache.Store(ctx, primaryKey, blob); err != nil {
		logger.Warn("Could not store cache entry.", "key", primaryKey, "error", err)
		return
	}
	logger.Info("Cache stored.", "key", primaryKey)
}

// expandCommand substitutes ${matrix.<axis>} references in a step command.
func (e *Executor) expandCommand(command string, inst *matrix.Instance) string {
	for axis, value := range inst.Assignment {
		command = strings.ReplaceAll(command, "${matrix."+axis+"}", value)
	}
	return command
}

// stepEnv builds the environment entries visible to every step of an
// instance: the job identity plus one MATRIX_* variable per axis.
func (e *Executor) stepEnv(node *Node) []string {
	env := []string{
		"CONVEYOR_JOB=" + node.Instance.Job.Name,
		"CONVEYOR_INSTANCE=" + node.ID,
	}
	for axis, value := range node.Instance.Assignment {
		env = append(env, "MATRIX_"+envName(axis)+"="+value)
	}
	return env
}

// envName renders an axis name as an environment variable fragment.
func envName(axis string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(axis) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
