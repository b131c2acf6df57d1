package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/governor"
	"github.com/vk/conveyor/internal/report"
	"github.com/vk/conveyor/internal/runner"
)

// recordingRunner is an in-memory step runner for end-to-end tests. Exit
// codes are looked up by command; unknown commands succeed.
type recordingRunner struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]int
	// block delays every call until ctx is done, to hold a run open.
	block bool
}

func (r *recordingRunner) Run(ctx context.Context, command string, env []string) (runner.Result, error) {
	if r.block {
		<-ctx.Done()
		return runner.Result{ExitCode: -1}, ctx.Err()
	}
	r.mu.Lock()
	r.calls = append(r.calls, command)
	r.mu.Unlock()
	if code, ok := r.failures[command]; ok {
		return runner.Result{ExitCode: code, Output: []byte("failed\n")}, nil
	}
	return runner.Result{Output: []byte("ok\n")}, nil
}

func writeSpec(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newTestApp(t *testing.T, cfg Config, opts ...Option) *App {
	t.Helper()
	validated, err := NewConfig(cfg)
	require.NoError(t, err)
	a, err := NewApp(&bytes.Buffer{}, &bytes.Buffer{}, validated, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}

const fanOutSpec = `
pipeline:
  name: checks
  on:
    branches: [main]
  jobs:
    - name: fmt
      steps:
        - run: make fmt
    - name: lint
      steps:
        - run: make lint
    - name: build
      steps:
        - run: make build
    - name: test
      steps:
        - run: make test
`

func TestRun_IndependentJobsSucceed(t *testing.T) {
	t.Parallel()

	stub := &recordingRunner{}
	a := newTestApp(t, Config{
		PipelinePath: writeSpec(t, "checks.yaml", fanOutSpec),
		Ref:          "main",
		Workers:      4,
	}, WithRunner(stub))

	rep, err := a.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Jobs, 4)
	for _, job := range rep.Jobs {
		assert.Equal(t, report.StatusSucceeded, job.Status, job.InstanceID)
	}
	assert.Equal(t, report.VerdictSuccess, rep.Verdict)
	assert.Equal(t, 0, rep.Verdict.ExitCode())
	assert.Len(t, stub.calls, 4)
}

const matrixSpec = `
pipeline:
  name: ci
  on:
    branches: [main]
  jobs:
    - name: test
      matrix:
        os: [linux, darwin, windows]
      steps:
        - run: make test-${matrix.os}
`

func TestRun_MatrixLegFailureYieldsFailureVerdict(t *testing.T) {
	t.Parallel()

	stub := &recordingRunner{failures: map[string]int{"make test-windows": 1}}
	a := newTestApp(t, Config{
		PipelinePath: writeSpec(t, "ci.yml", matrixSpec),
		Ref:          "main",
		Workers:      3,
	}, WithRunner(stub))

	rep, err := a.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Jobs, 3)
	statuses := map[string]report.Status{}
	for _, job := range rep.Jobs {
		statuses[job.InstanceID] = job.Status
	}
	assert.Equal(t, report.StatusSucceeded, statuses["job.test[os=linux]"])
	assert.Equal(t, report.StatusSucceeded, statuses["job.test[os=darwin]"])
	assert.Equal(t, report.StatusFailed, statuses["job.test[os=windows]"])
	assert.Equal(t, report.VerdictFailure, rep.Verdict)
	assert.Equal(t, 1, rep.Verdict.ExitCode())
}

func TestRun_RefOutsideTriggerRunsNothing(t *testing.T) {
	t.Parallel()

	stub := &recordingRunner{}
	a := newTestApp(t, Config{
		PipelinePath: writeSpec(t, "ci.yml", matrixSpec),
		Ref:          "refs/heads/feature/x",
	}, WithRunner(stub))

	rep, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, rep.Jobs)
	assert.Equal(t, report.VerdictSuccess, rep.Verdict)
	assert.Empty(t, stub.calls)
}

const supersededSpec = `
pipeline:
  name: ci
  on:
    branches: [main]
  concurrency:
    group: "ci-${ref}"
    cancel_in_progress: true
  jobs:
    - name: build
      steps:
        - run: make build
    - name: test
      needs: [build]
      steps:
        - run: make test
`

func TestRun_NewerRunCancelsActiveRun(t *testing.T) {
	t.Parallel()

	gov := governor.New()
	path := writeSpec(t, "ci.yml", supersededSpec)

	older := newTestApp(t, Config{
		PipelinePath: path,
		Ref:          "main",
		RunID:        "run-1",
	}, WithRunner(&recordingRunner{block: true}), WithGovernor(gov))

	type outcome struct {
		rep *report.RunReport
		err error
	}
	olderDone := make(chan outcome, 1)
	go func() {
		rep, err := older.Run(context.Background())
		olderDone <- outcome{rep: rep, err: err}
	}()

	// Wait until run-1 holds the group slot before admitting run-2.
	require.Eventually(t, func() bool {
		active, ok := gov.Active("ci-main")
		return ok && active == "run-1"
	}, time.Second, 5*time.Millisecond)

	newer := newTestApp(t, Config{
		PipelinePath: path,
		Ref:          "main",
		RunID:        "run-2",
	}, WithRunner(&recordingRunner{}), WithGovernor(gov))

	newerRep, err := newer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.VerdictSuccess, newerRep.Verdict)

	select {
	case got := <-olderDone:
		require.NoError(t, got.err)
		assert.Equal(t, report.VerdictCancelled, got.rep.Verdict)
		assert.Equal(t, 3, got.rep.Verdict.ExitCode())
		for _, job := range got.rep.Jobs {
			assert.Equal(t, report.StatusCancelled, job.Status, job.InstanceID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded run did not drain")
	}
}

func TestRun_SupersededRunIDIsRefused(t *testing.T) {
	t.Parallel()

	gov := governor.New()
	// run-1 was active in the group and has already been replaced by run-2.
	_, admission := gov.Admit(context.Background(), "ci-main", "run-1")
	require.Equal(t, governor.Proceed, admission)
	_, admission = gov.Admit(context.Background(), "ci-main", "run-2")
	require.Equal(t, governor.Proceed, admission)

	stub := &recordingRunner{}
	a := newTestApp(t, Config{
		PipelinePath: writeSpec(t, "ci.yml", supersededSpec),
		Ref:          "main",
		RunID:        "run-1",
	}, WithRunner(stub), WithGovernor(gov))

	rep, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, report.VerdictCancelled, rep.Verdict)
	assert.Empty(t, rep.Jobs)
	assert.Empty(t, stub.calls)
}

func TestNewApp_InvalidSpec(t *testing.T) {
	t.Parallel()

	doc := `
pipeline:
  name: ci
  jobs:
    - name: build
      steps: []
`
	cfg, err := NewConfig(Config{PipelinePath: writeSpec(t, "ci.yml", doc)})
	require.NoError(t, err)
	_, err = NewApp(&bytes.Buffer{}, &bytes.Buffer{}, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidSpec)
}

func TestRender_WritesReportJSON(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, err := NewConfig(Config{PipelinePath: writeSpec(t, "checks.yaml", fanOutSpec), Ref: "main"})
	require.NoError(t, err)
	a, err := NewApp(out, &bytes.Buffer{}, cfg, WithRunner(&recordingRunner{}))
	require.NoError(t, err)

	rep, err := a.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Render(rep))

	assert.Contains(t, out.String(), `"verdict": "success"`)
	assert.Contains(t, out.String(), `"instance_id": "job.fmt"`)
}

func TestNewConfig_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{})
	require.Error(t, err)

	_, err = NewConfig(Config{PipelinePath: "ci.yml", Format: "toml"})
	require.Error(t, err)

	_, err = NewConfig(Config{PipelinePath: "ci.yml", CacheBackend: "bolt"})
	require.Error(t, err)

	cfg, err := NewConfig(Config{PipelinePath: "ci.yml"})
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "none", cfg.CacheBackend)
}
