package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/matrix"
)

func instancesFor(t *testing.T, jobs ...*config.Job) []*matrix.Instance {
	t.Helper()
	instances, err := matrix.ExpandAll(&config.Pipeline{Jobs: jobs})
	require.NoError(t, err)
	return instances
}

func job(name string, needs ...string) *config.Job {
	return &config.Job{
		Name:  name,
		Steps: []*config.Step{{Run: "run " + name}},
		Needs: needs,
	}
}

func TestBuild_FlatGraph(t *testing.T) {
	t.Parallel()

	graph, err := Build(context.Background(), instancesFor(t,
		job("fmt"), job("lint"), job("build"), job("test"),
	))
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 4)

	for _, node := range graph.Nodes {
		assert.Empty(t, node.Deps)
		assert.Zero(t, node.depCount.Load())
	}
	assert.Equal(t, []string{"job.fmt", "job.lint", "job.build", "job.test"}, graph.Order)
}

func TestBuild_LinksDependenciesMatrixIndependent(t *testing.T) {
	t.Parallel()

	build := job("build")
	build.Matrix = &config.Matrix{Axes: []config.Axis{
		{Name: "os", Values: []string{"linux", "darwin"}},
	}}
	graph, err := Build(context.Background(), instancesFor(t, build, job("release", "build")))
	require.NoError(t, err)

	release := graph.Nodes["job.release"]
	require.NotNil(t, release)
	// The dependent waits for every instance of the needed template.
	assert.Len(t, release.Deps, 2)
	assert.Equal(t, int32(2), release.depCount.Load())
	assert.Contains(t, release.Deps, "job.build[os=linux]")
	assert.Contains(t, release.Deps, "job.build[os=darwin]")
}

func TestBuild_UnknownDependency(t *testing.T) {
	t.Parallel()

	_, err := Build(context.Background(), instancesFor(t, job("release", "build")))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidSpec)
	assert.ErrorContains(t, err, "unknown job")
}

func TestBuild_CycleDetection(t *testing.T) {
	t.Parallel()

	_, err := Build(context.Background(), instancesFor(t,
		job("a", "b"), job("b", "c"), job("c", "a"),
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicDependency)
	assert.ErrorContains(t, err, "involving")
}

func TestBuild_SelfCycle(t *testing.T) {
	t.Parallel()

	_, err := Build(context.Background(), instancesFor(t, job("a", "a")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicDependency)
}
