package yamlcfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/conveyor/internal/config"
)

const sampleYAML = `
pipeline:
  name: ci
  on:
    branches: ["main", "release/*"]
  concurrency:
    group: "ci-${ref}"
    cancel_in_progress: true
  jobs:
    - name: build
      matrix:
        os: [ubuntu-latest, macos-latest]
        go: ["1.23", "1.24"]
      cache:
        key: "go-${matrix.os}-${hash:go.sum}"
        restore_keys: ["go-${matrix.os}-"]
        paths: [".cache/go-build"]
      steps:
        - name: vet
          run: go vet ./...
        - name: test
          run: go test ./...
    - name: release
      needs: [build]
      steps:
        - run: make dist
`

func writeYAML(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_FullPipeline(t *testing.T) {
	t.Parallel()

	model, err := NewLoader().Load(context.Background(), writeYAML(t, "ci.yml", sampleYAML))
	require.NoError(t, err)

	p := model.Pipeline
	assert.Equal(t, "ci", p.Name)
	assert.Equal(t, []string{"main", "release/*"}, p.Trigger.Branches)
	assert.True(t, p.Concurrency.CancelInProgress)
	require.Len(t, p.Jobs, 2)

	build := p.Jobs[0]
	require.NotNil(t, build.Matrix)
	require.Len(t, build.Matrix.Axes, 2)
	// Axis order must follow the document, not map iteration.
	assert.Equal(t, "os", build.Matrix.Axes[0].Name)
	assert.Equal(t, "go", build.Matrix.Axes[1].Name)
	assert.Equal(t, []string{"ubuntu-latest", "macos-latest"}, build.Matrix.Axes[0].Values)

	require.Len(t, build.Steps, 2)
	assert.Equal(t, "go vet ./...", build.Steps[0].Run)
	assert.Equal(t, []string{"build"}, p.Jobs[1].Needs)
}

func TestLoad_MatrixMustBeMapping(t *testing.T) {
	t.Parallel()

	doc := `
pipeline:
  name: ci
  jobs:
    - name: build
      matrix: [os]
      steps:
        - run: "true"
`
	_, err := NewLoader().Load(context.Background(), writeYAML(t, "ci.yml", doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidSpec)
}

func TestLoad_DirectoryDiscovery(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ci.yaml"), []byte(sampleYAML), 0o644))

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "ci", model.Pipeline.Name)
}

func TestLoad_NoPipelineDocument(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Load(context.Background(), writeYAML(t, "other.yml", "foo: bar\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "no pipeline document")
}
