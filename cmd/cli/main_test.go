package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_HelpExitsCleanly(t *testing.T) {
	t.Parallel()

	logW := &bytes.Buffer{}
	code := run(&bytes.Buffer{}, logW, []string{"-h"})
	assert.Equal(t, 0, code)
	assert.Contains(t, logW.String(), "Usage:")
}

func TestRun_UnknownFlag(t *testing.T) {
	t.Parallel()

	code := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})
	assert.Equal(t, 2, code)
}

func TestRun_InvalidSpecExitsTwo(t *testing.T) {
	t.Parallel()

	// A pipeline without jobs fails validation before anything executes.
	doc := `
pipeline:
  name: ci
  jobs: []
`
	path := filepath.Join(t.TempDir(), "ci.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	logW := &bytes.Buffer{}
	code := run(&bytes.Buffer{}, logW, []string{path})
	assert.Equal(t, 2, code)
	assert.Contains(t, logW.String(), "invalid pipeline spec")
}

func TestRun_MissingFileFails(t *testing.T) {
	t.Parallel()

	code := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{filepath.Join(t.TempDir(), "nope.yml")})
	assert.Equal(t, 1, code)
}
