package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarPacker_RoundTrip(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".cache", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".cache", "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".cache", "sub", "b.txt"), []byte("bbb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644))

	var p TarPacker
	blob, err := p.Pack(src, []string{".cache", "top.txt"})
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	dst := t.TempDir()
	require.NoError(t, p.Unpack(blob, dst))

	got, err := os.ReadFile(filepath.Join(dst, ".cache", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(got))

	got, err = os.ReadFile(filepath.Join(dst, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top", string(got))
}

func TestTarPacker_MissingPathsAreSkipped(t *testing.T) {
	t.Parallel()

	var p TarPacker
	blob, err := p.Pack(t.TempDir(), []string{"does-not-exist"})
	require.NoError(t, err)

	// An empty archive unpacks cleanly.
	assert.NoError(t, p.Unpack(blob, t.TempDir()))
}

func TestTarPacker_CorruptBlob(t *testing.T) {
	t.Parallel()

	var p TarPacker
	err := p.Unpack([]byte("not a gzip stream"), t.TempDir())
	assert.Error(t, err)
}
