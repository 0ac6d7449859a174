package fileloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/crdt"
)

func TestPullInsertsFileContentsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	l := New(path)
	r := l.Pull()
	require.True(t, r.Done)
	require.True(t, r.BecomeLoaded)
	require.Len(t, r.ContentUpdates, 1)

	s := crdt.New().IntegrateAll(r.ContentUpdates)
	require.Equal(t, "hello", s.RenderAll())

	again := l.Pull()
	require.Empty(t, again.ContentUpdates)
	require.False(t, again.BecomeLoaded)
}

func TestPullOnMissingFileStillCompletes(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	r := l.Pull()
	require.True(t, r.Done)
	require.True(t, r.BecomeLoaded)
	require.Empty(t, r.ContentUpdates)
}
