package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitSnapshotsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	w := New([]string{dir}, zap.NewNop())
	count, err := w.Init()
	require.NoError(t, err)
	defer w.Close()
	require.Equal(t, 1, count)
}

func TestReconcileDetectsAddedModifiedDeleted(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(aPath, []byte("x"), 0o644))

	w := New([]string{dir}, zap.NewNop())
	_, err := w.Init()
	require.NoError(t, err)
	defer w.Close()

	// modify a, add b, nothing deleted yet.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(aPath, []byte("modified"), 0o644))
	bPath := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(bPath, []byte("y"), 0o644))

	require.NoError(t, w.Reconcile())
	recent := w.Recent(10)
	require.NotEmpty(t, recent)

	var sawModified, sawAdded bool
	for _, c := range recent {
		if c.Path == aPath && c.Type == Modified {
			sawModified = true
		}
		if c.Path == bPath && c.Type == Added {
			sawAdded = true
		}
	}
	require.True(t, sawModified)
	require.True(t, sawAdded)

	require.NoError(t, os.Remove(aPath))
	require.NoError(t, w.Reconcile())
	recent = w.Recent(10)
	var sawDeleted bool
	for _, c := range recent {
		if c.Path == aPath && c.Type == Deleted {
			sawDeleted = true
		}
	}
	require.True(t, sawDeleted)
}

func TestRecentRingBufferTruncates(t *testing.T) {
	dir := t.TempDir()
	w := New([]string{dir}, zap.NewNop())
	_, err := w.Init()
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < maxRecentChanges+10; i++ {
		w.appendLocked(Change{Type: Added, Path: "x", Time: time.Now()})
	}
	require.Len(t, w.Recent(0), maxRecentChanges)
}

func TestShouldSkipIgnoresNoiseDirsAndChangesLog(t *testing.T) {
	require.True(t, shouldSkip("/a/node_modules/x.js"))
	require.True(t, shouldSkip("/a/b/changes.log"))
	require.False(t, shouldSkip("/a/b/real.go"))
}
