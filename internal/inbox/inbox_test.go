package inbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/ferrors"
)

func newTestInbox(t *testing.T) *Inbox {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "inbox"))
}

func TestWriteThenList(t *testing.T) {
	in := newTestInbox(t)
	require.NoError(t, in.Write("hello.txt", "hi there"))

	msgs, err := in.List()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello.txt", msgs[0].Name)
	assert.Equal(t, "hi there", msgs[0].Content)
}

func TestWriteRefusesCollision(t *testing.T) {
	in := newTestInbox(t)
	require.NoError(t, in.Write("dup.txt", "first"))

	err := in.Write("dup.txt", "second")
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.Conflict, fe.Kind)
}

func TestListOnMissingRootReturnsEmpty(t *testing.T) {
	in := New(filepath.Join(t.TempDir(), "does-not-exist"))
	msgs, err := in.List()
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClearMovesToProcessedAndUnlistsIt(t *testing.T) {
	in := newTestInbox(t)
	require.NoError(t, in.Write("a.txt", "body"))

	require.NoError(t, in.Clear("a.txt"))

	msgs, err := in.List()
	require.NoError(t, err)
	assert.Empty(t, msgs)

	entries, err := os.ReadDir(in.processedDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestClearUnknownMessageNotFound(t *testing.T) {
	in := newTestInbox(t)
	err := in.Clear("ghost.txt")
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.NotFound, fe.Kind)
}
