package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubmitThenApproveTransitions(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	p, err := s.Submit("a cat", 512, 512, 20, 42, "series-a", "ryan")
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)

	require.NoError(t, s.Approve(p.ID))
	all, err := s.List(StatusApproved)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, p.ID, all[0].ID)
}

func TestApproveRefusesNonPending(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	p, err := s.Submit("a cat", 512, 512, 20, 42, "series-a", "ryan")
	require.NoError(t, err)
	require.NoError(t, s.Approve(p.ID))
	require.Error(t, s.Approve(p.ID))
}

func TestSubmitRejectsEmptyPrompt(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Submit("   ", 1, 1, 1, 1, "s", "r")
	require.Error(t, err)
}

type fakeClient struct {
	submitErr error
	polls     []struct {
		done bool
		path string
		err  error
	}
	callIdx int
}

func (f *fakeClient) Submit(_ context.Context, _ *Plan) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "job-1", nil
}

func (f *fakeClient) Poll(_ context.Context, _ string) (bool, string, error) {
	r := f.polls[f.callIdx]
	if f.callIdx < len(f.polls)-1 {
		f.callIdx++
	}
	return r.done, r.path, r.err
}

func TestExecutorRunOnceCompletesPlan(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	p, err := s.Submit("a cat", 1, 1, 1, 1, "s", "r")
	require.NoError(t, err)
	require.NoError(t, s.Approve(p.ID))

	client := &fakeClient{polls: []struct {
		done bool
		path string
		err  error
	}{{done: true, path: "/out/1.png"}}}

	exec := NewExecutor(s, client, zap.NewNop())
	require.NoError(t, exec.RunOnce(context.Background()))

	completed, err := s.List(StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "/out/1.png", completed[0].OutputPath)
}

func TestExecutorRunOnceMarksFailedOnSubmitError(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	p, err := s.Submit("a cat", 1, 1, 1, 1, "s", "r")
	require.NoError(t, err)
	require.NoError(t, s.Approve(p.ID))

	client := &fakeClient{submitErr: errors.New("renderer unreachable")}
	exec := NewExecutor(s, client, zap.NewNop())
	require.NoError(t, exec.RunOnce(context.Background()))

	failed, err := s.List(StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
}

func TestExecutorRunOnceNoopWhenNothingApproved(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	exec := NewExecutor(s, &fakeClient{}, zap.NewNop())
	require.NoError(t, exec.RunOnce(context.Background()))
}

func TestExecutorRunOnceRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	p, err := s.Submit("a cat", 1, 1, 1, 1, "s", "r")
	require.NoError(t, err)
	require.NoError(t, s.Approve(p.ID))

	client := &fakeClient{polls: []struct {
		done bool
		path string
		err  error
	}{{done: false}}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	exec := NewExecutor(s, client, zap.NewNop())
	err = exec.RunOnce(ctx)
	require.Error(t, err)
}
