package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduleThenDuePendingOrdering(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	past, err := s.Schedule("general", "first", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.Schedule("general", "future", time.Now().Add(time.Hour))
	require.NoError(t, err)

	due, err := s.DuePending()
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, past.ID, due[0].ID)
}

func TestMarkPostedTransitionsStatus(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	p, err := s.Schedule("general", "hello", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.MarkPosted(p.ID))

	all, err := s.List(StatusPosted)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].PostedAt)
}

type fakePublisher struct {
	fail bool
	got  []string
}

func (f *fakePublisher) Publish(_ context.Context, channel, body string) error {
	if f.fail {
		return errors.New("publish failed")
	}
	f.got = append(f.got, channel+":"+body)
	return nil
}

func TestSchedulerRunOncePublishesDuePosts(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	p, err := s.Schedule("general", "hello", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	pub := &fakePublisher{}
	sched := NewScheduler(s, pub, zap.NewNop())
	require.NoError(t, sched.RunOnce(context.Background()))

	require.Len(t, pub.got, 1)
	posted, err := s.List(StatusPosted)
	require.NoError(t, err)
	require.Len(t, posted, 1)
	require.Equal(t, p.ID, posted[0].ID)
}

func TestSchedulerRunOnceMarksFailedOnPublishError(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	p, err := s.Schedule("general", "hello", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	pub := &fakePublisher{fail: true}
	sched := NewScheduler(s, pub, zap.NewNop())
	require.NoError(t, sched.RunOnce(context.Background()))

	failed, err := s.List(StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, p.ID, failed[0].ID)
	require.NotEmpty(t, failed[0].Error)
}

func TestScheduleRejectsEmptyBody(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Schedule("general", "   ", time.Now())
	require.Error(t, err)
}
