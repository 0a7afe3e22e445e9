package watchdog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSuperviseRestartsAfterError(t *testing.T) {
	w := New(zap.NewNop())
	w.RestartDelay = 10 * time.Millisecond

	var calls int32
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	w.Supervise(ctx, Worker{
		Name:     "flaky",
		Interval: time.Millisecond,
		RunOnce: func(ctx context.Context) error {
			n := atomic.AddInt32(&calls, 1)
			if n <= 2 {
				return errors.New("boom")
			}
			return nil
		},
	})

	require.GreaterOrEqual(t, calls, int32(2))
	status := w.Status()
	require.Len(t, status, 1)
	require.Equal(t, "flaky", status[0].Name)
	require.GreaterOrEqual(t, status[0].RestartCount, 1)
	require.NotEmpty(t, status[0].LastError)
}

func TestSuperviseRecoversFromPanic(t *testing.T) {
	w := New(zap.NewNop())
	w.RestartDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	w.Supervise(ctx, Worker{
		Name:     "panicky",
		Interval: time.Millisecond,
		RunOnce: func(ctx context.Context) error {
			panic("nope")
		},
	})

	status := w.Status()
	require.Len(t, status, 1)
	require.GreaterOrEqual(t, status[0].RestartCount, 1)
}

func TestRunStartsAllWorkersAndStopsOnCancel(t *testing.T) {
	w := New(zap.NewNop())
	var a, b int32

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	w.Run(ctx,
		Worker{Name: "a", Interval: time.Millisecond, RunOnce: func(ctx context.Context) error {
			atomic.AddInt32(&a, 1)
			return nil
		}},
		Worker{Name: "b", Interval: time.Millisecond, RunOnce: func(ctx context.Context) error {
			atomic.AddInt32(&b, 1)
			return nil
		}},
	)

	require.Greater(t, a, int32(0))
	require.Greater(t, b, int32(0))
}
