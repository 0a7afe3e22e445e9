package render

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Executor implements the generation-queue executor worker of §4.7: pick
// the next approved plan, submit it, poll for completion within a
// deadline, record success or failure.
type Executor struct {
	store    *Store
	client   Client
	logger   *zap.Logger
	deadline time.Duration
}

func NewExecutor(store *Store, client Client, logger *zap.Logger) *Executor {
	return &Executor{store: store, client: client, logger: logger, deadline: 2 * time.Minute}
}

// RunOnce picks the next approved plan (if any) and drives it to
// completion or failure. It is the unit the watchdog re-invokes every
// queue_interval_seconds.
func (e *Executor) RunOnce(ctx context.Context) error {
	plan, err := e.store.NextApproved()
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}

	if err := e.store.MarkExecuting(plan.ID); err != nil {
		return err
	}

	jobID, err := e.client.Submit(ctx, plan)
	if err != nil {
		return e.store.MarkFailed(plan.ID, err.Error())
	}

	deadline := time.Now().Add(e.deadline)
	for time.Now().Before(deadline) {
		done, outputPath, pollErr := e.client.Poll(ctx, jobID)
		if pollErr != nil {
			return e.store.MarkFailed(plan.ID, pollErr.Error())
		}
		if done {
			return e.store.MarkCompleted(plan.ID, outputPath)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return e.store.MarkFailed(plan.ID, "timed out waiting for render completion")
}
