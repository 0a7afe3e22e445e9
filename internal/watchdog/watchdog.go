// Package watchdog supervises the daemon's background workers: each
// worker is a plain function invoked on a fixed interval, and a panic
// or returned error is caught, logged, and followed by a restart after
// a delay rather than taking down the whole process. Grounded on the
// catch-and-continue loops in original_source/file_watcher.py,
// generation_queue.py, and moltbook_scheduler.py's background_*
// functions, reimplemented as goroutine supervision with the restart
// bookkeeping those loops never tracked.
package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is the "Restart record" of SPEC_FULL.md §3.1, exposed via /status.
type Record struct {
	Name        string     `json:"name"`
	StartedAt   time.Time  `json:"started_at"`
	RestartCount int       `json:"restart_count"`
	LastError   string     `json:"last_error"`
	LastErrorAt *time.Time `json:"last_error_at"`
}

// Worker is one supervised unit: RunOnce does one unit of work and
// returns; the watchdog calls it repeatedly on Interval.
type Worker struct {
	Name     string
	Interval time.Duration
	RunOnce  func(ctx context.Context) error
}

// Watchdog runs a fixed set of workers, each on its own goroutine, and
// restarts a worker's loop (after RestartDelay) if it panics or its
// RunOnce keeps returning errors.
type Watchdog struct {
	mu           sync.Mutex
	records      map[string]*Record
	logger       *zap.Logger
	RestartDelay time.Duration
}

func New(logger *zap.Logger) *Watchdog {
	return &Watchdog{
		records:      map[string]*Record{},
		logger:       logger,
		RestartDelay: 5 * time.Second,
	}
}

// Status returns a snapshot of every worker's restart record.
func (w *Watchdog) Status() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Record, 0, len(w.records))
	for _, r := range w.records {
		out = append(out, *r)
	}
	return out
}

func (w *Watchdog) recordStart(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.records[name]; !ok {
		w.records[name] = &Record{Name: name, StartedAt: time.Now().UTC()}
	}
}

func (w *Watchdog) recordFailure(name string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.records[name]
	now := time.Now().UTC()
	r.RestartCount++
	r.LastError = err.Error()
	r.LastErrorAt = &now
}

// Supervise starts one worker's loop under a panic/error-tolerant
// wrapper and blocks until ctx is cancelled. Call it in its own
// goroutine per worker.
func (w *Watchdog) Supervise(ctx context.Context, wk Worker) {
	w.recordStart(wk.Name)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.runGuarded(ctx, wk); err != nil {
			w.logger.Warn("worker failed, restarting after delay",
				zap.String("worker", wk.Name), zap.Error(err), zap.Duration("delay", w.RestartDelay))
			w.recordFailure(wk.Name, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.RestartDelay):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wk.Interval):
		}
	}
}

// runGuarded converts a panic in RunOnce into an error so Supervise's
// loop never terminates the process for a misbehaving worker.
func (w *Watchdog) runGuarded(ctx context.Context, wk Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panicked: %v", wk.Name, r)
		}
	}()
	return wk.RunOnce(ctx)
}

// Run starts every worker's supervised loop and blocks until ctx is done.
func (w *Watchdog) Run(ctx context.Context, workers ...Worker) {
	var wg sync.WaitGroup
	for _, wk := range workers {
		wg.Add(1)
		go func(wk Worker) {
			defer wg.Done()
			w.Supervise(ctx, wk)
		}(wk)
	}
	wg.Wait()
}
