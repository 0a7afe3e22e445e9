// Package watcher tracks file changes across the approved watch
// directories. Two mechanisms feed one ring buffer: an fsnotify
// subscription reacts to changes in real time, and a periodic
// mtime-diff reconciliation sweep (grounded on
// original_source/file_watcher.py's snapshot/diff loop) catches
// anything fsnotify misses — network mounts, events dropped under
// load, directories added after startup.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeType is the kind of change detected for a path.
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
)

// Change is one recorded file event.
type Change struct {
	Type ChangeType `json:"type"`
	Path string     `json:"path"`
	Time time.Time  `json:"time"`
}

// skipDirs and skipFiles mirror the approved-directory boundary: noise
// directories and the watcher's own output are never tracked.
var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true, ".venv": true,
	"venv": true, "processed": true, "archive": true, ".next": true,
	"dist": true, "build": true, "queue": true,
}

const maxRecentChanges = 100

// Watcher maintains the ring buffer of recent changes plus the mtime
// snapshot used for periodic reconciliation.
type Watcher struct {
	mu        sync.Mutex
	dirs      []string
	snapshot  map[string]time.Time
	recent    []Change
	pollCount int
	lastPoll  time.Time
	total     int
	logger    *zap.Logger
	fsw       *fsnotify.Watcher
}

// New builds a watcher over the given directories. Non-existent
// directories are skipped (recreated on the next reconciliation pass
// if they appear later).
func New(dirs []string, logger *zap.Logger) *Watcher {
	return &Watcher{dirs: dirs, snapshot: map[string]time.Time{}, logger: logger}
}

func shouldSkip(path string) bool {
	if filepath.Base(path) == "changes.log" {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}

// Init takes the initial mtime snapshot of every watched directory and
// starts the fsnotify subscription. Call once before the reconciliation
// loop begins.
func (w *Watcher) Init() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.dirs {
		snap, err := snapshotDir(d)
		if err != nil {
			continue
		}
		for path, mtime := range snap {
			w.snapshot[path] = mtime
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return len(w.snapshot), err
	}
	for _, d := range w.dirs {
		_ = filepath.Walk(d, func(path string, info os.FileInfo, err error) error {
			if err != nil || info == nil || !info.IsDir() || shouldSkip(path) {
				return nil
			}
			return fsw.Add(path)
		})
	}
	w.fsw = fsw
	go w.consumeEvents()

	return len(w.snapshot), nil
}

// Close stops the fsnotify subscription.
func (w *Watcher) Close() error {
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) consumeEvents() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if shouldSkip(ev.Name) {
				continue
			}
			w.recordEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", zap.Error(err))
		}
	}
}

func (w *Watcher) recordEvent(ev fsnotify.Event) {
	info, statErr := os.Stat(ev.Name)
	now := time.Now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		delete(w.snapshot, ev.Name)
		w.appendLocked(Change{Type: Deleted, Path: ev.Name, Time: now})
	case statErr == nil && info.IsDir():
		if ev.Op&fsnotify.Create != 0 && w.fsw != nil {
			_ = w.fsw.Add(ev.Name)
		}
	case statErr == nil:
		_, existed := w.snapshot[ev.Name]
		w.snapshot[ev.Name] = info.ModTime()
		if existed {
			w.appendLocked(Change{Type: Modified, Path: ev.Name, Time: now})
		} else {
			w.appendLocked(Change{Type: Added, Path: ev.Name, Time: now})
		}
	}
}

func (w *Watcher) appendLocked(c Change) {
	w.recent = append(w.recent, c)
	if len(w.recent) > maxRecentChanges {
		w.recent = w.recent[len(w.recent)-maxRecentChanges:]
	}
	w.total++
}

func snapshotDir(dir string) (map[string]time.Time, error) {
	snap := map[string]time.Time{}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return snap, err
	}
	err = filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info == nil || info.IsDir() || shouldSkip(path) {
			return nil
		}
		snap[path] = info.ModTime()
		return nil
	})
	return snap, err
}

// Reconcile runs the mtime-diff sweep: a full rescan compared against
// the last known snapshot, catching anything the fsnotify subscription
// missed. This is the worker RunOnce the watchdog calls periodically.
func (w *Watcher) Reconcile() error {
	current := map[string]time.Time{}
	for _, d := range w.dirs {
		snap, err := snapshotDir(d)
		if err != nil {
			continue
		}
		for path, mtime := range snap {
			current[path] = mtime
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollCount++
	w.lastPoll = time.Now().UTC()

	var changes []Change
	for path, mtime := range current {
		prev, ok := w.snapshot[path]
		if !ok {
			changes = append(changes, Change{Type: Added, Path: path, Time: mtime})
		} else if !mtime.Equal(prev) {
			changes = append(changes, Change{Type: Modified, Path: path, Time: mtime})
		}
	}
	for path := range w.snapshot {
		if _, ok := current[path]; !ok {
			changes = append(changes, Change{Type: Deleted, Path: path, Time: w.lastPoll})
		}
	}
	w.snapshot = current

	for _, c := range changes {
		w.appendLocked(c)
	}
	if len(changes) > 0 {
		w.logger.Info("reconciliation detected file changes", zap.Int("count", len(changes)))
	}
	return nil
}

// Recent returns up to limit of the most recently recorded changes.
func (w *Watcher) Recent(limit int) []Change {
	w.mu.Lock()
	defer w.mu.Unlock()
	if limit <= 0 || limit > len(w.recent) {
		limit = len(w.recent)
	}
	out := make([]Change, limit)
	copy(out, w.recent[len(w.recent)-limit:])
	return out
}

// Stats mirrors watcher_stats() from the original poller.
type Stats struct {
	TrackedFiles   int       `json:"tracked_files"`
	WatchedDirs    []string  `json:"watched_dirs"`
	PollCount      int       `json:"poll_count"`
	LastPoll       time.Time `json:"last_poll"`
	TotalChanges   int       `json:"total_changes"`
	RecentBuffered int       `json:"recent_changes_buffered"`
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	var existing []string
	for _, d := range w.dirs {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			existing = append(existing, d)
		}
	}
	return Stats{
		TrackedFiles:   len(w.snapshot),
		WatchedDirs:    existing,
		PollCount:      w.pollCount,
		LastPoll:       w.lastPoll,
		TotalChanges:   w.total,
		RecentBuffered: len(w.recent),
	}
}
