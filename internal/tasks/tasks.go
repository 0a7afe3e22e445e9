// Package tasks implements the task coordination engine: the append-of-
// records task store, the scope-overlap predicate, the availability
// query, and the claim/complete/fail/release state machine.
package tasks

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetd/internal/ferrors"
)

// Status is one of the five task lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Priority is one of the four task priority buckets, ordered critical
// first for availability sorting.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func priorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Scope is a task's declared footprint.
type Scope struct {
	Files []string `json:"files"`
	Dirs  []string `json:"dirs"`
	Tags  []string `json:"tags"`
}

// ProgressNote is one entry in a task's progress-note list.
type ProgressNote struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// Task is the full record described in §3.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Project      string         `json:"project"`
	Scope        Scope          `json:"scope"`
	Priority     Priority       `json:"priority"`
	Status       Status         `json:"status"`
	Dependencies []string       `json:"dependencies"`
	CreatedBy    string         `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	ClaimedBy    *string        `json:"claimed_by"`
	ClaimedAt    *time.Time     `json:"claimed_at"`
	StartedAt    *time.Time     `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at"`
	Result       string         `json:"result"`
	Artifacts    []string       `json:"artifacts"`
	Notes        []ProgressNote `json:"notes"`
}

type document struct {
	Tasks []*Task `json:"tasks"`
}

// Store owns the task file and a single coarse mutex. Per §9's guidance,
// a plain sync.Mutex is kept rather than a RWMutex: mutation operations
// dominate and every hold is short.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) backupPath() string { return s.path + ".bak" }
func (s *Store) tmpPath() string    { return s.path + ".tmp" }

func (s *Store) load() *document {
	if doc, err := readDoc(s.path); err == nil {
		return doc
	} else if !os.IsNotExist(err) {
		s.logger.Warn("task store primary unreadable, falling back to backup", zap.Error(err))
	}
	if doc, err := readDoc(s.backupPath()); err == nil {
		return doc
	} else if !os.IsNotExist(err) {
		s.logger.Warn("task store backup also unreadable, starting empty", zap.Error(err))
		s.quarantine()
	}
	return &document{Tasks: []*Task{}}
}

// quarantine renames an unreadable primary aside so the daemon can start
// with an empty store instead of crashing or looping on the same corrupt
// bytes forever.
func (s *Store) quarantine() {
	if _, err := os.Stat(s.path); err != nil {
		return
	}
	dest := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().Unix())
	_ = os.Rename(s.path, dest)
}

func readDoc(path string) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Tasks == nil {
		doc.Tasks = []*Task{}
	}
	return &doc, nil
}

func (s *Store) save(doc *document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "create task store directory")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "encode task store")
	}
	if err := os.WriteFile(s.tmpPath(), data, 0o644); err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "write task store temp file")
	}
	if _, err := os.Stat(s.path); err == nil {
		_ = copyFile(s.path, s.backupPath())
	}
	if err := os.Rename(s.tmpPath(), s.path); err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "commit task store write")
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func newTaskID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("060102"), hex.EncodeToString(buf))
}

func findTask(doc *document, id string) *Task {
	for _, t := range doc.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ScopesOverlap implements §4.1's symmetric predicate: shared file, a
// directory-prefix relationship in either direction, or a shared tag.
func ScopesOverlap(a, b Scope) bool {
	if stringSetsIntersect(a.Files, b.Files) {
		return true
	}
	if stringSetsIntersect(a.Tags, b.Tags) {
		return true
	}
	for _, da := range a.Dirs {
		for _, db := range b.Dirs {
			if dirPrefixOverlap(da, db) {
				return true
			}
		}
	}
	return false
}

func stringSetsIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}

func normalizeDir(d string) string {
	d = strings.ReplaceAll(d, "\\", "/")
	if !strings.HasSuffix(d, "/") {
		d += "/"
	}
	return d
}

// dirPrefixOverlap normalizes both paths to forward slashes with a
// trailing separator so "src" and "src/" are treated as the same
// directory, and a path is a prefix of itself.
func dirPrefixOverlap(a, b string) bool {
	na, nb := normalizeDir(a), normalizeDir(b)
	return strings.HasPrefix(na, nb) || strings.HasPrefix(nb, na)
}

// Create inserts a new pending task.
func (s *Store) Create(t *Task) (*Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, ferrors.New(ferrors.InvalidArgument, "title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()

	cp := *t
	cp.ID = newTaskID()
	cp.Status = StatusPending
	cp.CreatedAt = time.Now().UTC()
	if cp.Priority == "" {
		cp.Priority = PriorityMedium
	}
	if cp.Dependencies == nil {
		cp.Dependencies = []string{}
	}
	if cp.Artifacts == nil {
		cp.Artifacts = []string{}
	}
	if cp.Notes == nil {
		cp.Notes = []ProgressNote{}
	}
	doc.Tasks = append(doc.Tasks, &cp)
	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := cp
	return &out, nil
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return nil, ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	out := *t
	return &out, nil
}

// List returns copies of every task, optionally filtered by status.
func (s *Store) List(status Status) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	out := make([]*Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if status != "" && t.Status != status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func completedSet(doc *document) map[string]bool {
	set := map[string]bool{}
	for _, t := range doc.Tasks {
		if t.Status == StatusCompleted {
			set[t.ID] = true
		}
	}
	return set
}

func activeScopes(doc *document, excludeID string) []Scope {
	var scopes []Scope
	for _, t := range doc.Tasks {
		if t.ID == excludeID {
			continue
		}
		if t.Status == StatusClaimed || t.Status == StatusInProgress {
			scopes = append(scopes, t.Scope)
		}
	}
	return scopes
}

func isAvailable(t *Task, doc *document) bool {
	if t.Status != StatusPending {
		return false
	}
	done := completedSet(doc)
	for _, dep := range t.Dependencies {
		if !done[dep] {
			return false
		}
	}
	for _, active := range activeScopes(doc, t.ID) {
		if ScopesOverlap(t.Scope, active) {
			return false
		}
	}
	return true
}

// Available returns every available task, sorted by priority then
// creation order, per §4.1.
func (s *Store) Available() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()

	var out []*Task
	for _, t := range doc.Tasks {
		if isAvailable(t, doc) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Claim re-checks availability under the lock before transitioning
// pending → claimed. Returns (nil, nil) — not an error — when the task
// lost the race, matching the "claim either wins or returns null"
// contract used by S1/S4-style races.
func (s *Store) Claim(id, instanceID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return nil, ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	if !isAvailable(t, doc) {
		return nil, nil
	}
	now := time.Now().UTC()
	t.Status = StatusClaimed
	t.ClaimedBy = &instanceID
	t.ClaimedAt = &now
	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

func (s *Store) requireClaimer(t *Task, instanceID string) error {
	if t.ClaimedBy == nil || *t.ClaimedBy != instanceID {
		return ferrors.New(ferrors.Conflict, "task %q is not claimed by %q", t.ID, instanceID)
	}
	return nil
}

// Start transitions claimed → in-progress; only the current claimer may.
func (s *Store) Start(id, instanceID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return nil, ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	if err := s.requireClaimer(t, instanceID); err != nil {
		return nil, err
	}
	if t.Status != StatusClaimed {
		return nil, ferrors.New(ferrors.Conflict, "task %q is not claimed", id)
	}
	now := time.Now().UTC()
	t.Status = StatusInProgress
	t.StartedAt = &now
	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// AddNote appends a progress note; only the current claimer may.
func (s *Store) AddNote(id, instanceID, text string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return nil, ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	if err := s.requireClaimer(t, instanceID); err != nil {
		return nil, err
	}
	t.Notes = append(t.Notes, ProgressNote{Timestamp: time.Now().UTC(), Text: text})
	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// Complete transitions {claimed,in-progress} → completed; only the
// current claimer may, recording result and artifacts.
func (s *Store) Complete(id, instanceID, result string, artifacts []string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return nil, ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	if err := s.requireClaimer(t, instanceID); err != nil {
		return nil, err
	}
	if t.Status != StatusClaimed && t.Status != StatusInProgress {
		return nil, ferrors.New(ferrors.Conflict, "task %q cannot be completed from status %q", id, t.Status)
	}
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.Result = result
	if artifacts != nil {
		t.Artifacts = artifacts
	}
	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// Fail recycles {claimed,in-progress} → pending with a failure note; the
// task is not terminated, only the current claimer may fail it.
func (s *Store) Fail(id, instanceID, reason string) (*Task, error) {
	return s.recycle(id, instanceID, "failure: "+reason, true)
}

// Release recycles {claimed,in-progress} → pending with a release note;
// only the current claimer may release it voluntarily.
func (s *Store) Release(id, instanceID, reason string) (*Task, error) {
	return s.recycle(id, instanceID, "released: "+reason, true)
}

func (s *Store) recycle(id, instanceID, noteText string, requireClaimer bool) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return nil, ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	if requireClaimer {
		if err := s.requireClaimer(t, instanceID); err != nil {
			return nil, err
		}
	}
	if t.Status != StatusClaimed && t.Status != StatusInProgress {
		return nil, ferrors.New(ferrors.Conflict, "task %q cannot be recycled from status %q", id, t.Status)
	}
	t.Status = StatusPending
	t.ClaimedBy = nil
	t.ClaimedAt = nil
	t.StartedAt = nil
	t.Notes = append(t.Notes, ProgressNote{Timestamp: time.Now().UTC(), Text: noteText})
	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// ForceFail sets status to the terminal failed value directly (admin
// operation per Open Question 3); dependents remain blocked since their
// prerequisite never reaches completed.
func (s *Store) ForceFail(id, reason string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return nil, ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	t.Status = StatusFailed
	t.ClaimedBy = nil
	t.ClaimedAt = nil
	t.Notes = append(t.Notes, ProgressNote{Timestamp: time.Now().UTC(), Text: "failed: " + reason})
	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// Delete refuses deletion of an active (claimed/in-progress) task.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	t := findTask(doc, id)
	if t == nil {
		return ferrors.New(ferrors.NotFound, "task %q not found", id)
	}
	if t.Status == StatusClaimed || t.Status == StatusInProgress {
		return ferrors.New(ferrors.Conflict, "cannot delete active task %q", id)
	}
	kept := doc.Tasks[:0]
	for _, other := range doc.Tasks {
		if other.ID != id {
			kept = append(kept, other)
		}
	}
	doc.Tasks = kept
	return s.save(doc)
}

// ReleaseAllForInstance auto-releases every task claimed by instanceID,
// per invariant 1. It is atomic with respect to concurrent claim
// attempts since it holds the same store mutex.
func (s *Store) ReleaseAllForInstance(instanceID, reason string) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()

	var released []*Task
	now := time.Now().UTC()
	for _, t := range doc.Tasks {
		if t.ClaimedBy == nil || *t.ClaimedBy != instanceID {
			continue
		}
		if t.Status != StatusClaimed && t.Status != StatusInProgress {
			continue
		}
		t.Status = StatusPending
		t.ClaimedBy = nil
		t.ClaimedAt = nil
		t.StartedAt = nil
		t.Notes = append(t.Notes, ProgressNote{Timestamp: now, Text: "auto-released: " + reason})
		cp := *t
		released = append(released, &cp)
	}
	if len(released) == 0 {
		return nil, nil
	}
	if err := s.save(doc); err != nil {
		return nil, err
	}
	return released, nil
}

// Board groups every task by status, for the /tasks/board endpoint.
func (s *Store) Board() map[Status][]*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	board := map[Status][]*Task{}
	for _, t := range doc.Tasks {
		cp := *t
		board[t.Status] = append(board[t.Status], &cp)
	}
	return board
}
