// Package social implements the post scheduler: a directory of
// scheduled-post JSON files plus a supervised worker that publishes due
// posts with an honest timestamp footer. Grounded on
// original_source/moltbook_scheduler.py's queue shape and due-check
// cadence; the external network's post schema is an out-of-scope
// adapter boundary (Publisher).
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetd/internal/ferrors"
	"fleetd/internal/outbound"
)

// Status is a scheduled post's lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusPosted  Status = "posted"
	StatusFailed  Status = "failed"
)

// Post is the record described in SPEC_FULL.md §3.1.
type Post struct {
	ID          string     `json:"id"`
	Channel     string     `json:"channel"`
	Body        string     `json:"body"`
	RequestedAt time.Time  `json:"requested_at"`
	DueAt       time.Time  `json:"due_at"`
	PostedAt    *time.Time `json:"posted_at"`
	Status      Status     `json:"status"`
	Error       string     `json:"error"`
}

// Store manages the queue/post directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) nextID() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	max := 0
	for _, e := range entries {
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) < 1 {
			continue
		}
		if n, convErr := strconv.Atoi(parts[0]); convErr == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%03d", max+1), nil
}

func (s *Store) postPath(id string, requestedAt time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", id, requestedAt.UTC().Format("20060102_150405")))
}

// Schedule creates a new pending post due at dueAt.
func (s *Store) Schedule(channel, body string, dueAt time.Time) (*Post, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ferrors.New(ferrors.InvalidArgument, "body is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "create post queue directory")
	}
	id, err := s.nextID()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "compute next post id")
	}
	p := &Post{ID: id, Channel: channel, Body: body, RequestedAt: time.Now().UTC(), DueAt: dueAt, Status: StatusPending}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "encode post")
	}
	if err := os.WriteFile(s.postPath(p.ID, p.RequestedAt), data, 0o644); err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "write post")
	}
	return p, nil
}

// List returns every post, optionally filtered by status, oldest first.
func (s *Store) List(status Status) ([]*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferrors.Wrap(ferrors.Internal, err, "list post queue")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []*Post
	for _, name := range names {
		data, readErr := os.ReadFile(filepath.Join(s.dir, name))
		if readErr != nil {
			continue
		}
		var p Post
		if jsonErr := json.Unmarshal(data, &p); jsonErr != nil {
			continue
		}
		if status == "" || p.Status == status {
			out = append(out, &p)
		}
	}
	return out, nil
}

// DuePending returns pending posts whose due time has passed.
func (s *Store) DuePending() ([]*Post, error) {
	pending, err := s.List(StatusPending)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var due []*Post
	for _, p := range pending {
		if !p.DueAt.After(now) {
			due = append(due, p)
		}
	}
	return due, nil
}

func (s *Store) update(id string, mutate func(*Post)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return ferrors.Wrap(ferrors.NotFound, err, "post %q not found", id)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), id+"_") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return ferrors.Wrap(ferrors.Internal, readErr, "read post %q", id)
		}
		var p Post
		if jsonErr := json.Unmarshal(data, &p); jsonErr != nil {
			return ferrors.Wrap(ferrors.CorruptStore, jsonErr, "parse post %q", id)
		}
		mutate(&p)
		out, marshalErr := json.MarshalIndent(&p, "", "  ")
		if marshalErr != nil {
			return ferrors.Wrap(ferrors.Internal, marshalErr, "encode post %q", id)
		}
		return os.WriteFile(path, out, 0o644)
	}
	return ferrors.New(ferrors.NotFound, "post %q not found", id)
}

func (s *Store) MarkPosted(id string) error {
	return s.update(id, func(p *Post) {
		now := time.Now().UTC()
		p.Status = StatusPosted
		p.PostedAt = &now
	})
}

func (s *Store) MarkFailed(id, errMsg string) error {
	return s.update(id, func(p *Post) {
		p.Status = StatusFailed
		p.Error = errMsg
	})
}

// Publisher is the external social network adapter boundary.
type Publisher interface {
	Publish(ctx context.Context, channel, body string) error
}

// HTTPPublisher posts to a configured social endpoint via the shared
// outbound client, injecting an honest-timestamp footer per §4.7's
// requirement that posts never pretend to be live.
type HTTPPublisher struct {
	base *outbound.Client
	url  string
}

func NewHTTPPublisher(base *outbound.Client, url string) *HTTPPublisher {
	return &HTTPPublisher{base: base, url: url}
}

func (p *HTTPPublisher) Publish(ctx context.Context, channel, body string) error {
	footer := fmt.Sprintf("\n\n[posted by the fleet daemon at %s]", time.Now().UTC().Format(time.RFC3339))
	return p.base.PostJSON(ctx, "social", p.url, map[string]any{
		"channel": channel,
		"body":    body + footer,
	}, nil)
}

// Scheduler implements the §4.7 scheduler worker.
type Scheduler struct {
	store     *Store
	publisher Publisher
	logger    *zap.Logger
}

func NewScheduler(store *Store, publisher Publisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{store: store, publisher: publisher, logger: logger}
}

// RunOnce publishes every currently-due pending post.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	due, err := s.store.DuePending()
	if err != nil {
		return err
	}
	for _, p := range due {
		if err := s.publisher.Publish(ctx, p.Channel, p.Body); err != nil {
			if markErr := s.store.MarkFailed(p.ID, err.Error()); markErr != nil {
				return markErr
			}
			s.logger.Warn("scheduled post failed", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		if err := s.store.MarkPosted(p.ID); err != nil {
			return err
		}
	}
	return nil
}
