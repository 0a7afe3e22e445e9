// Package registry implements the in-memory, volatile instance registry:
// no persistence, lazy expiry on access, and a conflict-check query over
// active file lists.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetd/internal/ferrors"
)

// DefaultIdleThreshold is the default expiry window since last heartbeat.
const DefaultIdleThreshold = 10 * time.Minute

// Instance is the volatile record described in §3.
type Instance struct {
	ID             string    `json:"id"`
	Workspace      string    `json:"workspace"`
	Platform       string    `json:"platform"`
	Status         string    `json:"status"`
	Activity       string    `json:"activity"`
	ActiveFiles    []string  `json:"active_files"`
	RegisteredAt   time.Time `json:"registered_at"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
	HeartbeatCount int       `json:"heartbeat_count"`
}

// Registry owns its own mutex; every operation purges expired instances
// under that mutex before doing its own work.
type Registry struct {
	mu            sync.Mutex
	instances     map[string]*Instance
	idleThreshold time.Duration

	// onExpire is invoked for every instance purged by a lazy sweep, after
	// the registry's own mutex has been released, so the task store's
	// auto-release can run without nesting under the registry lock (per
	// §5's "no super-lock" guidance).
	onExpire func(instanceID string)
}

func New(idleThreshold time.Duration, onExpire func(instanceID string)) *Registry {
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	return &Registry{instances: map[string]*Instance{}, idleThreshold: idleThreshold, onExpire: onExpire}
}

// purge removes every instance whose last heartbeat exceeds the idle
// threshold, must be called with mu held. Returns the expired ids so the
// caller can notify onExpire after releasing the lock.
func (r *Registry) purge() []string {
	var expired []string
	now := time.Now()
	for id, inst := range r.instances {
		if now.Sub(inst.LastHeartbeat) > r.idleThreshold {
			expired = append(expired, id)
			delete(r.instances, id)
		}
	}
	return expired
}

func (r *Registry) purgeAndNotify() {
	r.mu.Lock()
	expired := r.purge()
	r.mu.Unlock()
	if r.onExpire != nil {
		for _, id := range expired {
			r.onExpire(id)
		}
	}
}

// Register creates a fresh opaque id and returns the new instance.
func (r *Registry) Register(workspace, platform string) *Instance {
	r.purgeAndNotify()

	r.mu.Lock()
	defer r.mu.Unlock()
	inst := &Instance{
		ID:            uuid.NewString()[:8],
		Workspace:     workspace,
		Platform:      platform,
		RegisteredAt:  time.Now(),
		LastHeartbeat: time.Now(),
	}
	r.instances[inst.ID] = inst
	cp := *inst
	return &cp
}

// Heartbeat bumps last-contact and the heartbeat count, optionally
// updating status.
func (r *Registry) Heartbeat(id, status string) (*Instance, error) {
	r.purgeAndNotify()

	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, ferrors.New(ferrors.NotFound, "instance %q not found", id)
	}
	inst.LastHeartbeat = time.Now()
	inst.HeartbeatCount++
	if status != "" {
		inst.Status = status
	}
	cp := *inst
	return &cp, nil
}

// UpdateStatus is a lightweight partial update of status/activity/active
// files that does NOT reset the expiry clock.
func (r *Registry) UpdateStatus(id, status, activity string, activeFiles []string) (*Instance, error) {
	r.purgeAndNotify()

	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, ferrors.New(ferrors.NotFound, "instance %q not found", id)
	}
	if status != "" {
		inst.Status = status
	}
	if activity != "" {
		inst.Activity = activity
	}
	if activeFiles != nil {
		inst.ActiveFiles = activeFiles
	}
	cp := *inst
	return &cp, nil
}

// Deregister removes an instance explicitly.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	_, existed := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()
	if existed && r.onExpire != nil {
		r.onExpire(id)
	}
}

// Get returns a single live instance.
func (r *Registry) Get(id string) (*Instance, error) {
	r.purgeAndNotify()

	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, ferrors.New(ferrors.NotFound, "instance %q not found", id)
	}
	cp := *inst
	return &cp, nil
}

// List returns every currently live instance.
func (r *Registry) List() []*Instance {
	r.purgeAndNotify()

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		cp := *inst
		out = append(out, &cp)
	}
	return out
}

// ConflictRecord is one entry in a conflict check's result.
type ConflictRecord struct {
	File     string `json:"file"`
	OtherID  string `json:"other_id"`
	Workspace string `json:"workspace"`
	Platform string `json:"platform"`
	Activity string `json:"activity"`
}

// CheckConflicts returns, for every other live instance whose active-file
// list intersects files, one record per intersecting file.
func (r *Registry) CheckConflicts(instanceID string, files []string) []ConflictRecord {
	r.purgeAndNotify()

	r.mu.Lock()
	defer r.mu.Unlock()

	needle := make(map[string]bool, len(files))
	for _, f := range files {
		needle[f] = true
	}

	var conflicts []ConflictRecord
	for id, inst := range r.instances {
		if id == instanceID {
			continue
		}
		for _, f := range inst.ActiveFiles {
			if needle[f] {
				conflicts = append(conflicts, ConflictRecord{
					File: f, OtherID: id, Workspace: inst.Workspace, Platform: inst.Platform, Activity: inst.Activity,
				})
			}
		}
	}
	return conflicts
}
