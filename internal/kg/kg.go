// Package kg implements the knowledge graph store: a single JSON document
// of entities and directed relations, loaded whole and saved atomically
// with a rolling backup.
package kg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetd/internal/ferrors"
)

// Entity is a knowledge graph node.
type Entity struct {
	Name         string    `json:"name"`
	EntityType   string    `json:"entity_type"`
	Observations []string  `json:"observations"`
	CreatedAt    time.Time `json:"created_at"`
}

// Relation is a directed edge between two entities.
type Relation struct {
	From         string    `json:"from_entity"`
	RelationType string    `json:"relation_type"`
	To           string    `json:"to_entity"`
	CreatedAt    time.Time `json:"created_at"`
}

// Graph is the whole-document shape persisted to disk.
type Graph struct {
	Entities  map[string]*Entity `json:"entities"`
	Relations []Relation         `json:"relations"`
	LastSync  string             `json:"last_sync"`
}

func emptyGraph() *Graph {
	return &Graph{Entities: map[string]*Entity{}, Relations: []Relation{}}
}

// Store serializes every mutation behind a single mutex and persists the
// whole document on every write, matching the source's atomic-write-plus-
// rolling-backup discipline.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// New creates a store rooted at path (e.g. ".../bridge/knowledge.json").
// The backing file is created lazily on first write; reads before that
// return an empty graph.
func New(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) backupPath() string { return s.path + ".bak" }
func (s *Store) tmpPath() string    { return s.path + ".tmp" }

// load reads the whole document under the caller's lock. A corrupt primary
// falls back to the backup; both corrupt yields an empty graph and a
// logged warning — it never returns an error to the caller.
func (s *Store) load() *Graph {
	if g, err := readGraph(s.path); err == nil {
		return g
	} else if !os.IsNotExist(err) {
		s.logger.Warn("knowledge graph primary unreadable, falling back to backup",
			zap.String("path", s.path), zap.Error(err))
	}

	if g, err := readGraph(s.backupPath()); err == nil {
		return g
	} else if !os.IsNotExist(err) {
		s.logger.Warn("knowledge graph backup also unreadable, starting empty",
			zap.String("path", s.backupPath()), zap.Error(err))
	}

	return emptyGraph()
}

func readGraph(path string) (*Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	if g.Entities == nil {
		g.Entities = map[string]*Entity{}
	}
	if g.Relations == nil {
		g.Relations = []Relation{}
	}
	return &g, nil
}

// save writes g atomically (temp file + rename) and rolls the previous
// primary into the backup slot first.
func (s *Store) save(g *Graph) error {
	g.LastSync = time.Now().UTC().Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "create knowledge graph directory")
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "encode knowledge graph")
	}

	if err := os.WriteFile(s.tmpPath(), data, 0o644); err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "write knowledge graph temp file")
	}

	if _, err := os.Stat(s.path); err == nil {
		_ = copyFile(s.path, s.backupPath())
	}

	if err := os.Rename(s.tmpPath(), s.path); err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "commit knowledge graph write")
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

// Snapshot returns a copy of the current graph for read-only callers.
func (s *Store) Snapshot() *Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	return cloneGraph(g)
}

func cloneGraph(g *Graph) *Graph {
	out := &Graph{Entities: make(map[string]*Entity, len(g.Entities)), Relations: append([]Relation{}, g.Relations...), LastSync: g.LastSync}
	for name, e := range g.Entities {
		cp := *e
		cp.Observations = append([]string{}, e.Observations...)
		out.Entities[name] = &cp
	}
	return out
}

// AddEntity is idempotent: if the entity exists, observations are unioned
// (deduplicated); otherwise a new entity is created.
func (s *Store) AddEntity(name, entityType string, observations []string) (*Entity, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ferrors.New(ferrors.InvalidArgument, "entity name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()

	e, exists := g.Entities[name]
	if !exists {
		e = &Entity{Name: name, EntityType: entityType, Observations: []string{}, CreatedAt: time.Now().UTC()}
		g.Entities[name] = e
	}
	if entityType != "" {
		e.EntityType = entityType
	}
	e.Observations = unionStrings(e.Observations, observations)

	if err := s.save(g); err != nil {
		return nil, err
	}
	cp := *e
	return &cp, nil
}

func unionStrings(existing, add []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(existing)+len(add))
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// AddObservation appends a single observation if it is not already present.
func (s *Store) AddObservation(entityName, observation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	e, ok := g.Entities[entityName]
	if !ok {
		return ferrors.New(ferrors.NotFound, "entity %q not found", entityName)
	}
	for _, o := range e.Observations {
		if o == observation {
			return nil
		}
	}
	e.Observations = append(e.Observations, observation)
	return s.save(g)
}

// AddRelation refuses if either endpoint is missing.
func (s *Store) AddRelation(from, relType, to string) (*Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	if _, ok := g.Entities[from]; !ok {
		return nil, ferrors.New(ferrors.InvalidArgument, "entity %q not found", from)
	}
	if _, ok := g.Entities[to]; !ok {
		return nil, ferrors.New(ferrors.InvalidArgument, "entity %q not found", to)
	}
	rel := Relation{From: from, RelationType: relType, To: to, CreatedAt: time.Now().UTC()}
	g.Relations = append(g.Relations, rel)
	if err := s.save(g); err != nil {
		return nil, err
	}
	return &rel, nil
}

// DeleteEntity cascades to remove every incident relation.
func (s *Store) DeleteEntity(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	if _, ok := g.Entities[name]; !ok {
		return ferrors.New(ferrors.NotFound, "entity %q not found", name)
	}
	delete(g.Entities, name)
	kept := g.Relations[:0]
	for _, r := range g.Relations {
		if r.From != name && r.To != name {
			kept = append(kept, r)
		}
	}
	g.Relations = kept
	return s.save(g)
}

// DeleteObservationBySubstring removes observations containing substr
// (case-insensitive).
func (s *Store) DeleteObservationBySubstring(entityName, substr string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	e, ok := g.Entities[entityName]
	if !ok {
		return 0, ferrors.New(ferrors.NotFound, "entity %q not found", entityName)
	}
	needle := strings.ToLower(substr)
	kept := e.Observations[:0]
	removed := 0
	for _, o := range e.Observations {
		if strings.Contains(strings.ToLower(o), needle) {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	e.Observations = kept
	if removed > 0 {
		if err := s.save(g); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// DeleteRelation removes an exact triple match (all occurrences).
func (s *Store) DeleteRelation(from, relType, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	kept := g.Relations[:0]
	removed := 0
	for _, r := range g.Relations {
		if r.From == from && r.RelationType == relType && r.To == to {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	g.Relations = kept
	if removed > 0 {
		if err := s.save(g); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// RenameEntity rewrites incident relations; refuses if newName exists.
func (s *Store) RenameEntity(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	e, ok := g.Entities[oldName]
	if !ok {
		return ferrors.New(ferrors.NotFound, "entity %q not found", oldName)
	}
	if _, exists := g.Entities[newName]; exists {
		return ferrors.New(ferrors.Conflict, "entity %q already exists", newName)
	}
	e.Name = newName
	g.Entities[newName] = e
	delete(g.Entities, oldName)
	for i := range g.Relations {
		if g.Relations[i].From == oldName {
			g.Relations[i].From = newName
		}
		if g.Relations[i].To == oldName {
			g.Relations[i].To = newName
		}
	}
	return s.save(g)
}

// MergeEntities unions observations, redirects incident relations to
// target, drops self-loops, deduplicates the resulting triples, and
// deletes source.
func (s *Store) MergeEntities(source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.load()
	src, ok := g.Entities[source]
	if !ok {
		return ferrors.New(ferrors.NotFound, "entity %q not found", source)
	}
	tgt, ok := g.Entities[target]
	if !ok {
		return ferrors.New(ferrors.NotFound, "entity %q not found", target)
	}

	tgt.Observations = unionStrings(tgt.Observations, src.Observations)
	delete(g.Entities, source)

	redirected := make([]Relation, 0, len(g.Relations))
	for _, r := range g.Relations {
		if r.From == source {
			r.From = target
		}
		if r.To == source {
			r.To = target
		}
		if r.From == target && r.To == target {
			continue // self-loop removed by merge
		}
		redirected = append(redirected, r)
	}
	g.Relations = dedupeRelations(redirected)
	return s.save(g)
}

func dedupeRelations(rels []Relation) []Relation {
	seen := map[Relation]bool{}
	out := make([]Relation, 0, len(rels))
	for _, r := range rels {
		key := Relation{From: r.From, RelationType: r.RelationType, To: r.To}
		if !seen[key] {
			seen[key] = true
			out = append(out, r)
		}
	}
	return out
}

// QueryResult bundles matching entities and relations for a substring query.
type QueryResult struct {
	Entities  []*Entity  `json:"entities"`
	Relations []Relation `json:"relations"`
}

// QueryBySubstring matches entity name, type, observations, and relation
// components, case-insensitive.
func (s *Store) QueryBySubstring(q string) QueryResult {
	s.mu.Lock()
	g := s.load()
	s.mu.Unlock()

	needle := strings.ToLower(q)
	result := QueryResult{}
	for _, e := range g.Entities {
		if strings.Contains(strings.ToLower(e.Name), needle) ||
			strings.Contains(strings.ToLower(e.EntityType), needle) ||
			containsSubstring(e.Observations, needle) {
			cp := *e
			result.Entities = append(result.Entities, &cp)
		}
	}
	for _, r := range g.Relations {
		if strings.Contains(strings.ToLower(r.From), needle) ||
			strings.Contains(strings.ToLower(r.RelationType), needle) ||
			strings.Contains(strings.ToLower(r.To), needle) {
			result.Relations = append(result.Relations, r)
		}
	}
	return result
}

func containsSubstring(list []string, needle string) bool {
	for _, v := range list {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
