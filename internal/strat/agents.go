package strat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"fleetd/internal/ferrors"
)

// Agent is the durable record described in §3.
type Agent struct {
	ID         string     `json:"id"`
	Parent     string     `json:"parent"`
	Platform   string     `json:"platform"`
	Workspace  string     `json:"workspace"`
	Model      string     `json:"model"`
	CreatedAt  time.Time  `json:"created_at"`
	EndedAt    *time.Time `json:"ended_at"`
	EndSummary string     `json:"end_summary"`
}

// Store owns the stratigraphy database connection and the single
// store-wide write mutex called for in §4.3/§5.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// CreateAgent computes the next sequence number for the current day by
// scanning ids matching CH-<YYMMDD>-% and taking max+1, inside the write
// mutex so concurrent creates on the same day never collide.
func (s *Store) CreateAgent(parent, platform, workspace, model string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := time.Now().UTC().Format("060102")
	prefix := "CH-" + day + "-"

	var maxSeq int
	err := RetryWithBackoff(context.Background(), func() error {
		rows, queryErr := s.db.Query(`SELECT id FROM agents WHERE id LIKE ?`, prefix+"%")
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if scanErr := rows.Scan(&id); scanErr != nil {
				return scanErr
			}
			var seq int
			if _, scanErr := fmt.Sscanf(strings.TrimPrefix(id, prefix), "%d", &seq); scanErr == nil && seq > maxSeq {
				maxSeq = seq
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "scan existing agent ids")
	}

	agent := &Agent{
		ID:        fmt.Sprintf("%s%d", prefix, maxSeq+1),
		Parent:    parent,
		Platform:  platform,
		Workspace: workspace,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}

	err = RetryWithBackoff(context.Background(), func() error {
		_, execErr := s.db.Exec(
			`INSERT INTO agents (id, parent, platform, workspace, model, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			agent.ID, agent.Parent, agent.Platform, agent.Workspace, agent.Model, agent.CreatedAt.Format(time.RFC3339),
		)
		return execErr
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "insert agent")
	}
	return agent, nil
}

// EndAgent sets ended_at and end_summary. Invariant: ended_at is set at
// most once and only when currently null.
func (s *Store) EndAgent(id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alreadyEnded sql.NullString
	if err := s.db.QueryRow(`SELECT ended_at FROM agents WHERE id = ?`, id).Scan(&alreadyEnded); err != nil {
		if err == sql.ErrNoRows {
			return ferrors.New(ferrors.NotFound, "agent %q not found", id)
		}
		return ferrors.Wrap(ferrors.Internal, err, "look up agent")
	}
	if alreadyEnded.Valid {
		return ferrors.New(ferrors.Conflict, "agent %q has already ended", id)
	}

	return RetryWithBackoff(context.Background(), func() error {
		_, err := s.db.Exec(`UPDATE agents SET ended_at = ?, end_summary = ? WHERE id = ? AND ended_at IS NULL`,
			time.Now().UTC().Format(time.RFC3339), summary, id)
		return err
	})
}

// GetAgent returns a single agent by id.
func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(`SELECT id, parent, platform, workspace, model, created_at, ended_at, end_summary FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ferrors.New(ferrors.NotFound, "agent %q not found", id)
	}
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "scan agent")
	}
	return a, nil
}

// ListAgents lists agents newest-first, optionally filtered by workspace
// and whether to include already-ended agents.
func (s *Store) ListAgents(workspace string, limit int, includeEnded bool) ([]*Agent, error) {
	query := `SELECT id, parent, platform, workspace, model, created_at, ended_at, end_summary FROM agents WHERE 1=1`
	var args []any
	if workspace != "" {
		query += ` AND workspace = ?`
		args = append(args, workspace)
	}
	if !includeEnded {
		query += ` AND ended_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "list agents")
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.Internal, err, "scan agent row")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*Agent, error) { return scanAgentRows(row) }

func scanAgentRows(row scanner) (*Agent, error) {
	var a Agent
	var createdAt string
	var endedAt, parent, model sql.NullString
	var endSummary sql.NullString
	if err := row.Scan(&a.ID, &parent, &a.Platform, &a.Workspace, &model, &createdAt, &endedAt, &endSummary); err != nil {
		return nil, err
	}
	a.Parent = parent.String
	a.Model = model.String
	a.EndSummary = endSummary.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339, endedAt.String)
		a.EndedAt = &t
	}
	return &a, nil
}
