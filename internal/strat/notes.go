package strat

import (
	"context"
	"strings"
	"time"

	"fleetd/internal/ferrors"
)

// NoteCategory is the closed set of allowed note categories.
type NoteCategory string

const (
	CategoryLearned     NoteCategory = "learned"
	CategoryDecision    NoteCategory = "decision"
	CategoryBlocker     NoteCategory = "blocker"
	CategoryWarning     NoteCategory = "warning"
	CategoryContext     NoteCategory = "context"
	CategoryObservation NoteCategory = "observation"
)

var validCategories = map[NoteCategory]bool{
	CategoryLearned: true, CategoryDecision: true, CategoryBlocker: true,
	CategoryWarning: true, CategoryContext: true, CategoryObservation: true,
}

// Note is the immutable record described in §3.
type Note struct {
	ID        int64        `json:"id"`
	AgentID   string       `json:"agent_id"`
	Category  NoteCategory `json:"category"`
	Content   string       `json:"content"`
	Tags      []string     `json:"tags"`
	CreatedAt time.Time    `json:"created_at"`
}

// AddNote validates category and inserts an immutable note row.
func (s *Store) AddNote(agentID string, category NoteCategory, content string, tags []string) (*Note, error) {
	if !validCategories[category] {
		return nil, ferrors.New(ferrors.InvalidArgument, "invalid note category %q", category)
	}
	n := &Note{AgentID: agentID, Category: category, Content: content, Tags: tags, CreatedAt: time.Now().UTC()}

	err := RetryWithBackoff(context.Background(), func() error {
		res, execErr := s.db.Exec(
			`INSERT INTO notes (agent_id, category, content, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
			n.AgentID, string(n.Category), n.Content, strings.Join(tags, ","), n.CreatedAt.Format(time.RFC3339),
		)
		if execErr != nil {
			return execErr
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return idErr
		}
		n.ID = id
		return nil
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "insert note")
	}
	return n, nil
}

// ListNotes filters by agent, category, and tag, any of which may be empty.
func (s *Store) ListNotes(agentID string, category NoteCategory, tag string) ([]*Note, error) {
	query := `SELECT id, agent_id, category, content, tags, created_at FROM notes WHERE 1=1`
	var args []any
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	if tag != "" {
		query += ` AND (',' || tags || ',') LIKE ?`
		args = append(args, "%,"+tag+",%")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "list notes")
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.Internal, err, "scan note")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNote(row scanner) (*Note, error) {
	var n Note
	var createdAt, tagsCSV string
	if err := row.Scan(&n.ID, &n.AgentID, &n.Category, &n.Content, &tagsCSV, &createdAt); err != nil {
		return nil, err
	}
	n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if tagsCSV != "" {
		n.Tags = strings.Split(tagsCSV, ",")
	}
	return &n, nil
}
