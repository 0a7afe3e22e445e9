package strat

import (
	"context"
	"database/sql"
	"time"

	"fleetd/internal/ferrors"
)

// HandoffPriority is coerced to "normal" on unknown values per §3.
type HandoffPriority string

const (
	HandoffLow      HandoffPriority = "low"
	HandoffNormal   HandoffPriority = "normal"
	HandoffHigh     HandoffPriority = "high"
	HandoffCritical HandoffPriority = "critical"
)

func coercePriority(p string) HandoffPriority {
	switch HandoffPriority(p) {
	case HandoffLow, HandoffNormal, HandoffHigh, HandoffCritical:
		return HandoffPriority(p)
	default:
		return HandoffNormal
	}
}

// Handoff is the record described in §3.
type Handoff struct {
	ID        int64           `json:"id"`
	FromAgent string          `json:"from_agent"`
	ToScope   string          `json:"to_scope"`
	Content   string          `json:"content"`
	Priority  HandoffPriority `json:"priority"`
	ClaimedBy *string         `json:"claimed_by"`
	CreatedAt time.Time       `json:"created_at"`
	ClaimedAt *time.Time      `json:"claimed_at"`
}

// CreateHandoff inserts a new unclaimed handoff.
func (s *Store) CreateHandoff(fromAgent, toScope, content, priority string) (*Handoff, error) {
	h := &Handoff{
		FromAgent: fromAgent,
		ToScope:   toScope,
		Content:   content,
		Priority:  coercePriority(priority),
		CreatedAt: time.Now().UTC(),
	}
	err := RetryWithBackoff(context.Background(), func() error {
		res, execErr := s.db.Exec(
			`INSERT INTO handoffs (from_agent, to_scope, content, priority, created_at) VALUES (?, ?, ?, ?, ?)`,
			h.FromAgent, h.ToScope, h.Content, string(h.Priority), h.CreatedAt.Format(time.RFC3339),
		)
		if execErr != nil {
			return execErr
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return idErr
		}
		h.ID = id
		return nil
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "insert handoff")
	}
	return h, nil
}

// ListUnclaimedForScope returns every handoff addressed to scope, "*", or
// exactly the scope (treated as a specific agent id), still unclaimed.
func (s *Store) ListUnclaimedForScope(scope string) ([]*Handoff, error) {
	rows, err := s.db.Query(
		`SELECT id, from_agent, to_scope, content, priority, claimed_by, created_at, claimed_at
		 FROM handoffs WHERE claimed_by IS NULL AND (to_scope = ? OR to_scope = '*') ORDER BY created_at ASC`,
		scope,
	)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "list unclaimed handoffs")
	}
	defer rows.Close()

	var out []*Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.Internal, err, "scan handoff")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ClaimHandoff is a single-record atomic compare-and-set: it succeeds
// only while claimed_by is still null. Returns (nil, nil) — not an error
// — on a lost race, matching scenario S4.
func (s *Store) ClaimHandoff(id int64, claimant string) (*Handoff, error) {
	now := time.Now().UTC()
	var result sql.Result
	err := RetryWithBackoff(context.Background(), func() error {
		var execErr error
		result, execErr = s.db.Exec(
			`UPDATE handoffs SET claimed_by = ?, claimed_at = ? WHERE id = ? AND claimed_by IS NULL`,
			claimant, now.Format(time.RFC3339), id,
		)
		return execErr
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "claim handoff")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "check claim result")
	}
	if n == 0 {
		return nil, nil
	}

	row := s.db.QueryRow(`SELECT id, from_agent, to_scope, content, priority, claimed_by, created_at, claimed_at FROM handoffs WHERE id = ?`, id)
	h, err := scanHandoff(row)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "reload claimed handoff")
	}
	return h, nil
}

// ClaimAll iterates ListUnclaimedForScope and attempts individual claims;
// races are tolerated, each either wins or is skipped.
func (s *Store) ClaimAll(scope, claimant string) ([]*Handoff, error) {
	candidates, err := s.ListUnclaimedForScope(scope)
	if err != nil {
		return nil, err
	}
	var claimed []*Handoff
	for _, c := range candidates {
		h, err := s.ClaimHandoff(c.ID, claimant)
		if err != nil {
			return claimed, err
		}
		if h != nil {
			claimed = append(claimed, h)
		}
	}
	return claimed, nil
}

// HandoffHistory returns every handoff ever addressed to scope, claimed
// or not, newest first.
func (s *Store) HandoffHistory(scope string) ([]*Handoff, error) {
	rows, err := s.db.Query(
		`SELECT id, from_agent, to_scope, content, priority, claimed_by, created_at, claimed_at
		 FROM handoffs WHERE to_scope = ? OR to_scope = '*' ORDER BY created_at DESC`,
		scope,
	)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "handoff history")
	}
	defer rows.Close()

	var out []*Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.Internal, err, "scan handoff")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ReapStaleClaims releases handoffs whose claimant is not in activeIDs
// and whose claim is older than maxAge.
func (s *Store) ReapStaleClaims(activeIDs map[string]bool, maxAge time.Duration) ([]*Handoff, error) {
	rows, err := s.db.Query(`SELECT id, from_agent, to_scope, content, priority, claimed_by, created_at, claimed_at FROM handoffs WHERE claimed_by IS NOT NULL`)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "scan claimed handoffs")
	}
	var stale []*Handoff
	for rows.Next() {
		h, scanErr := scanHandoff(rows)
		if scanErr != nil {
			rows.Close()
			return nil, ferrors.Wrap(ferrors.Internal, scanErr, "scan handoff")
		}
		if h.ClaimedBy == nil || activeIDs[*h.ClaimedBy] {
			continue
		}
		if h.ClaimedAt != nil && time.Since(*h.ClaimedAt) > maxAge {
			stale = append(stale, h)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var released []*Handoff
	for _, h := range stale {
		if err := RetryWithBackoff(context.Background(), func() error {
			_, execErr := s.db.Exec(`UPDATE handoffs SET claimed_by = NULL, claimed_at = NULL WHERE id = ?`, h.ID)
			return execErr
		}); err != nil {
			return released, ferrors.Wrap(ferrors.Internal, err, "release stale claim %d", h.ID)
		}
		released = append(released, h)
	}
	return released, nil
}

func scanHandoff(row scanner) (*Handoff, error) {
	var h Handoff
	var createdAt string
	var claimedBy, claimedAt sql.NullString
	if err := row.Scan(&h.ID, &h.FromAgent, &h.ToScope, &h.Content, &h.Priority, &claimedBy, &createdAt, &claimedAt); err != nil {
		return nil, err
	}
	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if claimedBy.Valid {
		h.ClaimedBy = &claimedBy.String
	}
	if claimedAt.Valid {
		t, _ := time.Parse(time.RFC3339, claimedAt.String)
		h.ClaimedAt = &t
	}
	return &h, nil
}
