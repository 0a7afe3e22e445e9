package strat

// EnrichedAgent pairs an agent with a bounded slice of its highest-signal
// notes for bootstrap composition.
type EnrichedAgent struct {
	Agent *Agent  `json:"agent"`
	Notes []*Note `json:"notes"`
}

// Stats aggregates simple counts for the bootstrap response.
type Stats struct {
	TotalAgents   int `json:"total_agents"`
	ActiveAgents  int `json:"active_agents"`
	TotalNotes    int `json:"total_notes"`
	TotalHandoffs int `json:"total_handoffs"`
}

// BootstrapContext is the composite record described in §4.3.
type BootstrapContext struct {
	ClaimedHandoffs []*Handoff      `json:"claimed_handoffs"`
	RecentAgents    []EnrichedAgent `json:"recent_agents"`
	Stats           Stats           `json:"stats"`
}

var bootstrapNoteCategories = map[NoteCategory]bool{
	CategoryLearned: true, CategoryDecision: true, CategoryWarning: true, CategoryBlocker: true,
}

// Bootstrap composes (a) the claim-all result for the workspace, (b) the
// last five agents for the workspace each enriched with up to ten notes
// from the bootstrap category subset, and (c) aggregate stats. claim
// controls whether unclaimed handoffs are actually claimed (bootstrap)
// or only previewed (preview variant).
func (s *Store) Bootstrap(workspace, agentID string, claim bool) (*BootstrapContext, error) {
	var claimedHandoffs []*Handoff
	var err error
	if claim {
		claimedHandoffs, err = s.ClaimAll(workspace, agentID)
	} else {
		claimedHandoffs, err = s.ListUnclaimedForScope(workspace)
	}
	if err != nil {
		return nil, err
	}

	agents, err := s.ListAgents(workspace, 5, true)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedAgent, 0, len(agents))
	for _, a := range agents {
		notes, err := s.ListNotes(a.ID, "", "")
		if err != nil {
			return nil, err
		}
		filtered := make([]*Note, 0, 10)
		for _, n := range notes {
			if !bootstrapNoteCategories[n.Category] {
				continue
			}
			filtered = append(filtered, n)
			if len(filtered) == 10 {
				break
			}
		}
		enriched = append(enriched, EnrichedAgent{Agent: a, Notes: filtered})
	}

	stats, err := s.computeStats(workspace)
	if err != nil {
		return nil, err
	}

	return &BootstrapContext{ClaimedHandoffs: claimedHandoffs, RecentAgents: enriched, Stats: stats}, nil
}

func (s *Store) computeStats(workspace string) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM agents WHERE workspace = ?`, workspace).Scan(&stats.TotalAgents); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM agents WHERE workspace = ? AND ended_at IS NULL`, workspace).Scan(&stats.ActiveAgents); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notes WHERE agent_id IN (SELECT id FROM agents WHERE workspace = ?)`, workspace).Scan(&stats.TotalNotes); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM handoffs WHERE to_scope = ? OR to_scope = '*'`, workspace).Scan(&stats.TotalHandoffs); err != nil {
		return stats, err
	}
	return stats, nil
}
