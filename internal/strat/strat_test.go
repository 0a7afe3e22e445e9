package strat

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "agents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.db")
	db1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	var count int
	require.NoError(t, db2.QueryRow(`SELECT COUNT(*) FROM goose_db_version WHERE version_id > 0`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestCreateAgentSequentialIDs(t *testing.T) {
	s := newTestDB(t)
	a1, err := s.CreateAgent("", "cli", "ws", "m1")
	require.NoError(t, err)
	a2, err := s.CreateAgent("", "cli", "ws", "m1")
	require.NoError(t, err)
	assert.NotEqual(t, a1.ID, a2.ID)
}

// TestCreateAgentConcurrentSerialization mirrors the boundary behavior:
// two concurrent create_agent calls produce two distinct sequential ids.
func TestCreateAgentConcurrentSerialization(t *testing.T) {
	s := newTestDB(t)
	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			a, err := s.CreateAgent("", "cli", "ws", "m1")
			require.NoError(t, err)
			ids[idx] = a.ID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestAddNoteRejectsUnknownCategory(t *testing.T) {
	s := newTestDB(t)
	agent, err := s.CreateAgent("", "cli", "ws", "m1")
	require.NoError(t, err)

	_, err = s.AddNote(agent.ID, "not-a-category", "x", nil)
	require.Error(t, err)
}

// TestHandoffClaimRace mirrors scenario S4: exactly one of two concurrent
// claims wins.
func TestHandoffClaimRace(t *testing.T) {
	s := newTestDB(t)
	agent, err := s.CreateAgent("", "cli", "ws", "m1")
	require.NoError(t, err)
	h, err := s.CreateHandoff(agent.ID, "w", "hello", "normal")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Handoff, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			claimed, claimErr := s.ClaimHandoff(h.ID, "agent-g"+string(rune('1'+idx)))
			require.NoError(t, claimErr)
			results[idx] = claimed
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r != nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	remaining, err := s.ListUnclaimedForScope("w")
	require.NoError(t, err)
	for _, r := range remaining {
		assert.NotEqual(t, h.ID, r.ID)
	}
}

func TestEndAgentOnlySetOnce(t *testing.T) {
	s := newTestDB(t)
	agent, err := s.CreateAgent("", "cli", "ws", "m1")
	require.NoError(t, err)

	require.NoError(t, s.EndAgent(agent.ID, "done"))
	err = s.EndAgent(agent.ID, "done again")
	require.Error(t, err)
}

func TestBootstrapComposesContext(t *testing.T) {
	s := newTestDB(t)
	agent, err := s.CreateAgent("", "cli", "ws", "m1")
	require.NoError(t, err)
	_, err = s.AddNote(agent.ID, CategoryDecision, "chose X", nil)
	require.NoError(t, err)
	_, err = s.CreateHandoff(agent.ID, "ws", "hand this off", "normal")
	require.NoError(t, err)

	ctx, err := s.Bootstrap("ws", "agent-consumer", true)
	require.NoError(t, err)
	assert.Len(t, ctx.ClaimedHandoffs, 1)
	require.Len(t, ctx.RecentAgents, 1)
	assert.Len(t, ctx.RecentAgents[0].Notes, 1)
	assert.Equal(t, 1, ctx.Stats.TotalAgents)
}
