package kg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetd/internal/ferrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "knowledge.json"), zap.NewNop())
}

func TestAddEntityIdempotentUnion(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddEntity("alpha", "project", []string{"obs1"})
	require.NoError(t, err)

	e, err := s.AddEntity("alpha", "project", []string{"obs1", "obs2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"obs1", "obs2"}, e.Observations)
}

func TestAddRelationRefusesMissingEndpoint(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddEntity("alpha", "t", nil)
	require.NoError(t, err)

	_, err = s.AddRelation("alpha", "uses", "ghost")
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.InvalidArgument, fe.Kind)
}

func TestDeleteEntityCascadesRelations(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.AddEntity("a", "t", nil)
	_, _ = s.AddEntity("b", "t", nil)
	_, err := s.AddRelation("a", "uses", "b")
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntity("b"))

	g := s.Snapshot()
	assert.Empty(t, g.Relations)
	_, exists := g.Entities["b"]
	assert.False(t, exists)
}

// TestMergeSemantics mirrors scenario S5: merging beta into alpha unions
// observations, drops the self-loop, and removes all reference to beta.
func TestMergeSemantics(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.AddEntity("alpha", "t", []string{"a1", "a2"})
	_, _ = s.AddEntity("beta", "t", []string{"a2", "b1"})
	_, _ = s.AddEntity("gamma", "t", nil)
	_, err := s.AddRelation("alpha", "uses", "gamma")
	require.NoError(t, err)
	_, err = s.AddRelation("beta", "uses", "gamma")
	require.NoError(t, err)
	_, err = s.AddRelation("alpha", "owns", "beta")
	require.NoError(t, err)

	require.NoError(t, s.MergeEntities("beta", "alpha"))

	g := s.Snapshot()
	_, betaExists := g.Entities["beta"]
	assert.False(t, betaExists)

	alpha := g.Entities["alpha"]
	assert.ElementsMatch(t, []string{"a1", "a2", "b1"}, alpha.Observations)

	usesCount := 0
	for _, r := range g.Relations {
		assert.NotEqual(t, "beta", r.From)
		assert.NotEqual(t, "beta", r.To)
		if r.From == "alpha" && r.To == "alpha" {
			t.Fatalf("self-loop should have been removed: %+v", r)
		}
		if r.From == "alpha" && r.RelationType == "uses" && r.To == "gamma" {
			usesCount++
		}
	}
	assert.Equal(t, 1, usesCount)
}

func TestDeleteObservationBySubstringCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.AddEntity("alpha", "t", []string{"Found a Bug", "all good"})

	removed, err := s.DeleteObservationBySubstring("alpha", "bug")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	g := s.Snapshot()
	assert.Equal(t, []string{"all good"}, g.Entities["alpha"].Observations)
}

func TestSaveLoadRoundTripIsIdentityModuloLastSync(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddEntity("alpha", "t", []string{"obs"})
	require.NoError(t, err)

	first := s.Snapshot()
	second := s.Snapshot()
	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Relations, second.Relations)
}
