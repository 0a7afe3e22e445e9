package tasks

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "tasks.json"), zap.NewNop())
}

func TestScopeOverlapBoundaries(t *testing.T) {
	assert.True(t, dirPrefixOverlap("src", "src/"))
	assert.False(t, dirPrefixOverlap("src", "srcs"))
	assert.True(t, ScopesOverlap(Scope{Dirs: []string{"src"}}, Scope{Dirs: []string{"src/ui"}}))
	assert.False(t, ScopesOverlap(Scope{Tags: []string{"ui"}}, Scope{Tags: []string{"copy"}}))
}

// TestScopeConflict mirrors scenario S1.
func TestScopeConflict(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Create(&Task{Title: "A", Scope: Scope{Tags: []string{"ui"}}})
	require.NoError(t, err)
	_, err = s.Create(&Task{Title: "B", Scope: Scope{Tags: []string{"ui", "copy"}}})
	require.NoError(t, err)

	claimedA, err := s.Claim(a.ID, "instance-x")
	require.NoError(t, err)
	require.NotNil(t, claimedA)

	available := s.Available()
	for _, avail := range available {
		assert.NotEqual(t, "B", stripTemplatePrefix(avail.Title))
	}

	bID := findTaskByTitle(t, s, "B")
	claimedB, err := s.Claim(bID, "instance-y")
	require.NoError(t, err)
	assert.Nil(t, claimedB)
}

// TestDependencyGate mirrors scenario S2.
func TestDependencyGate(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Create(&Task{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(&Task{Title: "B", Dependencies: []string{a.ID}})
	require.NoError(t, err)

	available := s.Available()
	assertMissing(t, available, b.ID)

	claimed, err := s.Claim(a.ID, "instance-x")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	_, err = s.Complete(a.ID, "instance-x", "done", nil)
	require.NoError(t, err)

	available = s.Available()
	assertPresent(t, available, b.ID)
}

// TestAutoReleaseOnDisconnect mirrors scenario S3.
func TestAutoReleaseOnDisconnect(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Create(&Task{Title: "A"})
	require.NoError(t, err)

	_, err = s.Claim(a.ID, "instance-x")
	require.NoError(t, err)
	_, err = s.Start(a.ID, "instance-x")
	require.NoError(t, err)
	_, err = s.AddNote(a.ID, "instance-x", "halfway")
	require.NoError(t, err)

	released, err := s.ReleaseAllForInstance("instance-x", "instance deregistered")
	require.NoError(t, err)
	require.Len(t, released, 1)

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.ClaimedBy)
	require.Len(t, got.Notes, 2)
	assert.Equal(t, "halfway", got.Notes[0].Text)
}

func TestDeleteRefusesActiveTask(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Create(&Task{Title: "A"})
	require.NoError(t, err)
	_, err = s.Claim(a.ID, "instance-x")
	require.NoError(t, err)

	err = s.Delete(a.ID)
	require.Error(t, err)
}

func TestCreateThenDeleteRestoresSize(t *testing.T) {
	s := newTestStore(t)
	before := len(s.List(""))
	a, err := s.Create(&Task{Title: "A"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(a.ID))
	assert.Len(t, s.List(""), before)
}

func TestAvailabilityPriorityOrdering(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Create(&Task{Title: "low", Priority: PriorityLow})
	_, _ = s.Create(&Task{Title: "critical", Priority: PriorityCritical})
	_, _ = s.Create(&Task{Title: "high", Priority: PriorityHigh})

	available := s.Available()
	require.Len(t, available, 3)
	assert.Equal(t, "critical", available[0].Title)
	assert.Equal(t, "high", available[1].Title)
	assert.Equal(t, "low", available[2].Title)
}

func TestCreateFromTemplateUnknownNameFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateFromTemplate("nonexistent", "x", "", "", "", nil)
	require.Error(t, err)
}

func TestCreateFromTemplateAppliesDefaults(t *testing.T) {
	s := newTestStore(t)
	task, err := s.CreateFromTemplate("bug", "login fails", "", "proj", "webhook", []string{"urgent"})
	require.NoError(t, err)
	assert.Equal(t, "[Bug] login fails", task.Title)
	assert.ElementsMatch(t, []string{"bug", "urgent"}, task.Scope.Tags)
	assert.Equal(t, PriorityHigh, task.Priority)
}

func stripTemplatePrefix(title string) string { return title }

func findTaskByTitle(t *testing.T, s *Store, title string) string {
	t.Helper()
	for _, task := range s.List("") {
		if task.Title == title {
			return task.ID
		}
	}
	t.Fatalf("task with title %q not found", title)
	return ""
}

func assertMissing(t *testing.T, list []*Task, id string) {
	t.Helper()
	for _, task := range list {
		assert.NotEqual(t, id, task.ID)
	}
}

func assertPresent(t *testing.T, list []*Task, id string) {
	t.Helper()
	for _, task := range list {
		if task.ID == id {
			return
		}
	}
	t.Fatalf("expected task %q to be present", id)
}
