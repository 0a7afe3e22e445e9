package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndHeartbeat(t *testing.T) {
	r := New(time.Hour, nil)
	inst := r.Register("ws", "linux")
	require.Len(t, inst.ID, 8)

	updated, err := r.Heartbeat(inst.ID, "busy")
	require.NoError(t, err)
	assert.Equal(t, "busy", updated.Status)
	assert.Equal(t, 1, updated.HeartbeatCount)
}

func TestStatusUpdateDoesNotResetExpiryClock(t *testing.T) {
	r := New(50*time.Millisecond, nil)
	inst := r.Register("ws", "linux")
	time.Sleep(30 * time.Millisecond)

	_, err := r.UpdateStatus(inst.ID, "active", "editing", []string{"a.go"})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	_, err = r.Get(inst.ID)
	require.Error(t, err, "instance should have expired since status-update did not bump heartbeat")
}

func TestExpiryTriggersOnExpireCallback(t *testing.T) {
	expired := make(chan string, 1)
	r := New(20*time.Millisecond, func(id string) { expired <- id })
	inst := r.Register("ws", "linux")

	time.Sleep(40 * time.Millisecond)
	r.List() // any operation purges

	select {
	case id := <-expired:
		assert.Equal(t, inst.ID, id)
	case <-time.After(time.Second):
		t.Fatal("expected onExpire callback")
	}
}

func TestCheckConflicts(t *testing.T) {
	r := New(time.Hour, nil)
	x := r.Register("ws", "linux")
	y := r.Register("ws", "linux")
	_, err := r.UpdateStatus(y.ID, "active", "editing", []string{"shared.go"})
	require.NoError(t, err)

	conflicts := r.CheckConflicts(x.ID, []string{"shared.go", "unique.go"})
	require.Len(t, conflicts, 1)
	assert.Equal(t, y.ID, conflicts[0].OtherID)
	assert.Equal(t, "shared.go", conflicts[0].File)
}
