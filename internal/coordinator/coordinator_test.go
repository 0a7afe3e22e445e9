package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetd/internal/config"
)

func TestNewWiresStoresAndGeneratesSecretsOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.PersistRoot = dir
	cfg.GraphFile = filepath.Join(dir, "bridge", "knowledge.json")

	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	require.NotEmpty(t, c.APIKey)
	require.NotEmpty(t, c.WebhookSecret)

	_, err = os.Stat(filepath.Join(dir, "bridge", ".api_key"))
	require.NoError(t, err)

	c2, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c2.Close()
	require.Equal(t, c.APIKey, c2.APIKey)
}

func TestRunHeartbeatCheckIsInert(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.PersistRoot = dir
	cfg.GraphFile = filepath.Join(dir, "bridge", "knowledge.json")

	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.runHeartbeatCheck(nil))
}
