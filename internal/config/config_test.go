package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoDocumentReturnsDefaultsUnderFlagRoot(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.PersistRoot)
	assert.Equal(t, 7777, cfg.DaemonPort)
}

func TestSaveThenLoadRoundTripsRecognizedKeys(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)

	err = Save(cfg, map[string]any{"daemon_port": 9999})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "bridge", "config.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	reloaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, cfg.DaemonPort, reloaded.DaemonPort)
}

func TestSaveRejectsUnrecognizedKey(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)

	err = Save(cfg, map[string]any{"not_a_real_key": true})
	require.Error(t, err)
}

func TestLoadAppliesWatchDirsFromEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("FLEETD_WATCH_DIRS", "/a:/b:/c")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b", "/c"}, cfg.WatchDirs)
}
