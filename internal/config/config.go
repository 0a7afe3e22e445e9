// Package config loads and persists the daemon's configuration document.
// Precedence, highest first: CLI flags > environment variables > the JSON
// config document under the persist root > built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// recognizedKeys is the closed set of config document keys; writes that
// introduce any other key are rejected.
var recognizedKeys = map[string]bool{
	"persist_root":               true,
	"daemon_port":                true,
	"daemon_host":                true,
	"dashboard_file":             true,
	"graph_file":                 true,
	"render_url":                 true,
	"mcp_memory_file":            true,
	"max_recent_sessions":        true,
	"heartbeat_interval_hours":   true,
	"watcher_interval_seconds":   true,
	"queue_interval_seconds":     true,
	"post_interval_seconds":      true,
}

// Config is the resolved, typed view of the document described in §6.
type Config struct {
	PersistRoot            string `json:"persist_root"`
	DaemonPort             int    `json:"daemon_port"`
	DaemonHost             string `json:"daemon_host"`
	DashboardFile          string `json:"dashboard_file"`
	GraphFile              string `json:"graph_file"`
	RenderURL              string `json:"render_url"`
	MCPMemoryFile          string `json:"mcp_memory_file"`
	MaxRecentSessions      int    `json:"max_recent_sessions"`
	HeartbeatIntervalHours int    `json:"heartbeat_interval_hours"`
	WatcherIntervalSeconds int    `json:"watcher_interval_seconds"`
	QueueIntervalSeconds   int    `json:"queue_interval_seconds"`
	PostIntervalSeconds    int    `json:"post_interval_seconds"`

	// WatchDirs is not part of the persisted document; it is assembled from
	// FLEETD_WATCH_DIRS and never rejected for being "unrecognized".
	WatchDirs []string `json:"-"`
}

// Default returns the built-in defaults.
func Default() Config {
	home, _ := os.UserHomeDir()
	root := filepath.Join(home, "fleetd-persist")
	return Config{
		PersistRoot:            root,
		DaemonPort:             7777,
		DaemonHost:             "0.0.0.0",
		DashboardFile:          filepath.Join(root, "dashboard.html"),
		GraphFile:              filepath.Join(root, "bridge", "knowledge.json"),
		RenderURL:              "http://127.0.0.1:8188",
		MCPMemoryFile:          filepath.Join(root, "memory", "RECENT.md"),
		MaxRecentSessions:      5,
		HeartbeatIntervalHours: 6,
		WatcherIntervalSeconds: 30,
		QueueIntervalSeconds:   10,
		PostIntervalSeconds:    60,
	}
}

// docPath is where the JSON config document lives under a persist root.
func docPath(persistRoot string) string {
	return filepath.Join(persistRoot, "bridge", "config.json")
}

// Load resolves a Config from defaults, then the on-disk document (if the
// persist root is already known), then environment overrides. It never
// errors on a missing document; it errors only on a malformed one.
func Load(flagPersistRoot string) (Config, error) {
	_ = godotenv.Load() // optional .env overlay; absence is not an error

	cfg := Default()

	root := flagPersistRoot
	if root == "" {
		root = os.Getenv("FLEETD_PERSIST_ROOT")
	}
	if root != "" {
		cfg.PersistRoot = root
	}

	if raw, err := os.ReadFile(docPath(cfg.PersistRoot)); err == nil {
		var doc map[string]any
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr != nil {
			return cfg, fmt.Errorf("parse config document: %w", jsonErr)
		}
		applyDoc(&cfg, doc)
	}

	if root != "" {
		cfg.PersistRoot = root
	}
	if v := os.Getenv("FLEETD_WATCH_DIRS"); v != "" {
		cfg.WatchDirs = splitWatchDirs(v)
	}

	return cfg, nil
}

func splitWatchDirs(v string) []string {
	sep := ":"
	if strings.Contains(v, ";") {
		sep = ";"
	}
	var out []string
	for _, part := range strings.Split(v, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func applyDoc(cfg *Config, doc map[string]any) {
	if v, ok := doc["persist_root"].(string); ok {
		cfg.PersistRoot = v
	}
	if v, ok := doc["daemon_port"]; ok {
		cfg.DaemonPort = asInt(v, cfg.DaemonPort)
	}
	if v, ok := doc["daemon_host"].(string); ok {
		cfg.DaemonHost = v
	}
	if v, ok := doc["dashboard_file"].(string); ok {
		cfg.DashboardFile = v
	}
	if v, ok := doc["graph_file"].(string); ok {
		cfg.GraphFile = v
	}
	if v, ok := doc["render_url"].(string); ok {
		cfg.RenderURL = v
	}
	if v, ok := doc["mcp_memory_file"].(string); ok {
		cfg.MCPMemoryFile = v
	}
	if v, ok := doc["max_recent_sessions"]; ok {
		cfg.MaxRecentSessions = asInt(v, cfg.MaxRecentSessions)
	}
	if v, ok := doc["heartbeat_interval_hours"]; ok {
		cfg.HeartbeatIntervalHours = asInt(v, cfg.HeartbeatIntervalHours)
	}
	if v, ok := doc["watcher_interval_seconds"]; ok {
		cfg.WatcherIntervalSeconds = asInt(v, cfg.WatcherIntervalSeconds)
	}
	if v, ok := doc["queue_interval_seconds"]; ok {
		cfg.QueueIntervalSeconds = asInt(v, cfg.QueueIntervalSeconds)
	}
	if v, ok := doc["post_interval_seconds"]; ok {
		cfg.PostIntervalSeconds = asInt(v, cfg.PostIntervalSeconds)
	}
}

func asInt(v any, fallback int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return fallback
}

// Save validates keys against the recognized set and writes the document
// atomically to docPath(cfg.PersistRoot).
func Save(cfg Config, raw map[string]any) error {
	for k := range raw {
		if !recognizedKeys[k] {
			return fmt.Errorf("unrecognized config key %q", k)
		}
	}
	if err := os.MkdirAll(filepath.Dir(docPath(cfg.PersistRoot)), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := docPath(cfg.PersistRoot) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, docPath(cfg.PersistRoot))
}
