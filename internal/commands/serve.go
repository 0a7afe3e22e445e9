package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fleetd/internal/coordinator"
	"fleetd/internal/httpapi"
)

func newServeCmd(persistRoot *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: HTTP surface, tool-RPC transport, and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*persistRoot)
		},
	}
}

func runServe(persistRoot string) error {
	cfg, err := loadConfig(persistRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	c, err := coordinator.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			logger.Warn("coordinator close failed", zap.Error(closeErr))
		}
	}()

	logger.Info("fleetd starting",
		zap.String("persist_root", cfg.PersistRoot),
		zap.Int("port", cfg.DaemonPort),
		zap.String("host", cfg.DaemonHost))

	ctx, stop := setupSignalHandler()
	defer stop()

	c.StartWorkers(ctx)

	engine := httpapi.NewRouter(c)
	addr := fmt.Sprintf("%s:%d", cfg.DaemonHost, cfg.DaemonPort)
	if err := httpapi.Serve(ctx, addr, engine, logger); err != nil {
		return fmt.Errorf("http serve: %w", err)
	}

	logger.Info("fleetd stopped")
	return nil
}
