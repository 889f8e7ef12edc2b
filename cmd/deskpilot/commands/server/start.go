// Package server provides the Cobra command implementation for the deskpilot
// server lifecycle. It wires CLI flags to the server runtime.
package server

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/logging"
	serversvc "github.com/deskpilot/deskpilot/pkg/server"
	"github.com/deskpilot/deskpilot/pkg/server/app"
	"github.com/deskpilot/deskpilot/pkg/server/deps"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

// newStartServerCommand creates and returns the 'deskpilot server start' command.
//
// The server hosts the queue workers that triage tickets and the ops HTTP
// listener (health, readiness, queue stats, job lookup and the event stream).
// It runs until interrupted (SIGINT/SIGTERM), then drains: HTTP close, workers
// stop, settings backend released. SIGHUP reloads the runtime settings.
//
// Example usage:
//
//	deskpilot server start
//	deskpilot server start --server.addr 0.0.0.0 --server.port 8080
//	deskpilot server start --broker.driver redis --broker.redis.addr redis:6379
func newStartServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the deskpilot server",
		Long: `Start the deskpilot server process.

The server hosts in a single runtime:
  - Queue workers running the triage pipeline for every configured queue
  - Ops HTTP endpoints (/healthz, /readyz, /api/v1/health, /api/v1/queues, /api/v1/events)

Runtime settings are reloaded when the settings file changes or on SIGHUP;
queue concurrency and retry policy follow without a restart.`,
		Annotations: map[string]string{format.OperationAnnotation: "start server"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bind.Config(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := logging.Component("server")

			d, err := deps.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}

			serverApp, err := app.New(ctx, cfg.Server, d)
			if err != nil {
				_ = d.Scheduler.Shutdown(context.Background())
				_ = d.Close()
				return serversvc.WrapAppInit(err)
			}

			signals := serversvc.NewSignalHandler(d.Settings.Reload)
			defer signals.Stop()
			go signals.Run(ctx)

			if cfg.Settings.Backend == "file" && cfg.Settings.Watch {
				startSettingsWatcher(ctx, cfg.Settings, d.Settings)
			}

			if err := serverApp.Run(ctx); err != nil {
				return serversvc.WrapRuntime(err)
			}
			return nil
		},
	}

	config.BindServerFlags(cmd.Flags())

	return cmd
}

// startSettingsWatcher reloads the store when the settings file changes. A
// watcher that cannot start is logged; the server runs without it.
func startSettingsWatcher(ctx context.Context, cfg config.SettingsConfig, store *settings.Store) {
	logger := logging.Component("settings")
	w, err := settings.NewFileWatcher(cfg.Path, store, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Settings watcher unavailable, use SIGHUP to reload")
		return
	}
	go func() {
		if err := w.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Settings watcher stopped, use SIGHUP to reload")
		}
	}()
}
