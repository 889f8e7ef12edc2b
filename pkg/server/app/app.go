// Package app wires the server runtime: the ops HTTP server, the queue
// workers and their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/event"
	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
	"github.com/deskpilot/deskpilot/pkg/server/deps"
	"github.com/deskpilot/deskpilot/pkg/server/httpx"
	"github.com/deskpilot/deskpilot/pkg/server/jobs"
	"github.com/deskpilot/deskpilot/pkg/version"
)

// App orchestrates the server runtime components:
// - HTTP server (ops API)
// - Queue workers and event monitor
// - Lifecycle management
type App struct {
	HTTP   *http.Server
	Jobs   jobs.Manager
	Config config.ServerConfig
	Deps   *deps.Deps
}

// New creates and configures a new server application.
func New(ctx context.Context, cfg config.ServerConfig, d *deps.Deps) (*App, error) {
	if d == nil {
		return nil, errors.New("app: deps are required")
	}
	d.Logger.Info().Msg("Initializing server application")

	monitor := event.NewMonitor(d.Scheduler, d.Bus, event.WithLogger(d.Logger))
	handler := pipeline.JobHandler(d.Pipeline, pipeline.WithStageRetry())

	a := &App{
		Jobs:   jobs.NewQueueManager(d.Scheduler, d.Settings, handler, monitor, d.Logger),
		Config: cfg,
		Deps:   d,
	}

	streamsDone := make(chan struct{})
	apiDeps := &api.Deps{
		Queues: d.Scheduler,
		Health: a,
		Ready:  d.Ready,
		Done:   streamsDone,
		Config: api.DefaultConfig(),
	}
	if cfg.EventsEnabled {
		apiDeps.Events = d.Bus
	} else {
		d.Logger.Warn().Msg("Event stream disabled")
	}

	router := httpx.NewRouter(cfg, apiDeps)
	a.HTTP = &http.Server{
		Addr:         net.JoinHostPort(cfg.Addr, strconv.Itoa(cfg.Port)),
		Handler:      httpx.Chain(cfg, router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	// Shutdown does not track hijacked connections.
	a.HTTP.RegisterOnShutdown(sync.OnceFunc(func() { close(streamsDone) }))
	return a, nil
}

// HealthStatus reports the scheduler's health. An unhealthy engine lowers a
// healthy status to degraded.
func (a *App) HealthStatus(ctx context.Context) api.HealthReport {
	snap := a.Deps.Settings.Snapshot()
	report := api.HealthReport{
		Version:   version.Get().Version,
		Uptime:    version.Uptime().Round(time.Second).String(),
		Engines:   make(map[string]api.EngineHealth),
		Scheduler: a.Deps.Scheduler.Health(ctx),
		Settings: api.SettingsInfo{
			Revision:      snap.Revision,
			SchemaVersion: snap.Settings.SchemaVersion,
		},
	}
	report.Status = report.Scheduler.Status

	for _, e := range a.Deps.Engines.Engines() {
		eh := api.EngineHealth{Status: queue.StatusHealthy}
		if err := e.Health(ctx); err != nil {
			eh = api.EngineHealth{Status: queue.StatusUnhealthy, Error: err.Error()}
			if report.Status == queue.StatusHealthy {
				report.Status = queue.StatusDegraded
			}
		}
		report.Engines[e.Name()] = eh
	}
	return report
}

// Run starts the server and blocks until ctx is done or the HTTP server
// fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	a.Deps.Logger.Info().
		Str("addr", a.HTTP.Addr).
		Str("broker", a.Deps.Scheduler.Broker().Name()).
		Bool("events", a.Config.EventsEnabled).
		Msg("Starting Deskpilot server")

	ln, err := net.Listen("tcp", a.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.HTTP.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Jobs.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("start jobs: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.HTTP.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	a.Deps.SetReady()
	a.Deps.Logger.Info().Str("addr", ln.Addr().String()).Msg("Server is ready and accepting connections")

	var runErr error
	select {
	case <-ctx.Done():
		a.Deps.Logger.Info().Msg("Shutdown signal received")
	case runErr = <-serverErr:
		a.Deps.Logger.Error().Err(runErr).Msg("Server error")
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown stops intake first, then drains in-flight jobs within the
// configured grace period.
func (a *App) shutdown() error {
	a.Deps.Logger.Info().Msg("Initiating graceful shutdown")

	grace := a.Config.ShutdownTimeout
	if grace <= 0 {
		grace = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	a.Deps.SetNotReady()

	var errs []error
	a.Deps.Logger.Info().Msg("Shutting down HTTP server...")
	if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
		errs = append(errs, err)
	}

	a.Deps.Logger.Info().Msg("Stopping queue workers...")
	if err := a.Jobs.Stop(shutdownCtx); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("Jobs shutdown failed")
		errs = append(errs, err)
	}

	if err := a.Deps.Close(); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("Settings backend close failed")
		errs = append(errs, err)
	}

	a.Deps.Logger.Info().Msg("Server shutdown complete")
	return errors.Join(errs...)
}
