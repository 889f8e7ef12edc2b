// Package deps builds the components a deskpilot process runs on from the
// bootstrap configuration: the settings store, the job broker and scheduler,
// the reference engines and the triage pipeline.
//
// The server and the CLI share these builders so both see the same wiring.
// Tests construct a Deps by hand with New.
package deps

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/engines"
	"github.com/deskpilot/deskpilot/pkg/event"
	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

// brokerPingTimeout bounds the connectivity check done at startup.
const brokerPingTimeout = 5 * time.Second

// Deps holds all dependencies required by server components.
type Deps struct {
	// Settings is the hot-reloadable runtime configuration.
	Settings *settings.Store

	// Scheduler runs the ticket queues over the configured broker.
	Scheduler *queue.Scheduler

	// Engines are the reference triage collaborators.
	Engines *engines.Set

	// Pipeline runs a ticket through the engines and the gate.
	Pipeline *pipeline.Orchestrator

	// Bus fans scheduler events out to subscribers such as websocket clients.
	Bus *event.Bus

	// Logger is the structured logger used throughout the server.
	Logger zerolog.Logger

	// Ready is set once the HTTP server and queue workers run. The /readyz
	// endpoint reports it.
	Ready *atomic.Bool

	closers []func() error
}

// New assembles Deps from ready-made parts. store, scheduler and set are
// required.
func New(store *settings.Store, scheduler *queue.Scheduler, set *engines.Set, logger zerolog.Logger) (*Deps, error) {
	if store == nil || scheduler == nil || set == nil {
		return nil, errors.New("deps: settings store, scheduler and engines are required")
	}
	orch, err := pipeline.New(set.Collaborators(), store, pipeline.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ready := &atomic.Bool{}
	return &Deps{
		Settings:  store,
		Scheduler: scheduler,
		Engines:   set,
		Pipeline:  orch,
		Bus:       event.New(),
		Logger:    logger,
		Ready:     ready,
	}, nil
}

// Build opens every component cfg describes. On error everything opened so
// far is closed again. The returned error carries a server error code.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Deps, error) {
	store, closeStore, err := OpenSettings(ctx, cfg.Settings, logger)
	if err != nil {
		return nil, err
	}

	set, err := OpenEngines(cfg.Knowledge)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	broker, err := OpenBroker(ctx, cfg.Broker)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	scheduler := queue.NewScheduler(broker, queue.WithLogger(logger))
	d, err := New(store, scheduler, set, logger)
	if err != nil {
		_ = broker.Close()
		_ = closeStore()
		return nil, server.WrapAppInit(err)
	}
	d.closers = append(d.closers, closeStore)
	return d, nil
}

// OpenSettings creates the settings store for the configured backend and
// loads the persisted state. The returned func releases the backend.
func OpenSettings(ctx context.Context, cfg config.SettingsConfig, logger zerolog.Logger) (*settings.Store, func() error, error) {
	var (
		p       settings.Persister
		closeFn = func() error { return nil }
	)
	switch cfg.Backend {
	case "", "memory":
	case "file":
		p = settings.NewFilePersister(cfg.Path)
	case "sqlite":
		sp, err := settings.OpenSQLitePersister(ctx, cfg.Path)
		if err != nil {
			return nil, nil, server.WrapSettingsInit(fmt.Errorf("open settings database: %w", err))
		}
		p = sp
		closeFn = sp.Close
	default:
		return nil, nil, server.WrapInvalidConfig(fmt.Errorf("unknown settings backend %q", cfg.Backend))
	}

	store := settings.NewStore(p, settings.WithLogger(logger))
	if err := store.Load(ctx); err != nil {
		_ = closeFn()
		return nil, nil, server.WrapSettingsInit(fmt.Errorf("load settings: %w", err))
	}
	return store, closeFn, nil
}

// OpenBroker connects the configured job broker and checks it answers.
func OpenBroker(ctx context.Context, cfg config.BrokerConfig) (queue.Broker, error) {
	var broker queue.Broker
	switch cfg.Driver {
	case "", "memory":
		broker = queue.NewMemoryBroker()
	case "redis":
		broker = queue.NewRedisBroker(queue.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return nil, server.WrapInvalidConfig(fmt.Errorf("unknown broker driver %q", cfg.Driver))
	}

	pingCtx, cancel := context.WithTimeout(ctx, brokerPingTimeout)
	defer cancel()
	if err := broker.Ping(pingCtx); err != nil {
		_ = broker.Close()
		return nil, server.WrapBrokerInit(fmt.Errorf("%s broker unreachable: %w", broker.Name(), err))
	}
	return broker, nil
}

// OpenEngines builds the reference engines. An empty articles path uses the
// built-in knowledge base.
func OpenEngines(cfg config.KnowledgeConfig) (*engines.Set, error) {
	var index *engines.ArticleIndex
	if cfg.ArticlesPath != "" {
		articles, err := engines.LoadArticlesFromFile(cfg.ArticlesPath)
		if err != nil {
			return nil, server.WrapEngineInit(err)
		}
		index = engines.NewArticleIndex(articles)
	}
	set, err := engines.NewSet(index)
	if err != nil {
		return nil, server.WrapEngineInit(err)
	}
	return set, nil
}

// SetReady marks the server as ready to serve traffic.
func (d *Deps) SetReady() {
	d.Ready.Store(true)
}

// SetNotReady marks the server as not ready (e.g., during shutdown).
func (d *Deps) SetNotReady() {
	d.Ready.Store(false)
}

// IsReady returns true if the server is ready to serve traffic.
func (d *Deps) IsReady() bool {
	return d.Ready.Load()
}

// Close releases the settings backend and drops settings watchers. The
// scheduler, which owns the broker, is shut down separately.
func (d *Deps) Close() error {
	d.Settings.Close()
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
