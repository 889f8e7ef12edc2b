package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deskpilot/deskpilot/pkg/event"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

// QueueManager runs every queue named in the settings over one scheduler
// with the same handler. Settings changes resize and retune queues live;
// queues added to the settings are started, queues removed keep running
// with their last configuration until restart.
type QueueManager struct {
	scheduler *queue.Scheduler
	store     *settings.Store
	handler   queue.Handler
	monitor   *event.Monitor
	logger    zerolog.Logger

	mu        sync.Mutex
	started   bool
	watcherID settings.WatcherID
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewQueueManager creates a manager. monitor may be nil.
func NewQueueManager(scheduler *queue.Scheduler, store *settings.Store, handler queue.Handler, monitor *event.Monitor, logger zerolog.Logger) *QueueManager {
	return &QueueManager{
		scheduler: scheduler,
		store:     store,
		handler:   handler,
		monitor:   monitor,
		logger:    logger.With().Str("component", "jobs").Logger(),
	}
}

// Start implements Manager.
func (m *QueueManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("job manager already started")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if m.monitor != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.monitor.Run(runCtx)
		}()
	}

	if err := m.apply(m.store.Snapshot()); err != nil {
		cancel()
		m.wg.Wait()
		return err
	}
	m.watcherID = m.store.AddWatcher(m.apply)
	m.cancel = cancel
	m.started = true

	m.logger.Info().
		Strs("queues", m.scheduler.Queues()).
		Msg("Job manager started")
	return nil
}

// Stop implements Manager. The scheduler is shut down and its broker closed.
func (m *QueueManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.store.RemoveWatcher(m.watcherID)
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	err := m.scheduler.Shutdown(ctx)
	cancel()
	m.wg.Wait()

	if err != nil {
		m.logger.Warn().Err(err).Msg("Job manager shutdown timed out")
		return err
	}
	m.logger.Info().Msg("Job manager stopped gracefully")
	return nil
}

// apply brings the scheduler in line with snap. It is also the settings
// watcher, so it must not call back into the store.
func (m *QueueManager) apply(snap settings.Snapshot) error {
	registered := make(map[string]struct{})
	for _, name := range m.scheduler.Queues() {
		registered[name] = struct{}{}
	}

	var errs []error
	for _, name := range QueueNames(snap.Settings) {
		concurrency, opts := queue.FromSettings(snap.Settings.Queue(name))
		if _, ok := registered[name]; ok {
			if err := m.scheduler.Reconfigure(name, concurrency, opts); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure queue %s: %w", name, err))
			}
			continue
		}
		if err := m.scheduler.CreateQueue(name, concurrency, opts); err != nil {
			errs = append(errs, fmt.Errorf("create queue %s: %w", name, err))
			continue
		}
		if err := m.scheduler.Process(name, m.handler); err != nil {
			errs = append(errs, fmt.Errorf("start queue %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// QueueNames lists the queues s configures: the default ticket queue first,
// then the others sorted.
func QueueNames(s settings.Settings) []string {
	names := []string{settings.DefaultQueue}
	for name := range s.Queues {
		if name != settings.DefaultQueue {
			names = append(names, name)
		}
	}
	sort.Strings(names[1:])
	return names
}
