package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler processes one job. The returned value is JSON-encoded onto
// Job.Result. Returning an error schedules a retry unless it is Permanent or
// the job has no attempts left. Handlers may run more than once for the same
// job and must be safe to re-invoke.
type Handler func(ctx context.Context, job *Job) (any, error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.With().Str("component", "queue").Logger()
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.events = make(chan Event, n)
		}
	}
}

// Scheduler runs named queues over a Broker.
type Scheduler struct {
	broker Broker
	logger zerolog.Logger
	now    func() time.Time

	events  chan Event
	dropped atomic.Int64

	mu     sync.RWMutex
	queues map[string]*queueRuntime
	closed bool

	// ctx is cancelled only when Shutdown runs out of time; in-flight
	// handlers see it. stopping is closed when Shutdown starts and stops
	// dispatch.
	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler over broker.
func NewScheduler(broker Broker, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		broker:   broker,
		logger:   zerolog.Nop(),
		now:      time.Now,
		events:   make(chan Event, DefaultEventBuffer),
		queues:   make(map[string]*queueRuntime),
		ctx:      ctx,
		cancel:   cancel,
		stopping: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broker returns the backing broker.
func (s *Scheduler) Broker() Broker { return s.broker }

// CreateQueue registers a queue. Registering the same name again with the
// same concurrency and options is a no-op; different settings fail with
// *DuplicateQueueError. The queue's stall checker starts immediately.
func (s *Scheduler) CreateQueue(name string, concurrency int, opts QueueOptions) error {
	if name == "" {
		return errors.New("queue name is required")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	opts = opts.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShutdown
	}

	if q, ok := s.queues[name]; ok {
		existing, existingOpts := q.config()
		if existing == concurrency && existingOpts == opts {
			return nil
		}
		return &DuplicateQueueError{Queue: name, Existing: existing, Proposed: concurrency}
	}

	q := &queueRuntime{
		name:        name,
		concurrency: concurrency,
		opts:        opts,
		wake:        make(chan struct{}, 1),
		stallReset:  make(chan struct{}, 1),
	}
	s.queues[name] = q

	s.wg.Add(1)
	go s.stallLoop(q)

	s.logger.Info().
		Str("queue", name).
		Int("concurrency", concurrency).
		Int("attempts", opts.Attempts).
		Dur("backoff", opts.Backoff).
		Msg("Queue registered")
	return nil
}

func (s *Scheduler) lookup(name string) (*queueRuntime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[name]
	if !ok {
		return nil, &QueueNotFoundError{Queue: name}
	}
	return q, nil
}

// Queues returns the registered queue names, sorted.
func (s *Scheduler) Queues() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Process binds handler to the queue and starts its worker pool.
func (s *Scheduler) Process(name string, handler Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	q, err := s.lookup(name)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrShutdown
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handler != nil {
		return ErrProcessorExists
	}
	q.handler = handler
	s.resize(q, q.concurrency)

	s.logger.Info().
		Str("queue", name).
		Int("workers", q.concurrency).
		Msg("Processor started")
	return nil
}

// Reconfigure changes a queue's concurrency and default options at runtime.
// With a processor bound the worker pool grows or shrinks to match; removed
// workers finish their current job first.
func (s *Scheduler) Reconfigure(name string, concurrency int, opts QueueOptions) error {
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	opts = opts.withDefaults()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrShutdown
	}

	q.mu.Lock()
	prevInterval := q.opts.StallInterval
	changed := q.concurrency != concurrency || q.opts != opts
	q.concurrency = concurrency
	q.opts = opts
	if q.handler != nil {
		s.resize(q, concurrency)
	}
	q.mu.Unlock()

	if prevInterval != opts.StallInterval {
		select {
		case q.stallReset <- struct{}{}:
		default:
		}
	}
	if changed {
		s.logger.Info().
			Str("queue", name).
			Int("concurrency", concurrency).
			Int("attempts", opts.Attempts).
			Dur("backoff", opts.Backoff).
			Msg("Queue reconfigured")
	}
	return nil
}

// Add enqueues a job. payload may be json.RawMessage, []byte holding JSON,
// or any value encodable as JSON. Zero option fields take the queue defaults.
func (s *Scheduler) Add(ctx context.Context, name string, payload any, opts JobOptions) (*Job, error) {
	q, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrShutdown
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	_, qopts := q.config()
	now := s.now()
	job := &Job{
		ID:          uuid.NewString(),
		Queue:       name,
		Payload:     raw,
		Priority:    opts.Priority,
		MaxAttempts: qopts.Attempts,
		Backoff:     qopts.Backoff,
		State:       StateWaiting,
		CreatedAt:   now,
		AvailableAt: now,
	}
	if opts.MaxAttempts > 0 {
		job.MaxAttempts = opts.MaxAttempts
	}
	if opts.Backoff > 0 {
		job.Backoff = opts.Backoff
	}
	if opts.Delay > 0 {
		job.State = StateDelayed
		job.AvailableAt = now.Add(opts.Delay)
	}

	if err := s.broker.Enqueue(ctx, job); err != nil {
		q.recordError(opEnqueue, err, now)
		return nil, fmt.Errorf("add job to %s: %w", name, err)
	}
	q.clearError(opEnqueue)

	s.emit(Event{Type: EventAdded, Queue: name, JobID: job.ID})
	q.signal()
	return job.Clone(), nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return append(json.RawMessage(nil), p...), nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return append(json.RawMessage(nil), p...), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return data, nil
	}
}

// Job returns the current snapshot of a job, or nil when the id is unknown
// (never added, or evicted by retention).
func (s *Scheduler) Job(ctx context.Context, name, id string) (*Job, error) {
	if _, err := s.lookup(name); err != nil {
		return nil, err
	}
	job, err := s.broker.Get(ctx, name, id)
	if errors.Is(err, ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Stats describes one queue.
type Stats struct {
	Queue       string `json:"queue"`
	Counts      Counts `json:"counts"`
	Paused      bool   `json:"paused"`
	Concurrency int    `json:"concurrency"`
	Workers     int    `json:"workers"`
	Processing  int    `json:"processing"`
}

// Stats returns per-state counts for the queue.
func (s *Scheduler) Stats(ctx context.Context, name string) (Stats, error) {
	q, err := s.lookup(name)
	if err != nil {
		return Stats{}, err
	}
	counts, err := s.broker.Counts(ctx, name)
	if err != nil {
		q.recordError(opCounts, err, s.now())
		return Stats{}, err
	}
	q.clearError(opCounts)

	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queue:       name,
		Counts:      counts,
		Paused:      q.paused.Load(),
		Concurrency: q.concurrency,
		Workers:     len(q.workers),
		Processing:  int(q.processing.Load()),
	}, nil
}

// Pause stops dispatch from the queue. Jobs already running finish; waiting
// jobs stay queued.
func (s *Scheduler) Pause(name string) error {
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	if q.paused.CompareAndSwap(false, true) {
		s.logger.Info().Str("queue", name).Msg("Queue paused")
		s.emit(Event{Type: EventPaused, Queue: name})
	}
	return nil
}

// Resume restarts dispatch from a paused queue.
func (s *Scheduler) Resume(name string) error {
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	if q.paused.CompareAndSwap(true, false) {
		s.logger.Info().Str("queue", name).Msg("Queue resumed")
		s.emit(Event{Type: EventResumed, Queue: name})
		q.signal()
	}
	return nil
}

// Clean removes completed and failed jobs that finished more than grace ago.
func (s *Scheduler) Clean(ctx context.Context, name string, grace time.Duration) (int, error) {
	if _, err := s.lookup(name); err != nil {
		return 0, err
	}
	n, err := s.broker.Clean(ctx, name, s.now().Add(-grace))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Str("queue", name).Int("removed", n).Msg("Queue cleaned")
		s.emit(Event{Type: EventCleaned, Queue: name, Count: n})
	}
	return n, nil
}

// Shutdown stops dispatch and waits for in-flight handlers. When ctx expires
// first, handler contexts are cancelled and ctx.Err() is returned; those jobs
// keep their lease and are reclaimed as stalled later. The broker is closed
// either way.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopping)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler shutdown timed out, cancelling in-flight jobs")
		err = ctx.Err()
	}
	s.cancel()

	if cerr := s.broker.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close broker: %w", cerr)
	}
	return err
}

func (s *Scheduler) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// queueRuntime is the scheduler-side state of one queue.
type queueRuntime struct {
	name string

	mu          sync.Mutex
	concurrency int
	opts        QueueOptions
	handler     Handler
	workers     []*worker
	nextWorker  int
	// busy counts slots held by workers, including removed ones still
	// finishing a job.
	busy int

	paused     atomic.Bool
	processing atomic.Int32
	wake       chan struct{}
	stallReset chan struct{}

	errMu sync.Mutex
	errs  map[string]opError
}

// Broker operations whose failures are tracked for health.
const (
	opEnqueue = "enqueue"
	opDequeue = "dequeue"
	opSettle  = "settle"
	opReclaim = "reclaim"
	opCounts  = "counts"
)

type opError struct {
	err error
	at  time.Time
}

func (q *queueRuntime) config() (int, QueueOptions) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.concurrency, q.opts
}

func (q *queueRuntime) options() QueueOptions {
	_, opts := q.config()
	return opts
}

// signal wakes one idle worker.
func (q *queueRuntime) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// recordError remembers the latest failure of op. It stays until op
// succeeds again or it ages out of the health window.
func (q *queueRuntime) recordError(op string, err error, at time.Time) {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	if q.errs == nil {
		q.errs = make(map[string]opError)
	}
	q.errs[op] = opError{err: err, at: at}
}

func (q *queueRuntime) clearError(op string) {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	delete(q.errs, op)
}

// lastError returns the most recent failure recorded after since.
func (q *queueRuntime) lastError(since time.Time) (time.Time, error) {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	var latest opError
	for _, e := range q.errs {
		if e.at.After(since) && e.at.After(latest.at) {
			latest = e
		}
	}
	return latest.at, latest.err
}

// acquire takes a processing slot if fewer than concurrency jobs are running.
func (q *queueRuntime) acquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.busy >= q.concurrency {
		return false
	}
	q.busy++
	return true
}

func (q *queueRuntime) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy--
}
