package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// settleTimeout bounds broker writes made after a handler returns.
const settleTimeout = 5 * time.Second

type worker struct {
	id   int
	stop chan struct{}
}

// resize grows or shrinks the worker pool to n. Caller holds q.mu and s.mu
// (read) and has checked the scheduler is not shutting down. A removed worker
// keeps its slot until its current job settles, so new workers cannot push
// the queue past n.
func (s *Scheduler) resize(q *queueRuntime, n int) {
	for len(q.workers) < n {
		w := &worker{id: q.nextWorker, stop: make(chan struct{})}
		q.nextWorker++
		q.workers = append(q.workers, w)
		s.wg.Add(1)
		go s.workerLoop(q, w)
	}
	for len(q.workers) > n {
		last := q.workers[len(q.workers)-1]
		close(last.stop)
		q.workers = q.workers[:len(q.workers)-1]
	}
}

// workerLoop dequeues and runs one job at a time until stopped.
func (s *Scheduler) workerLoop(q *queueRuntime, w *worker) {
	defer s.wg.Done()

	logger := s.logger.With().Str("queue", q.name).Int("worker_id", w.id).Logger()
	logger.Debug().Msg("Worker started")
	defer logger.Debug().Msg("Worker stopping")

	for {
		select {
		case <-w.stop:
			return
		case <-s.stopping:
			return
		default:
		}

		opts := q.options()
		if q.paused.Load() {
			if !s.idle(q, w, opts.PollInterval) {
				return
			}
			continue
		}

		if !q.acquire() {
			if !s.idle(q, w, opts.PollInterval) {
				return
			}
			continue
		}

		job, err := s.broker.Lease(s.ctx, q.name, s.now(), opts.LockDuration)
		if err != nil {
			q.release()
			q.recordError(opDequeue, err, s.now())
			logger.Warn().Err(err).Msg("Dequeue failed")
			if !s.idle(q, w, opts.PollInterval) {
				return
			}
			continue
		}
		q.clearError(opDequeue)

		if job == nil {
			q.release()
			if !s.idle(q, w, opts.PollInterval) {
				return
			}
			continue
		}

		q.processing.Add(1)
		s.run(q, job, opts)
		q.processing.Add(-1)
		q.release()
		q.signal()
	}
}

// idle waits for d, a wake-up, or a stop. It returns false when the worker
// should exit.
func (s *Scheduler) idle(q *queueRuntime, w *worker, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-q.wake:
		return true
	case <-w.stop:
		return false
	case <-s.stopping:
		return false
	}
}

// run executes one leased job and records the outcome.
func (s *Scheduler) run(q *queueRuntime, job *Job, opts QueueOptions) {
	q.mu.Lock()
	handler := q.handler
	q.mu.Unlock()

	token := job.LeaseToken
	attempt := job.AttemptsMade + 1
	logger := s.logger.With().
		Str("queue", q.name).
		Str("job_id", job.ID).
		Int("attempt", attempt).
		Logger()

	s.emit(Event{Type: EventActive, Queue: q.name, JobID: job.ID, Attempt: attempt})
	logger.Debug().Msg("Processing job")

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	lost := make(chan struct{})
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		s.heartbeat(ctx, job, token, opts.LockDuration, lost, cancel)
	}()

	result, err := invoke(ctx, handler, job.Clone())
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	cancel()
	<-hbDone

	if s.ctx.Err() != nil {
		// Forced shutdown: leave the lease to expire so the job is reclaimed.
		logger.Warn().Msg("Job abandoned on shutdown")
		return
	}
	select {
	case <-lost:
		s.emit(Event{Type: EventLeaseLost, Queue: q.name, JobID: job.ID, Attempt: attempt})
		logger.Warn().Msg("Lease lost, discarding result")
		return
	default:
	}

	now := s.now()
	job.AttemptsMade = attempt
	job.LeaseToken = ""
	job.LeaseExpiresAt = time.Time{}

	if err == nil {
		if result != nil {
			data, merr := json.Marshal(result)
			if merr != nil {
				err = Permanent(fmt.Errorf("encode result: %w", merr))
			} else {
				job.Result = data
			}
		}
	}
	if err == nil && timedOut {
		err = fmt.Errorf("job timed out after %s", opts.Timeout)
	}
	if err != nil && timedOut && !IsPermanent(err) {
		err = fmt.Errorf("job timed out after %s: %w", opts.Timeout, err)
	}

	var keep int
	var ev Event
	switch {
	case err == nil:
		job.State = StateCompleted
		job.FinishedAt = now
		job.LastError = ""
		keep = opts.KeepCompleted
		ev = Event{Type: EventCompleted, Queue: q.name, JobID: job.ID, Attempt: attempt}

	case IsPermanent(err) || job.AttemptsMade >= job.MaxAttempts:
		job.State = StateFailed
		job.FinishedAt = now
		job.LastError = err.Error()
		keep = opts.KeepFailed
		ev = Event{Type: EventFailed, Queue: q.name, JobID: job.ID, Attempt: attempt, Error: job.LastError}

	default:
		delay := BackoffDelay(job.Backoff, job.AttemptsMade)
		job.LastError = err.Error()
		job.Delays = append(job.Delays, delay)
		job.AvailableAt = now.Add(delay)
		job.State = StateDelayed
		if delay == 0 {
			job.State = StateWaiting
		}
		ev = Event{Type: EventRetrying, Queue: q.name, JobID: job.ID, Attempt: attempt, Delay: delay, Error: job.LastError}
	}

	sctx, scancel := context.WithTimeout(context.WithoutCancel(s.ctx), settleTimeout)
	defer scancel()
	if serr := s.broker.Settle(sctx, job, token, keep); serr != nil {
		if errors.Is(serr, ErrLeaseLost) {
			s.emit(Event{Type: EventLeaseLost, Queue: q.name, JobID: job.ID, Attempt: attempt})
			logger.Warn().Msg("Lease lost, discarding result")
			return
		}
		q.recordError(opSettle, serr, now)
		logger.Error().Err(serr).Msg("Failed to record job outcome")
		return
	}
	q.clearError(opSettle)

	s.emit(ev)
	switch ev.Type {
	case EventCompleted:
		logger.Debug().Msg("Job completed")
	case EventFailed:
		logger.Warn().Str("error", job.LastError).Msg("Job failed")
	case EventRetrying:
		logger.Info().Str("error", job.LastError).Dur("delay", ev.Delay).Msg("Job will be retried")
		if ev.Delay == 0 {
			q.signal()
		}
	}
}

// invoke calls handler, turning a panic into an error.
func invoke(ctx context.Context, handler Handler, job *Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

// heartbeat renews the lease every lockDuration/2 until ctx ends. When the
// lease is lost it closes lost and cancels the handler.
func (s *Scheduler) heartbeat(ctx context.Context, job *Job, token string, lockDuration time.Duration, lost chan<- struct{}, cancel context.CancelFunc) {
	interval := lockDuration / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.broker.Renew(ctx, job.Queue, job.ID, token, s.now().Add(lockDuration))
			switch {
			case err == nil:
			case errors.Is(err, ErrLeaseLost):
				close(lost)
				cancel()
				return
			case ctx.Err() != nil:
				return
			default:
				s.logger.Warn().
					Err(err).
					Str("queue", job.Queue).
					Str("job_id", job.ID).
					Msg("Lease renewal failed")
			}
		}
	}
}

// stallLoop periodically reclaims jobs whose lease expired.
func (s *Scheduler) stallLoop(q *queueRuntime) {
	defer s.wg.Done()

	ticker := time.NewTicker(q.options().StallInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopping:
			return
		case <-q.stallReset:
			ticker.Reset(q.options().StallInterval)
		case <-ticker.C:
			s.checkStalled(s.ctx, q)
		}
	}
}

// checkStalled requeues every job with an expired lease, or fails it once it
// has stalled more than MaxStalled times. It returns the number reclaimed.
func (s *Scheduler) checkStalled(ctx context.Context, q *queueRuntime) int {
	opts := q.options()
	now := s.now()

	jobs, err := s.broker.Reclaim(ctx, q.name, now)
	if err != nil {
		q.recordError(opReclaim, err, now)
		s.logger.Warn().Err(err).Str("queue", q.name).Msg("Stall check failed")
		return 0
	}
	settled := true
	defer func() {
		if settled {
			q.clearError(opReclaim)
		}
	}()

	for _, job := range jobs {
		token := job.LeaseToken
		job.LeaseToken = ""
		job.LeaseExpiresAt = time.Time{}
		job.StalledCount++

		keep := 0
		ev := Event{Queue: q.name, JobID: job.ID, Attempt: job.AttemptsMade, Count: job.StalledCount}
		if job.StalledCount > opts.MaxStalled {
			job.State = StateFailed
			job.FinishedAt = now
			job.LastError = fmt.Sprintf("job stalled more than %d times", opts.MaxStalled)
			keep = opts.KeepFailed
			ev.Type = EventFailed
			ev.Error = job.LastError
		} else {
			job.State = StateWaiting
			job.AvailableAt = now
			ev.Type = EventStalled
		}

		if err := s.broker.Settle(ctx, job, token, keep); err != nil {
			if !errors.Is(err, ErrLeaseLost) {
				settled = false
				q.recordError(opReclaim, err, now)
				s.logger.Warn().Err(err).Str("queue", q.name).Str("job_id", job.ID).Msg("Failed to reclaim stalled job")
			}
			continue
		}

		s.emit(ev)
		s.logger.Warn().
			Str("queue", q.name).
			Str("job_id", job.ID).
			Int("stalled_count", job.StalledCount).
			Str("state", string(job.State)).
			Msg("Reclaimed stalled job")
		if job.State == StateWaiting {
			q.signal()
		}
	}
	return len(jobs)
}
