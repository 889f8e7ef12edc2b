package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBroker is an in-process Broker. Jobs do not survive a restart; use
// RedisBroker when durability across processes is needed.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]*memQueue
	seq    int64
	closed bool
}

type memQueue struct {
	jobs      map[string]*Job
	waiting   jobHeap
	delayed   map[string]*Job
	active    map[string]*Job
	completed []string // oldest first
	failed    []string
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string]*memQueue)}
}

// Name implements Broker.
func (b *MemoryBroker) Name() string { return "memory" }

// Ping implements Broker.
func (b *MemoryBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	return nil
}

func (b *MemoryBroker) queue(name string) *memQueue {
	q, ok := b.queues[name]
	if !ok {
		q = &memQueue{
			jobs:    make(map[string]*Job),
			delayed: make(map[string]*Job),
			active:  make(map[string]*Job),
		}
		b.queues[name] = q
	}
	return q
}

// Enqueue implements Broker.
func (b *MemoryBroker) Enqueue(_ context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}

	q := b.queue(job.Queue)
	if _, exists := q.jobs[job.ID]; exists {
		return fmt.Errorf("enqueue %s: duplicate job id", job.ID)
	}

	b.seq++
	job.Seq = b.seq
	stored := job.Clone()
	q.jobs[stored.ID] = stored

	switch stored.State {
	case StateWaiting:
		heap.Push(&q.waiting, stored)
	case StateDelayed:
		q.delayed[stored.ID] = stored
	default:
		delete(q.jobs, stored.ID)
		return fmt.Errorf("enqueue %s: invalid state %q", job.ID, job.State)
	}
	return nil
}

// Lease implements Broker.
func (b *MemoryBroker) Lease(_ context.Context, queue string, now time.Time, ttl time.Duration) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	q := b.queue(queue)
	for id, j := range q.delayed {
		if !j.AvailableAt.After(now) {
			delete(q.delayed, id)
			j.State = StateWaiting
			heap.Push(&q.waiting, j)
		}
	}
	if q.waiting.Len() == 0 {
		return nil, nil
	}

	j := heap.Pop(&q.waiting).(*Job)
	j.State = StateActive
	j.ProcessedAt = now
	j.LeaseToken = uuid.NewString()
	j.LeaseExpiresAt = now.Add(ttl)
	q.active[j.ID] = j
	return j.Clone(), nil
}

// Renew implements Broker.
func (b *MemoryBroker) Renew(_ context.Context, queue, id, token string, until time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}

	j, ok := b.queue(queue).active[id]
	if !ok || j.LeaseToken != token {
		return ErrLeaseLost
	}
	j.LeaseExpiresAt = until
	return nil
}

// Settle implements Broker.
func (b *MemoryBroker) Settle(_ context.Context, job *Job, token string, keep int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}

	switch job.State {
	case StateWaiting, StateDelayed, StateCompleted, StateFailed:
	default:
		return fmt.Errorf("settle %s: invalid state %q", job.ID, job.State)
	}

	q := b.queue(job.Queue)
	cur, ok := q.active[job.ID]
	if !ok || cur.LeaseToken != token {
		return ErrLeaseLost
	}
	delete(q.active, job.ID)

	stored := job.Clone()
	stored.Seq = cur.Seq
	stored.LeaseToken = ""
	stored.LeaseExpiresAt = time.Time{}
	q.jobs[stored.ID] = stored

	switch stored.State {
	case StateWaiting:
		heap.Push(&q.waiting, stored)
	case StateDelayed:
		q.delayed[stored.ID] = stored
	case StateCompleted:
		q.completed = q.trim(append(q.completed, stored.ID), keep)
	case StateFailed:
		q.failed = q.trim(append(q.failed, stored.ID), keep)
	}
	return nil
}

// trim evicts the oldest ids beyond keep.
func (q *memQueue) trim(ids []string, keep int) []string {
	if keep < 0 {
		keep = 0
	}
	if excess := len(ids) - keep; excess > 0 {
		for _, id := range ids[:excess] {
			delete(q.jobs, id)
		}
		ids = append([]string(nil), ids[excess:]...)
	}
	return ids
}

// Reclaim implements Broker.
func (b *MemoryBroker) Reclaim(_ context.Context, queue string, now time.Time) ([]*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	var out []*Job
	for _, j := range b.queue(queue).active {
		if j.LeaseExpiresAt.Before(now) {
			j.LeaseToken = uuid.NewString()
			out = append(out, j.Clone())
		}
	}
	return out, nil
}

// Get implements Broker.
func (b *MemoryBroker) Get(_ context.Context, queue, id string) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	j, ok := b.queue(queue).jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

// Counts implements Broker.
func (b *MemoryBroker) Counts(_ context.Context, queue string) (Counts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Counts{}, ErrBrokerClosed
	}

	q := b.queue(queue)
	return Counts{
		Waiting:   int64(q.waiting.Len()),
		Delayed:   int64(len(q.delayed)),
		Active:    int64(len(q.active)),
		Completed: int64(len(q.completed)),
		Failed:    int64(len(q.failed)),
	}, nil
}

// Clean implements Broker.
func (b *MemoryBroker) Clean(_ context.Context, queue string, cutoff time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrBrokerClosed
	}

	q := b.queue(queue)
	removed := 0
	sweep := func(ids []string) []string {
		kept := ids[:0]
		for _, id := range ids {
			if j := q.jobs[id]; j != nil && j.FinishedAt.Before(cutoff) {
				delete(q.jobs, id)
				removed++
				continue
			}
			kept = append(kept, id)
		}
		return kept
	}
	q.completed = sweep(q.completed)
	q.failed = sweep(q.failed)
	return removed, nil
}

// Close implements Broker.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// jobHeap orders waiting jobs by priority, then enqueue sequence.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}
