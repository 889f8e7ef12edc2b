package queue

import (
	"context"
	"time"
)

// Counts is the number of jobs per state in one queue.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Broker is the durable storage behind the scheduler. Any store offering
// at-least-once delivery with renewable leases can implement it.
//
// Lease ownership is proven by the token handed out by Lease (or rotated by
// Reclaim). Renew and Settle fail with ErrLeaseLost once the caller's token
// no longer owns the job.
type Broker interface {
	// Name identifies the backend in health output.
	Name() string

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Enqueue stores a new job in StateWaiting or StateDelayed and assigns job.Seq.
	Enqueue(ctx context.Context, job *Job) error

	// Lease promotes delayed jobs due at now, then hands out the first waiting
	// job by priority then Seq under a fresh lease expiring at now+ttl.
	// It returns nil, nil when nothing is waiting.
	Lease(ctx context.Context, queue string, now time.Time, ttl time.Duration) (*Job, error)

	// Renew extends a held lease to until.
	Renew(ctx context.Context, queue, id, token string, until time.Time) error

	// Settle moves an active job held under token into job.State, which must
	// be waiting, delayed, completed or failed. Terminal states keep at most
	// keep jobs, evicting the oldest.
	Settle(ctx context.Context, job *Job, token string, keep int) error

	// Reclaim returns active jobs whose lease expired before now. Each returned
	// job carries a rotated LeaseToken that the caller settles it with.
	Reclaim(ctx context.Context, queue string, now time.Time) ([]*Job, error)

	// Get returns the stored job or ErrJobNotFound.
	Get(ctx context.Context, queue, id string) (*Job, error)

	// Counts returns per-state counts.
	Counts(ctx context.Context, queue string) (Counts, error)

	// Clean removes completed and failed jobs finished before cutoff and
	// returns how many were removed.
	Clean(ctx context.Context, queue string, cutoff time.Time) (int, error)

	// Close releases the backend connection.
	Close() error
}
