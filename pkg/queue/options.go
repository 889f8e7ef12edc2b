package queue

import (
	"time"

	"github.com/deskpilot/deskpilot/pkg/settings"
)

// QueueOptions are the per-queue defaults applied to every job and worker.
type QueueOptions struct {
	Attempts      int           // max attempts per job
	Backoff       time.Duration // base of the exponential backoff
	Timeout       time.Duration // max handler run time per attempt, 0 = none
	KeepCompleted int           // completed jobs retained
	KeepFailed    int           // failed jobs retained
	StallInterval time.Duration // how often expired leases are reclaimed
	MaxStalled    int           // reclaims tolerated before the job fails
	LockDuration  time.Duration // lease length; renewed every LockDuration/2
	PollInterval  time.Duration // idle wait between empty dequeues
}

// DefaultQueueOptions returns the options used for zero fields.
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		Attempts:      3,
		Backoff:       2 * time.Second,
		Timeout:       0,
		KeepCompleted: 100,
		KeepFailed:    50,
		StallInterval: 30 * time.Second,
		MaxStalled:    1,
		LockDuration:  30 * time.Second,
		PollInterval:  250 * time.Millisecond,
	}
}

// withDefaults fills unset fields. A negative retention count keeps no jobs.
func (o QueueOptions) withDefaults() QueueOptions {
	def := DefaultQueueOptions()
	if o.Attempts <= 0 {
		o.Attempts = def.Attempts
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	switch {
	case o.KeepCompleted == 0:
		o.KeepCompleted = def.KeepCompleted
	case o.KeepCompleted < 0:
		o.KeepCompleted = 0
	}
	switch {
	case o.KeepFailed == 0:
		o.KeepFailed = def.KeepFailed
	case o.KeepFailed < 0:
		o.KeepFailed = 0
	}
	if o.StallInterval <= 0 {
		o.StallInterval = def.StallInterval
	}
	if o.MaxStalled < 0 {
		o.MaxStalled = 0
	}
	if o.LockDuration <= 0 {
		o.LockDuration = def.LockDuration
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	return o
}

// FromSettings maps runtime queue settings onto a concurrency and options.
// The lease length follows the stall interval.
func FromSettings(qs settings.QueueSettings) (int, QueueOptions) {
	opts := QueueOptions{
		Attempts:      qs.Attempts,
		Backoff:       qs.Backoff,
		Timeout:       qs.Timeout,
		KeepCompleted: qs.KeepCompleted,
		KeepFailed:    qs.KeepFailed,
		StallInterval: qs.StallInterval,
		MaxStalled:    qs.MaxStalled,
		LockDuration:  qs.StallInterval,
	}
	if qs.KeepCompleted == 0 {
		opts.KeepCompleted = -1
	}
	if qs.KeepFailed == 0 {
		opts.KeepFailed = -1
	}
	return qs.Concurrency, opts
}
