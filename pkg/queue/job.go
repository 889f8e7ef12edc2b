// Package queue is the multi-queue job scheduler: named queues with their own
// worker pools, priority then FIFO dispatch, retry with exponential backoff,
// lease renewal and stalled-job reclamation over a pluggable Broker.
package queue

import (
	"encoding/json"
	"time"
)

// State is the lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is one unit of scheduled work. Values returned by the scheduler and the
// brokers are snapshots; mutating them does not affect the stored job.
type Job struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
	// State precedes every raw JSON field so the redis lease script can
	// rewrite its first "state" key in place.
	State   State           `json:"state"`
	Payload json.RawMessage `json:"payload"`

	// Priority orders waiting jobs; lower values are dispatched first.
	Priority int `json:"priority"`

	AttemptsMade int           `json:"attempts_made"`
	MaxAttempts  int           `json:"max_attempts"`
	Backoff      time.Duration `json:"backoff"`
	StalledCount int           `json:"stalled_count"`

	CreatedAt   time.Time `json:"created_at"`
	AvailableAt time.Time `json:"available_at"`
	ProcessedAt time.Time `json:"processed_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`

	LeaseToken     string    `json:"lease_token,omitempty"`
	LeaseExpiresAt time.Time `json:"lease_expires_at,omitzero"`

	// Delays records the backoff applied before each retry.
	Delays    []time.Duration `json:"delays,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`

	// Seq is the enqueue sequence assigned by the broker; it breaks priority ties.
	Seq int64 `json:"seq"`
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Payload = append(json.RawMessage(nil), j.Payload...)
	out.Result = append(json.RawMessage(nil), j.Result...)
	out.Delays = append([]time.Duration(nil), j.Delays...)
	return &out
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// JobOptions override the queue defaults for a single job.
type JobOptions struct {
	Priority    int
	Delay       time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// BackoffDelay returns the wait before the retry that follows attempt
// number attemptsMade: base * 2^(attemptsMade-1).
func BackoffDelay(base time.Duration, attemptsMade int) time.Duration {
	if base <= 0 || attemptsMade < 1 {
		return 0
	}
	shift := attemptsMade - 1
	if shift > 30 {
		shift = 30
	}
	return base << shift
}
