package queue

import (
	"errors"
	"fmt"
)

// Common errors returned by scheduler and broker operations.
var (
	// ErrQueueNotFound is returned for operations on an unregistered queue.
	ErrQueueNotFound = errors.New("queue not found")

	// ErrDuplicateQueue is returned when a queue is re-registered with different settings.
	ErrDuplicateQueue = errors.New("queue already registered")

	// ErrJobNotFound is returned by brokers for unknown (or evicted) job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrLeaseLost is returned when a job is no longer held under the caller's lease token.
	ErrLeaseLost = errors.New("job lease lost")

	// ErrProcessorExists is returned when a second handler is bound to a queue.
	ErrProcessorExists = errors.New("queue already has a processor")

	// ErrShutdown is returned by operations on a scheduler that has been shut down.
	ErrShutdown = errors.New("scheduler is shut down")

	// ErrBrokerClosed is returned by brokers after Close.
	ErrBrokerClosed = errors.New("broker is closed")
)

// QueueNotFoundError wraps ErrQueueNotFound with the queue name.
type QueueNotFoundError struct {
	Queue string
}

// Error implements the error interface.
func (e *QueueNotFoundError) Error() string {
	return fmt.Sprintf("queue not found: %s", e.Queue)
}

// Unwrap returns the underlying error.
func (e *QueueNotFoundError) Unwrap() error {
	return ErrQueueNotFound
}

// Is checks if the error matches ErrQueueNotFound.
func (e *QueueNotFoundError) Is(target error) bool {
	return target == ErrQueueNotFound
}

// DuplicateQueueError wraps ErrDuplicateQueue with the conflicting registration.
type DuplicateQueueError struct {
	Queue    string
	Existing int // concurrency of the registered queue
	Proposed int
}

// Error implements the error interface.
func (e *DuplicateQueueError) Error() string {
	return fmt.Sprintf("queue %s already registered with different settings (concurrency %d, requested %d)",
		e.Queue, e.Existing, e.Proposed)
}

// Unwrap returns the underlying error.
func (e *DuplicateQueueError) Unwrap() error {
	return ErrDuplicateQueue
}

// Is checks if the error matches ErrDuplicateQueue.
func (e *DuplicateQueueError) Is(target error) bool {
	return target == ErrDuplicateQueue
}

// permanentError marks a handler error as not worth retrying.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the scheduler fails the job without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// IsQueueNotFound checks if an error is or wraps ErrQueueNotFound.
func IsQueueNotFound(err error) bool {
	return errors.Is(err, ErrQueueNotFound)
}
