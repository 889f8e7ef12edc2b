package pipeline

import (
	"context"
	"fmt"

	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// StageFailureError asks the scheduler to retry a run whose steps failed.
// It carries the partial result of the failed attempt.
type StageFailureError struct {
	Result *ticket.ProcessingResult
}

// Error implements the error interface.
func (e *StageFailureError) Error() string {
	steps := make([]string, 0, len(e.Result.Errors))
	for _, se := range e.Result.Errors {
		steps = append(steps, se.Step)
	}
	return fmt.Sprintf("pipeline steps failed: %v", steps)
}

// HandlerOption configures JobHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	retryStageErrors bool
}

// WithStageRetry makes a run with step errors fail the attempt while the job
// has attempts left, so transient collaborator outages get retried. The last
// attempt completes with the partial result.
func WithStageRetry() HandlerOption {
	return func(c *handlerConfig) { c.retryStageErrors = true }
}

// JobHandler adapts o to a queue handler for JSON ticket payloads. Payloads
// that do not decode, and invalid tickets, fail the job without retry.
func JobHandler(o *Orchestrator, opts ...HandlerOption) queue.Handler {
	var cfg handlerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, job *queue.Job) (any, error) {
		var t ticket.Ticket
		if err := job.Decode(&t); err != nil {
			return nil, queue.Permanent(fmt.Errorf("decode ticket payload: %w", err))
		}

		result, err := o.ProcessTicket(ctx, t)
		if err != nil {
			return nil, queue.Permanent(err)
		}

		lastAttempt := job.AttemptsMade+1 >= job.MaxAttempts
		if cfg.retryStageErrors && len(result.Errors) > 0 && !lastAttempt {
			return nil, &StageFailureError{Result: result}
		}
		return result, nil
	}
}
