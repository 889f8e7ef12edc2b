package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

func TestJobHandler_ReturnsResult(t *testing.T) {
	h := JobHandler(newOrchestrator(t, fakes(0.9)))

	payload, err := json.Marshal(mediumTicket())
	require.NoError(t, err)

	out, err := h(context.Background(), &queue.Job{Payload: payload, MaxAttempts: 3})
	require.NoError(t, err)

	result, ok := out.(*ticket.ProcessingResult)
	require.True(t, ok)
	assert.True(t, result.AutoResolve)
}

func TestJobHandler_BadPayloadIsPermanent(t *testing.T) {
	h := JobHandler(newOrchestrator(t, fakes(0.9)))

	_, err := h(context.Background(), &queue.Job{Payload: json.RawMessage(`[1,2]`), MaxAttempts: 3})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	_, err = h(context.Background(), &queue.Job{Payload: json.RawMessage(`{"subject":"no id"}`), MaxAttempts: 3})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestJobHandler_StageRetry(t *testing.T) {
	c := fakes(0.9)
	c.Knowledge = KnowledgeSearcherFunc(func(context.Context, ticket.Ticket, *ticket.Classification) ([]ticket.KnowledgeMatch, error) {
		return nil, errors.New("index unavailable")
	})
	h := JobHandler(newOrchestrator(t, c), WithStageRetry())

	payload, err := json.Marshal(mediumTicket())
	require.NoError(t, err)

	_, err = h(context.Background(), &queue.Job{Payload: payload, AttemptsMade: 0, MaxAttempts: 3})
	var sf *StageFailureError
	require.ErrorAs(t, err, &sf)
	assert.Contains(t, err.Error(), ticket.StepKnowledge)
	assert.False(t, queue.IsPermanent(err))

	// The last attempt settles for the partial result.
	out, err := h(context.Background(), &queue.Job{Payload: payload, AttemptsMade: 2, MaxAttempts: 3})
	require.NoError(t, err)
	assert.True(t, out.(*ticket.ProcessingResult).Failed(ticket.StepKnowledge))
}

func TestJobHandler_ThroughScheduler(t *testing.T) {
	var calls atomic.Int32
	c := fakes(0.9)
	c.Classifier = ClassifierFunc(func(context.Context, ticket.Ticket) (*ticket.Classification, error) {
		calls.Add(1)
		return &ticket.Classification{Category: "password_reset"}, nil
	})

	s := queue.NewScheduler(queue.NewMemoryBroker())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	require.NoError(t, s.CreateQueue("tickets", 2, queue.QueueOptions{PollInterval: 5 * time.Millisecond}))
	require.NoError(t, s.Process("tickets", JobHandler(newOrchestrator(t, c))))

	job, err := s.Add(context.Background(), "tickets", mediumTicket(), queue.JobOptions{})
	require.NoError(t, err)

	var done *queue.Job
	require.Eventually(t, func() bool {
		j, err := s.Job(context.Background(), "tickets", job.ID)
		if err != nil || j == nil || j.State != queue.StateCompleted {
			return false
		}
		done = j
		return true
	}, 2*time.Second, 5*time.Millisecond)

	var result ticket.ProcessingResult
	require.NoError(t, json.Unmarshal(done.Result, &result))
	assert.Equal(t, "T-100", result.TicketID)
	assert.True(t, result.AutoResolve)
	assert.Equal(t, int32(1), calls.Load())
}
