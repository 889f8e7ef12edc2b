package commands

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

func TestErrorCodeAndExitCode(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"nil", nil, "", 0},
		{"plain", cause, "", 1},
		{"queue not found", &queue.QueueNotFoundError{Queue: "billing"}, errorCodeQueueNotFound, 3},
		{"job not found", fmt.Errorf("%w: j-1", queue.ErrJobNotFound), errorCodeJobNotFound, 3},
		{"invalid ticket", &pipeline.InvalidTicketError{Reason: "id is required"}, errorCodeInvalidTicket, 2},
		{"invalid settings", &settings.ValidationError{}, errorCodeInvalidSettings, 2},
		{"shared broker", bind.ErrSharedBrokerRequired, errorCodeSharedBrokerRequired, 2},
		{"invalid input", fmt.Errorf("%w: bad", bind.ErrInvalidInput), errorCodeInvalidInput, 2},
		{"broker init", server.WrapBrokerInit(cause), "SERVER_BROKER_INIT_FAILED", 7},
		{"config load", server.WrapConfigLoad(cause), "SERVER_INVALID_CONFIG", 2},
		{"config unavailable", server.ErrConfigUnavailable, "SERVER_CONFIG_UNAVAILABLE", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.exit, ExitCode(tt.err))
		})
	}
}
