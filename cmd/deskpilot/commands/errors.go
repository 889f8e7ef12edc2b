package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

// CLI error codes for failures that do not come from the server runtime.
const (
	errorCodeQueueNotFound        = "QUEUE_NOT_FOUND"
	errorCodeJobNotFound          = "JOB_NOT_FOUND"
	errorCodeInvalidTicket        = "INVALID_TICKET"
	errorCodeInvalidSettings      = "INVALID_SETTINGS"
	errorCodeSharedBrokerRequired = "SHARED_BROKER_REQUIRED"
	errorCodeInvalidInput         = "INVALID_INPUT"
)

// Execute runs the CLI with args and returns the process exit code. Failures
// are reported through the formatter of the command that failed.
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, NewCommand(), args)
}

func execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)

	executed, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if executed == nil {
		executed = root
	}

	_ = format.FromCommand(executed).PrintTotalFailureSummary(format.Operation(executed), err, ErrorCode(err))
	return ExitCode(err)
}

// ErrorCode resolves err to a CLI or server error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ Code() string }
	switch {
	case errors.As(err, &coded) && coded.Code() != "":
		return coded.Code()
	case errors.Is(err, server.ErrConfigUnavailable):
		return server.ErrorCode(err)
	case queue.IsQueueNotFound(err):
		return errorCodeQueueNotFound
	case errors.Is(err, queue.ErrJobNotFound):
		return errorCodeJobNotFound
	case errors.Is(err, pipeline.ErrInvalidTicket):
		return errorCodeInvalidTicket
	case errors.Is(err, settings.ErrInvalidSettings):
		return errorCodeInvalidSettings
	case errors.Is(err, bind.ErrSharedBrokerRequired):
		return errorCodeSharedBrokerRequired
	case errors.Is(err, bind.ErrInvalidInput):
		return errorCodeInvalidInput
	default:
		return ""
	}
}

// ExitCode maps err to the process exit code: 2 for bad input, 3 for unknown
// queues and jobs, the server mapping for coded runtime failures and 1
// otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ErrorCode(err) {
	case errorCodeInvalidTicket, errorCodeInvalidSettings, errorCodeSharedBrokerRequired, errorCodeInvalidInput:
		return 2
	case errorCodeQueueNotFound, errorCodeJobNotFound:
		return 3
	case "":
		return 1
	default:
		return server.ExitCode(err)
	}
}
