// Package bind turns parsed cobra flags and the command context into the
// validated options deskpilot commands run with.
package bind

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/pkg/appctx"
	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/server"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

// ErrSharedBrokerRequired is returned by commands that inspect or feed
// queues owned by another process while the in-process broker is selected.
var ErrSharedBrokerRequired = errors.New("command needs a shared broker; the memory broker lives only in this process")

// ErrInvalidInput marks flag values that fail validation.
var ErrInvalidInput = errors.New("invalid input")

// Config returns the bootstrap configuration loaded by the root command.
func Config(cmd *cobra.Command) (config.Config, error) {
	mgr, ok := appctx.Config(cmd.Context())
	if !ok {
		return config.Config{}, server.ErrConfigUnavailable
	}
	return mgr.Get(), nil
}

// RequireSharedBroker fails when cfg selects the in-process broker.
func RequireSharedBroker(cfg config.Config) error {
	if cfg.Broker.Driver == "" || cfg.Broker.Driver == "memory" {
		return ErrSharedBrokerRequired
	}
	return nil
}

// EnqueueOptions holds the validated enqueue flags.
type EnqueueOptions struct {
	Queue   string
	Delay   time.Duration
	Wait    bool
	Timeout time.Duration
}

// BindEnqueueOptions extracts and validates enqueue flags.
//
// Flags read:
//   - --queue: target queue (default "tickets")
//   - --delay: hold the job before it becomes available
//   - --wait: process the job in this process and print the result
//   - --timeout: upper bound for --wait
func BindEnqueueOptions(cmd *cobra.Command) (EnqueueOptions, error) {
	queueName, _ := cmd.Flags().GetString("queue")
	delay, _ := cmd.Flags().GetDuration("delay")
	wait, _ := cmd.Flags().GetBool("wait")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if queueName == "" {
		queueName = settings.DefaultQueue
	}
	if delay < 0 {
		return EnqueueOptions{}, fmt.Errorf("%w: --delay must not be negative", ErrInvalidInput)
	}
	if timeout <= 0 {
		return EnqueueOptions{}, fmt.Errorf("%w: --timeout must be positive", ErrInvalidInput)
	}

	return EnqueueOptions{
		Queue:   queueName,
		Delay:   delay,
		Wait:    wait,
		Timeout: timeout,
	}, nil
}

// QueueCleanOptions holds the validated queue clean flags.
type QueueCleanOptions struct {
	Queue string
	Grace time.Duration
}

// BindQueueCleanOptions extracts and validates queue clean flags.
func BindQueueCleanOptions(cmd *cobra.Command, args []string) (QueueCleanOptions, error) {
	grace, _ := cmd.Flags().GetDuration("grace")
	if grace < 0 {
		return QueueCleanOptions{}, fmt.Errorf("%w: --grace must not be negative", ErrInvalidInput)
	}
	return QueueCleanOptions{Queue: args[0], Grace: grace}, nil
}

// KnownQueue reports whether name is configured in s. The default queue
// always exists.
func KnownQueue(s settings.Settings, name string) bool {
	if name == settings.DefaultQueue {
		return true
	}
	_, ok := s.Queues[name]
	return ok
}
