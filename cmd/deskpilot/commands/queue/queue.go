// Package queue holds the 'deskpilot queue' commands, which inspect and
// maintain queues on the shared broker the server works from.
package queue

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/pkg/logging"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/deps"
	"github.com/deskpilot/deskpilot/pkg/server/jobs"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

// NewCommand returns the 'deskpilot queue' command group.
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain job queues",
		Long: `Inspect and maintain the job queues on the shared broker.

These commands need the broker the server uses (--broker.driver redis); the
in-process memory broker has nothing to show from another process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	command.AddCommand(newStatsCommand())
	command.AddCommand(newJobCommand())
	command.AddCommand(newCleanCommand())

	return command
}

// session is a scheduler over the shared broker with queues registered but
// no workers bound.
type session struct {
	settings  settings.Settings
	scheduler *queue.Scheduler
	close     func()
}

// openSession connects to the broker and registers the named queues. With no
// names, every configured queue is registered.
func openSession(cmd *cobra.Command, names ...string) (*session, []string, error) {
	cfg, err := bind.Config(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := bind.RequireSharedBroker(cfg); err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	store, closeStore, err := deps.OpenSettings(ctx, cfg.Settings, logging.Component("settings"))
	if err != nil {
		return nil, nil, err
	}
	snap := store.Snapshot()
	store.Close()
	_ = closeStore()

	if len(names) == 0 {
		names = jobs.QueueNames(snap.Settings)
	}
	for _, name := range names {
		if !bind.KnownQueue(snap.Settings, name) {
			return nil, nil, &queue.QueueNotFoundError{Queue: name}
		}
	}

	broker, err := deps.OpenBroker(ctx, cfg.Broker)
	if err != nil {
		return nil, nil, err
	}
	scheduler := queue.NewScheduler(broker, queue.WithLogger(logging.Component("queue")))
	s := &session{
		settings:  snap.Settings,
		scheduler: scheduler,
		close: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = scheduler.Shutdown(shutdownCtx)
		},
	}

	for _, name := range names {
		concurrency, opts := queue.FromSettings(snap.Settings.Queue(name))
		if err := scheduler.CreateQueue(name, concurrency, opts); err != nil {
			s.close()
			return nil, nil, err
		}
	}
	return s, names, nil
}
