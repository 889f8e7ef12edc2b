package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/logging"
	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/deps"
	"github.com/deskpilot/deskpilot/pkg/settings"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

const jobPollInterval = 25 * time.Millisecond

// newEnqueueCommand creates the 'deskpilot enqueue' command.
//
// Without --wait the job is handed to a shared broker for the server's workers.
// With --wait this process also runs a worker for the queue and prints the
// result once the job settles, which works with any broker.
func newEnqueueCommand() *cobra.Command {
	var tf ticketFlags

	cmd := &cobra.Command{
		Use:     "enqueue",
		Short:   "Queue a ticket for asynchronous triage",
		GroupID: "triage",
		Example: `  deskpilot enqueue --file ticket.yaml --broker.driver redis
  deskpilot enqueue --id T-7 --subject "Refund" --body "..." --queue billing --broker.driver redis
  deskpilot enqueue --file ticket.yaml --wait`,
		Annotations: map[string]string{format.OperationAnnotation: "enqueue ticket"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.ticket(cmd.InOrStdin())
			if err != nil {
				return err
			}
			opts, err := bind.BindEnqueueOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := bind.Config(cmd)
			if err != nil {
				return err
			}
			if !opts.Wait {
				if err := bind.RequireSharedBroker(cfg); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			store, closeStore, err := deps.OpenSettings(ctx, cfg.Settings, logging.Component("settings"))
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			defer store.Close()

			snap := store.Snapshot()
			if !bind.KnownQueue(snap.Settings, opts.Queue) {
				return &queue.QueueNotFoundError{Queue: opts.Queue}
			}

			broker, err := deps.OpenBroker(ctx, cfg.Broker)
			if err != nil {
				return err
			}
			scheduler := queue.NewScheduler(broker, queue.WithLogger(logging.Component("queue")))
			defer shutdownScheduler(scheduler, cfg.Server.ShutdownTimeout)

			concurrency, qopts := queue.FromSettings(snap.Settings.Queue(opts.Queue))
			if err := scheduler.CreateQueue(opts.Queue, concurrency, qopts); err != nil {
				return err
			}
			if opts.Wait {
				if err := startWorker(scheduler, store, cfg.Knowledge, opts.Queue); err != nil {
					return err
				}
			}

			job, err := scheduler.Add(ctx, opts.Queue, t, queue.JobOptions{
				Priority: jobPriority(t.Priority),
				Delay:    opts.Delay,
			})
			if err != nil {
				return err
			}

			f := format.FromCommand(cmd)
			if !opts.Wait {
				if f.IsStructured() {
					return f.PrintStructured(job)
				}
				return f.PrintSuccessSummary(fmt.Sprintf("enqueued ticket %s on %s as job", t.ID, opts.Queue), job.ID)
			}

			waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout+opts.Delay)
			defer cancel()
			done, err := waitForJob(waitCtx, scheduler, opts.Queue, job.ID)
			if err != nil {
				return fmt.Errorf("wait for job %s: %w", job.ID, err)
			}
			if done.State == queue.StateFailed {
				return fmt.Errorf("job %s failed after %d attempts: %s", done.ID, done.AttemptsMade, done.LastError)
			}

			var result ticket.ProcessingResult
			if err := json.Unmarshal(done.Result, &result); err != nil {
				return fmt.Errorf("decode job result: %w", err)
			}
			return printResult(f, &result)
		},
	}

	tf.bind(cmd.Flags())
	cmd.Flags().String("queue", settings.DefaultQueue, "Target queue")
	cmd.Flags().Duration("delay", 0, "Delay before the job becomes available")
	cmd.Flags().Bool("wait", false, "Process the job in this process and print the result")
	cmd.Flags().Duration("timeout", time.Minute, "How long --wait waits for the job to settle")

	return cmd
}

// startWorker binds the triage pipeline to the queue so this process works
// its jobs.
func startWorker(s *queue.Scheduler, store *settings.Store, kb config.KnowledgeConfig, name string) error {
	set, err := deps.OpenEngines(kb)
	if err != nil {
		return err
	}
	orch, err := pipeline.New(set.Collaborators(), store, pipeline.WithLogger(logging.Component("pipeline")))
	if err != nil {
		return err
	}
	return s.Process(name, pipeline.JobHandler(orch, pipeline.WithStageRetry()))
}

// waitForJob polls until the job reaches a terminal state.
func waitForJob(ctx context.Context, s *queue.Scheduler, name, id string) (*queue.Job, error) {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		job, err := s.Job(ctx, name, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			// Evicted by retention before we saw it settle.
			return nil, queue.ErrJobNotFound
		}
		if job.State.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func shutdownScheduler(s *queue.Scheduler, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = s.Shutdown(ctx)
}
