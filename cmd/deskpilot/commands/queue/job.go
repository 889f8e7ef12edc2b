package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

func newJobCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "job <queue> <id>",
		Short:       "Show one job and its result",
		Annotations: map[string]string{format.OperationAnnotation: "show job"},
		Args:        cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id := args[0], args[1]
			s, _, err := openSession(cmd, name)
			if err != nil {
				return err
			}
			defer s.close()

			job, err := s.scheduler.Job(cmd.Context(), name, id)
			if err != nil {
				return err
			}
			if job == nil {
				return fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
			}

			f := format.FromCommand(cmd)
			if f.IsStructured() {
				return f.PrintStructured(job)
			}
			return f.PrintKeyValues("Job "+job.ID, jobPairs(job))
		},
	}
}

func jobPairs(job *queue.Job) [][2]string {
	pairs := [][2]string{
		{"queue", job.Queue},
		{"state", string(job.State)},
		{"attempts", fmt.Sprintf("%d/%d", job.AttemptsMade, job.MaxAttempts)},
		{"priority", strconv.Itoa(job.Priority)},
		{"created", job.CreatedAt.Format(time.RFC3339)},
	}
	if !job.FinishedAt.IsZero() {
		pairs = append(pairs, [2]string{"finished", job.FinishedAt.Format(time.RFC3339)})
	}
	if job.StalledCount > 0 {
		pairs = append(pairs, [2]string{"stalled", strconv.Itoa(job.StalledCount)})
	}
	if job.LastError != "" {
		pairs = append(pairs, [2]string{"last error", job.LastError})
	}

	var t ticket.Ticket
	if err := job.Decode(&t); err == nil && t.ID != "" {
		pairs = append(pairs, [2]string{"ticket", t.ID})
	}
	if len(job.Result) > 0 {
		var r ticket.ProcessingResult
		if err := json.Unmarshal(job.Result, &r); err == nil {
			pairs = append(pairs,
				[2]string{"auto_resolve", strconv.FormatBool(r.AutoResolve)},
				[2]string{"confidence", strconv.FormatFloat(r.Confidence, 'f', 2, 64)},
			)
		}
	}
	return pairs
}
