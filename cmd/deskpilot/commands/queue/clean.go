package queue

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
)

func newCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "clean <queue>",
		Short:       "Remove finished jobs older than the grace period",
		Example:     `  deskpilot queue clean tickets --grace 24h --broker.driver redis`,
		Annotations: map[string]string{format.OperationAnnotation: "clean queue"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bind.BindQueueCleanOptions(cmd, args)
			if err != nil {
				return err
			}
			s, _, err := openSession(cmd, opts.Queue)
			if err != nil {
				return err
			}
			defer s.close()

			removed, err := s.scheduler.Clean(cmd.Context(), opts.Queue, opts.Grace)
			if err != nil {
				return err
			}

			f := format.FromCommand(cmd)
			if f.IsStructured() {
				return f.PrintStructured(map[string]any{
					"queue":   opts.Queue,
					"removed": removed,
				})
			}
			return f.PrintSuccessSummary("cleaned", fmt.Sprintf("%d finished jobs from %s", removed, opts.Queue))
		},
	}

	cmd.Flags().Duration("grace", time.Hour, "Keep jobs that finished within this period")

	return cmd
}
