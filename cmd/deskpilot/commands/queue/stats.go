package queue

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/queue"
)

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [queue...]",
		Short: "Show job counts per state",
		Example: `  deskpilot queue stats --broker.driver redis
  deskpilot queue stats tickets vip -o json`,
		Annotations: map[string]string{format.OperationAnnotation: "show queue stats"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, names, err := openSession(cmd, args...)
			if err != nil {
				return err
			}
			defer s.close()

			all := make([]queue.Stats, 0, len(names))
			for _, name := range names {
				st, err := s.scheduler.Stats(cmd.Context(), name)
				if err != nil {
					return err
				}
				all = append(all, st)
			}

			f := format.FromCommand(cmd)
			if f.IsStructured() {
				return f.PrintStructured(all)
			}

			rows := make([][]string, 0, len(all))
			for _, st := range all {
				rows = append(rows, []string{
					st.Queue,
					strconv.FormatInt(st.Counts.Waiting, 10),
					strconv.FormatInt(st.Counts.Delayed, 10),
					strconv.FormatInt(st.Counts.Active, 10),
					strconv.FormatInt(st.Counts.Completed, 10),
					strconv.FormatInt(st.Counts.Failed, 10),
				})
			}
			return f.PrintTable([]string{"Queue", "Waiting", "Delayed", "Active", "Completed", "Failed"}, rows)
		},
	}
}
