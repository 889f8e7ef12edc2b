package commands

import (
	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/logging"
	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/server/deps"
)

// newProcessCommand creates the 'deskpilot process' command, which runs one
// ticket through the pipeline in this process, without a queue.
func newProcessCommand() *cobra.Command {
	var tf ticketFlags

	cmd := &cobra.Command{
		Use:     "process",
		Short:   "Triage one ticket and print the decision",
		GroupID: "triage",
		Long: `Run a ticket through classification, knowledge search, reply drafting and
the auto-resolution gate, using the current runtime settings.

The ticket is read from --file (JSON or YAML, - for stdin); individual flags
override fields of the file or build a ticket on their own.`,
		Example: `  deskpilot process --file ticket.yaml
  deskpilot process --id T-42 --subject "Password reset" --body "I forgot my password" --priority low
  cat ticket.json | deskpilot process -f - -o json`,
		Annotations: map[string]string{format.OperationAnnotation: "process ticket"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.ticket(cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := bind.Config(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, closeStore, err := deps.OpenSettings(ctx, cfg.Settings, logging.Component("settings"))
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			defer store.Close()

			set, err := deps.OpenEngines(cfg.Knowledge)
			if err != nil {
				return err
			}

			orch, err := pipeline.New(set.Collaborators(), store, pipeline.WithLogger(logging.Component("pipeline")))
			if err != nil {
				return err
			}

			result, err := orch.ProcessTicket(ctx, t)
			if err != nil {
				return err
			}
			return printResult(format.FromCommand(cmd), result)
		},
	}

	tf.bind(cmd.Flags())
	return cmd
}
