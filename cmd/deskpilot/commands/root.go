package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	queueCmd "github.com/deskpilot/deskpilot/cmd/deskpilot/commands/queue"
	serverCmd "github.com/deskpilot/deskpilot/cmd/deskpilot/commands/server"
	settingsCmd "github.com/deskpilot/deskpilot/cmd/deskpilot/commands/settings"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/appctx"
	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/logging"
	"github.com/deskpilot/deskpilot/pkg/server"
)

const cliExecutable = "deskpilot"

// NewCommand constructs the top-level deskpilot CLI command, wiring global
// flags and loading the bootstrap configuration every sub-command reads from
// its context.
func NewCommand() *cobra.Command {
	var (
		configFile string
		outputMode string
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Deskpilot triages support tickets",
		Long: `Deskpilot classifies inbound support tickets, matches them against a
knowledge base, drafts a reply and decides whether the reply can be sent
without a human.

Run "deskpilot server start" for the queue workers and ops endpoints, or
"deskpilot process" to triage one ticket locally.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return fmt.Errorf("%w: %v", bind.ErrInvalidInput, err)
			}

			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				if errors.Is(err, server.ErrInvalidPort) {
					return err
				}
				return server.WrapConfigLoad(err)
			}
			cfg := mgr.Get()
			if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
				return server.WrapConfigLoad(err)
			}

			ctx := appctx.WithConfig(cmd.Context(), mgr)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVarP(&outputMode, "output", "o", "text", "Output format (text, json, yaml)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Print only essential output")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "triage", Title: "Triage Commands"})
	cmd.AddGroup(&cobra.Group{ID: "ops", Title: "Operations Commands"})

	cmd.AddCommand(newProcessCommand())
	cmd.AddCommand(newEnqueueCommand())

	for _, sub := range []*cobra.Command{serverCmd.NewCommand(), queueCmd.NewCommand(), settingsCmd.NewCommand()} {
		sub.GroupID = "ops"
		cmd.AddCommand(sub)
	}
	cmd.AddCommand(newVersionCommand())

	return cmd
}
