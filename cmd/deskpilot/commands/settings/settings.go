// Package settings holds the 'deskpilot settings' commands, which read and
// change the runtime settings a running server picks up without a restart.
package settings

import (
	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/pkg/logging"
	"github.com/deskpilot/deskpilot/pkg/server/deps"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

// NewCommand returns the 'deskpilot settings' command group.
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "settings",
		Short: "Show and change runtime settings",
		Long: `Show and change the runtime settings: auto-resolution policy, classification
and knowledge thresholds, queue tuning and integration flags.

Changes are validated as a whole before they are saved. A server using the
same file backend reloads them on its own; send SIGHUP otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	command.AddCommand(newShowCommand())
	command.AddCommand(newGetCommand())
	command.AddCommand(newSetCommand())
	command.AddCommand(newResetCommand())
	command.AddCommand(newHistoryCommand())

	return command
}

// openStore loads the settings store of the configured backend. The returned
// func releases it.
func openStore(cmd *cobra.Command) (*settings.Store, func(), error) {
	cfg, err := bind.Config(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := deps.OpenSettings(cmd.Context(), cfg.Settings, logging.Component("settings"))
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		store.Close()
		_ = closeStore()
	}, nil
}
