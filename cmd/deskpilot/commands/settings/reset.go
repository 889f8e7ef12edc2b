package settings

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
)

func newResetCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:         "reset",
		Short:       "Restore the built-in settings",
		Annotations: map[string]string{format.OperationAnnotation: "reset settings"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("%w: reset replaces every setting, pass --yes to confirm", bind.ErrInvalidInput)
			}

			store, release, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer release()

			snap, err := store.ResetToDefaults(cmd.Context())
			if err != nil {
				return err
			}

			f := format.FromCommand(cmd)
			if f.IsStructured() {
				return f.PrintStructured(map[string]any{"success": true, "revision": snap.Revision})
			}
			return f.PrintSuccessSummary("reset settings to defaults at revision", strconv.FormatInt(snap.Revision, 10))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")

	return cmd
}
