package settings

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "history",
		Short:       "List saved settings snapshots (sqlite backend)",
		Annotations: map[string]string{format.OperationAnnotation: "list settings history"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bind.Config(cmd)
			if err != nil {
				return err
			}
			if cfg.Settings.Backend != "sqlite" {
				return fmt.Errorf("%w: history needs --settings.backend sqlite, have %s", bind.ErrInvalidInput, cfg.Settings.Backend)
			}

			p, err := settings.OpenSQLitePersister(cmd.Context(), cfg.Settings.Path)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			records, err := p.History(cmd.Context())
			if err != nil {
				return err
			}

			f := format.FromCommand(cmd)
			if f.IsStructured() {
				if records == nil {
					records = []settings.Record{}
				}
				return f.PrintStructured(records)
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.SchemaVersion, r.SavedAt.Format(time.RFC3339)})
			}
			return f.PrintTable([]string{"ID", "Schema", "Saved"}, rows)
		},
	}
}
