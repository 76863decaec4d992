package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerlane/invoicer/internal/app"
	"github.com/ledgerlane/invoicer/internal/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(store.DirectionUp), string(store.DirectionDown)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := ""
			if len(args) == 1 {
				direction = args[0]
			}
			dir, err := store.ParseDirection(direction)
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			switch cfg.StoreDriver {
			case store.DriverPostgres:
				err = store.MigratePostgres(cfg.PGDSN, dir)
			case store.DriverSQLite:
				err = store.MigrateSQLite(cfg.SQLitePath, dir)
			default:
				return fmt.Errorf("the %s store has no migrations", cfg.StoreDriver)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s applied (%s)\n", dir, cfg.StoreDriver)
			return nil
		},
	}
}
