package cmd

import (
	"github.com/spf13/cobra"

	"github.com/minutedapp/minuted/pkg/db"
	"github.com/minutedapp/minuted/pkg/logging"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Apply the database schema. Safe to run repeatedly; existing tables and
indexes are left untouched.

Examples:
  minuted migrate
  minuted migrate --config prod.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			if err := db.EnsureSchema(ctx, a.pool); err != nil {
				return err
			}
			a.logger.Info("Schema is up to date", logging.F("database", a.cfg.Database.Name))
			return nil
		},
	}
}
