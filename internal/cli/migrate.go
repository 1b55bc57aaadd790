package cli

import (
	"context"

	"clickerexam/internal/app"
	"clickerexam/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfigFile(*configPath)
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), cfg)
		},
	}
}

func runMigrations(ctx context.Context, cfg app.Config) error {
	return db.Migrate(ctx, cfg.DBDSN)
}
