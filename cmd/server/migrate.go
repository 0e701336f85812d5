package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sakif/tour-tracker/internal/config"
	"github.com/sakif/tour-tracker/internal/repository/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run all pending database migrations against the PostgreSQL database.
SQLite databases are migrated when they are opened.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	if cfg.DB.Driver != config.DriverPostgres {
		cmd.Println("SQLite migrates on open, nothing to do")
		return nil
	}

	cmd.Println("Running migrations...")
	v, err := postgres.Migrate(cfg.DB.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Printf("Migrations completed successfully (version %d)\n", v)
	return nil
}
