package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sakif/tour-tracker/internal/config"
	"github.com/sakif/tour-tracker/internal/logging"
	"github.com/sakif/tour-tracker/internal/repository"
	"github.com/sakif/tour-tracker/internal/repository/postgres"
	"github.com/sakif/tour-tracker/internal/repository/sqlite"
)

const serviceName = "tour-tracker"

// NewRootCmd creates the root command. Configuration flags are persistent so
// every subcommand accepts them.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Tour tracker - concert and tour catalog API",
		Long: `Tour tracker serves accounts, profiles and a deduplicated catalog of
cities, venues, tours and concerts, filled by hand or from Ticketmaster.

Configuration is read from defaults, a YAML file (--config), the
environment (a .env file is honoured) and flags, in increasing priority.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewConsumeCmd())

	return cmd
}

// bootstrap loads the configuration and builds the root logger.
func bootstrap(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").With("operation", "load config").Wrap(err)
	}

	logger, err := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").With("operation", "set up logging").Wrap(err)
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// openStore connects the configured backend. SQLite migrates itself on open;
// Postgres is migrated first when migrate is true.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (repository.Store, error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		if migrate {
			v, err := postgres.Migrate(cfg.DB.URL)
			if err != nil {
				return nil, oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
			logger.Info("schema up to date", slog.Uint64("version", uint64(v)))
		}
		store, err := postgres.Open(ctx, cfg.DB.URL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		return store, nil

	default:
		dir := filepath.Dir(cfg.DB.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, oops.Code("DB_DIR_FAILED").With("dir", dir).Wrap(err)
		}
		store, err := sqlite.New(cfg.DB.Path)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("path", cfg.DB.Path).Wrap(err)
		}
		return store, nil
	}
}
