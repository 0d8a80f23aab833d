package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/config"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/db"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/logging"
)

func newRootCmd(version string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "gatehouse-server",
		Short:         "Visitor access lifecycle server",
		Long:          "gatehouse-server records visitor requests at the gate, routes them to residents and guards, and tracks each visit from check-in to check-out.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default ./gatehouse.yaml)")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newPurgeDeniedCmd(&configPath),
	)

	// Bare invocation serves.
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return runServe(c.Context(), configPath)
	}

	return cmd
}

// bootstrap loads config, builds the logger and opens (and migrates) the
// database. The caller closes the database and syncs the logger.
func bootstrap(ctx context.Context, configPath string) (config.Config, *zap.Logger, *sql.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		_ = logger.Sync()
		return config.Config{}, nil, nil, err
	}
	return cfg, logger, sqlDB, nil
}
