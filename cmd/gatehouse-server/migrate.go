package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/db"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open migrates.
			cfg, logger, sqlDB, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer sqlDB.Close()

			v, err := db.Version(cmd.Context(), sqlDB)
			if err != nil {
				return err
			}
			logger.Info("database migrated", zap.String("path", cfg.DBPath), zap.Int("version", v))
			return nil
		},
	}
}
