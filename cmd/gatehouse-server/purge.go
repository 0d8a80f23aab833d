package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/db"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/service"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store/sqlite"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// maintenanceActor is recorded in the audit log for CLI purges.
var maintenanceActor = types.Actor{ID: "cli:purge-denied", Role: types.RoleSocietyAdmin}

func newPurgeDeniedCmd(configPath *string) *cobra.Command {
	var society string

	cmd := &cobra.Command{
		Use:   "purge-denied",
		Short: "Delete a society's denied visitor requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			society = strings.TrimSpace(society)
			if society == "" {
				return errors.New("--society is required")
			}

			_, logger, sqlDB, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer sqlDB.Close()

			writer := db.NewWorker(sqlDB)
			defer writer.Close()

			// No notifier: nobody is subscribed to a one-shot process.
			engine := service.NewEngine(
				sqlite.NewAccessRequestStore(sqlDB, writer),
				sqlite.NewDirectory(sqlDB),
				nil, logger, service.EngineConfig{},
			)
			n, err := engine.PurgeDenied(cmd.Context(), maintenanceActor, society)
			if err != nil {
				return err
			}
			logger.Info("purge complete", zap.String("society_id", society), zap.Int64("deleted", n))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d denied request(s) from %s\n", n, society)
			return nil
		},
	}
	cmd.Flags().StringVar(&society, "society", "", "society id to purge")
	return cmd
}
