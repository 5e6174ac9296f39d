package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ledger tables",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	_, appLogger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()

	if err := database.Migrate(db); err != nil {
		appLogger.Error("migration failed", zap.Error(err))
		return err
	}

	appLogger.Info("migration complete")
	return nil
}
