package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/config"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/database"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/logger"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Budget allocation and expense approval ledger",
	Long:          "Serves the budget ledger HTTP API and manages its schema.",
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default ./configs/config.yaml)")
}

// bootstrap loads config and opens the logger and database shared by every
// command.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	appLogger, err := logger.NewLogger(cfg.Server.Mode)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.Open(database.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		LogLevel:     cfg.Database.LogLevel,
	}, appLogger)
	if err != nil {
		_ = appLogger.Sync()
		return nil, nil, nil, err
	}

	return cfg, appLogger, db, nil
}
