package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/adapter/repo"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/api"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/guard"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/service"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/config"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/database"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/lock"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/server"
)

var flagAutoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagAutoMigrate, "migrate", false, "Run migrations before serving")
	rootCmd.Flags().BoolVar(&flagAutoMigrate, "migrate", false, "Run migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, appLogger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()

	if flagAutoMigrate || cfg.Database.Driver == "sqlite" {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locks, closeLocks, err := newLockManager(ctx, cfg.Lock, appLogger)
	if err != nil {
		return err
	}
	defer closeLocks()

	// -- Ledger Module --
	g := guard.New(locks, guard.Config{
		Timeout:     cfg.Lock.Timeout,
		MaxAttempts: cfg.Lock.MaxAttempts,
		RetryBase:   cfg.Lock.RetryBase,
	}, appLogger.Named("guard"))

	ledgerSvc := service.NewLedgerService(
		db,
		repo.NewBudgetRepo(),
		repo.NewBudgetItemRepo(),
		repo.NewExpenseRepo(),
		g,
		service.NewStaticApprovalPolicy(cfg.Approval.Approvers),
		appLogger.Named("ledger"),
	)
	ledgerHandler := api.NewLedgerHandler(ledgerSvc)

	srv := server.NewServer(appLogger, server.Options{
		Port:        cfg.Server.Port,
		Mode:        cfg.Server.Mode,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, ledgerHandler)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Error("server stopped", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	appLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// newLockManager builds the guard's lock backend. The returned func releases
// backend resources.
func newLockManager(ctx context.Context, cfg config.LockConfig, logger *zap.Logger) (lock.Manager, func(), error) {
	if cfg.Backend != "redis" {
		logger.Info("allocation guard uses in-process locks")
		return lock.NewLocalManager(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	opts := lock.DefaultRedisOptions()
	opts.Expiry = cfg.Expiry

	m, err := lock.NewRedisManager(ctx, client, opts, logger.Named("lock"))
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis lock backend: %w", err)
	}

	logger.Info("allocation guard uses redis locks", zap.String("addr", cfg.RedisAddr))
	return m, func() { _ = client.Close() }, nil
}
