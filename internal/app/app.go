// Package app wires configuration, storage and services into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"thinkfirst/internal/badges"
	"thinkfirst/internal/cache"
	"thinkfirst/internal/clock"
	"thinkfirst/internal/config"
	"thinkfirst/internal/database"
	"thinkfirst/internal/evaluator"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/notify"
	"thinkfirst/internal/service"
	"thinkfirst/migrations"
)

// App holds the shared dependencies of the server and the admin CLI
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *database.DB
	Cache    cache.Store
	Clock    clock.Clock
	Boundary clock.Boundary

	Streaks  *service.StreakService
	Freezes  *service.FreezeService
	Badges   *service.BadgeService
	Learning *service.LearningService
	Accounts *service.AccountService
	Backup   *service.BackupService
}

// New opens the database, runs migrations and builds every service
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	for _, w := range cfg.Warnings {
		logger.Warn("Configuration warning", zap.String("detail", w))
	}

	boundary, err := clock.LoadBoundary(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Database connection established", zap.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(ctx, migrations.FS, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Provider = cfg.CacheProvider
	cacheCfg.RedisURL = cfg.RedisURL
	if cfg.CacheTTL > 0 {
		cacheCfg.TTL = cfg.CacheTTL
	}
	store, err := cache.NewStore(cacheCfg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	notifier, err := notify.NewEmailNotifier(ctx, notify.Config{
		AWSRegion:  cfg.AWSRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppBaseURL,
		Debug:      cfg.EmailDebug,
	}, logger)
	if err != nil {
		store.Close()
		db.Close()
		return nil, err
	}

	evalClient := evaluator.New(evaluator.Config{
		APIKey:     cfg.EvaluatorAPIKey,
		BaseURL:    cfg.EvaluatorBaseURL,
		Model:      cfg.EvaluatorModel,
		Timeout:    cfg.EvaluatorTimeout,
		MaxRetries: cfg.EvaluatorMaxRetries,
	}, logger)
	if !evalClient.Configured() {
		logger.Warn("EVALUATOR_API_KEY not set; attempts will be rejected until it is configured")
	}

	clk := clock.System{}
	snapshots := cache.NewSnapshots(store, cacheCfg.TTL, logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Cache:    store,
		Clock:    clk,
		Boundary: boundary,
	}
	a.Freezes = service.NewFreezeService(db, freeze.NewGrantPolicy(boundary, cfg.FamilyPoolGrant), clk, logger)
	a.Streaks = service.NewStreakService(db, boundary, clk, snapshots, logger)
	a.Badges = service.NewBadgeService(db, badges.NewEvaluator(badges.Default(), boundary), clk, snapshots, logger)
	a.Accounts = service.NewAccountService(db, a.Freezes, logger)
	a.Backup = service.NewBackupService(db, clk, logger)
	a.Learning = service.NewLearningService(service.LearningDeps{
		DB:        db,
		Evaluator: evalClient,
		Streaks:   a.Streaks,
		Freezes:   a.Freezes,
		Badges:    a.Badges,
		Notifier:  notifier,
		Boundary:  boundary,
		Clock:     clk,
		Snapshots: snapshots,
		Logger:    logger,
	})
	return a, nil
}

// Close releases the cache and database
func (a *App) Close() error {
	return errors.Join(a.Cache.Close(), a.DB.Close())
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server
const ShutdownTimeout = 10 * time.Second
