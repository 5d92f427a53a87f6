package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"thinkfirst/internal/app"
	"thinkfirst/internal/config"
	"thinkfirst/internal/handlers"
	"thinkfirst/internal/logging"
	"thinkfirst/internal/security"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "thinkfirst: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	logger.Info("Migrations completed successfully")

	admin := security.NewAdminAuth(cfg.AdminJWTSecret)
	if !admin.Enabled() {
		logger.Warn("ADMIN_JWT_SECRET not set; admin endpoints are disabled")
	}

	// Per-user limiter on the evaluate endpoint
	limiter := security.NewRateLimiter(cfg.EvaluateRateLimit, time.Minute)
	defer limiter.Stop()

	router := handlers.NewRouter(handlers.Handlers{
		Learning: handlers.NewLearningHandler(application.Learning, application.Streaks, limiter, logger),
		Badges:   handlers.NewBadgeHandler(application.Badges, logger),
		Accounts: handlers.NewAccountHandler(application.Accounts, application.Freezes, logger),
		Admin: handlers.NewAdminHandler(
			application.Backup,
			application.Freezes,
			map[string]handlers.HealthChecker{
				"database": application.DB,
				"cache":    application.Cache,
			},
			application.Clock,
			version,
			logger,
		),
		Middleware: handlers.NewMiddleware(admin, logger),
	})

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("addr", addr),
			zap.String("version", version),
			zap.String("timezone", application.Boundary.Location().String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("Server shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
