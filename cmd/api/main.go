package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"formbuilder/internal/api"
	"formbuilder/internal/bootstrap"
	"formbuilder/internal/builder"
	"formbuilder/internal/config"
	"formbuilder/internal/dashboard"
	"formbuilder/internal/notify"
	"formbuilder/internal/runtime"
	"formbuilder/internal/upload"
)

func main() {
	cfg := config.MustLoad()

	logger := bootstrap.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api exited", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open infrastructure: %w", err)
	}
	defer func() {
		if err := infra.Close(); err != nil {
			logger.Error("close infrastructure failed", slog.Any("error", err))
		}
	}()

	notifier := notify.Multi{notify.Log{Logger: logger}}
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled && infra.Redis != nil {
		redisClient = infra.Redis
		notifier = append(notifier, notify.Redis{Client: redisClient, Channel: notify.Channel})
	}

	gateway, err := upload.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init upload gateway: %w", err)
	}

	forms := runtime.New(infra.Store, gateway, notifier, logger, runtime.WithSessionTTL(cfg.Runtime.SessionTTL))
	go forms.RunReaper(ctx)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Deps{
		Config:    cfg,
		Logger:    logger,
		Store:     infra.Store,
		Dashboard: dashboard.New(infra.Store, notifier, logger, dashboard.WithMaxTemplates(cfg.Limits.MaxTemplates)),
		Builder:   builder.New(infra.Store, notifier, logger, builder.WithMaxSections(cfg.Limits.MaxSections)),
		Runtime:   forms,
		Redis:     redisClient,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			slog.String("addr", server.Addr),
			slog.String("storage_backend", cfg.Storage.Backend),
			slog.String("upload_provider", cfg.Upload.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("api stopped")
	return nil
}
