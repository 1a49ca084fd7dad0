// Package bootstrap holds the process wiring shared by the api server and the admin CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"formbuilder/internal/config"
	"formbuilder/internal/storage"
	"formbuilder/internal/store"
)

// NewLogger builds the process logger in the configured format.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	return slog.New(slog.NewTextHandler(w, nil))
}

// Runtime is the opened infrastructure. Close releases it in reverse order.
type Runtime struct {
	Redis  redis.UniversalClient
	Store  *store.Store
	closer []func() error
}

func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closer) - 1; i >= 0; i-- {
		if err := r.closer[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects redis when any component needs it and opens the configured storage backend.
// Redis is nil when it is not required.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	if cfg.RedisRequired() {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		rt.Redis = client
		rt.closer = append(rt.closer, client.Close)
		logger.Info("redis connection ready", slog.String("addr", cfg.Redis.Addr()))
	}

	backend, closeBackend, err := storage.Open(cfg, rt.Redis)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	rt.closer = append(rt.closer, closeBackend)
	rt.Store = store.New(backend)
	logger.Info("storage backend ready", slog.String("backend", cfg.Storage.Backend))

	return rt, nil
}
