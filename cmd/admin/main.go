package main

import (
	"context"
	"log/slog"
	"os"

	"formbuilder/internal/bootstrap"
	"formbuilder/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := bootstrap.NewLogger(cfg, os.Stderr)

	a := &app{
		logger:       logger,
		maxTemplates: cfg.Limits.MaxTemplates,
		open: func(ctx context.Context) (*bootstrap.Runtime, error) {
			return bootstrap.Open(ctx, cfg, logger)
		},
	}

	root := newRootCmd(a)
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
