package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"formbuilder/internal/bootstrap"
	"formbuilder/internal/dashboard"
	"formbuilder/internal/notify"
	"formbuilder/internal/store"
)

// app carries what every subcommand needs. open is deferred until a command runs so that
// --help works without a reachable backend.
type app struct {
	logger       *slog.Logger
	maxTemplates int
	open         func(ctx context.Context) (*bootstrap.Runtime, error)
}

// withStore opens the backend, runs fn and closes the backend again.
func (a *app) withStore(cmd *cobra.Command, fn func(s *store.Store, d *dashboard.Dashboard) error) error {
	rt, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			a.logger.Warn("close backend failed", slog.Any("error", err))
		}
	}()
	d := dashboard.New(rt.Store, notify.Log{Logger: a.logger}, a.logger, dashboard.WithMaxTemplates(a.maxTemplates))
	return fn(rt.Store, d)
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "formbuilder-admin <command> [flags]",
		Short:             "Operate on stored form templates and answers",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	cmd.AddCommand(
		newTemplatesCmd(a),
		newAnswersCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return cmd
}
