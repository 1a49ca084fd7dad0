package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"formbuilder/internal/dashboard"
	"formbuilder/internal/store"
)

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage templates",
	}
	cmd.AddCommand(
		newTemplatesListCmd(a),
		newTemplatesCreateCmd(a),
		newTemplatesDeleteCmd(a),
	)
	return cmd
}

func newTemplatesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(_ *store.Store, d *dashboard.Dashboard) error {
				templates, err := d.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSECTIONS\tFIELDS\tCREATED")
				for _, t := range templates {
					fields := 0
					for _, s := range t.Sections {
						fields += len(s.Fields)
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", t.ID, t.Name, len(t.Sections), fields, t.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}

func newTemplatesCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create an empty template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(_ *store.Store, d *dashboard.Dashboard) error {
				t, err := d.Create(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", t.ID, t.Name)
				return nil
			})
		},
	}
}

func newTemplatesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(_ *store.Store, d *dashboard.Dashboard) error {
				if err := d.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
