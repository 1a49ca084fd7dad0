package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"formbuilder/internal/dashboard"
	"formbuilder/internal/form"
	"formbuilder/internal/store"
)

func newAnswersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answers",
		Short: "Inspect submitted answers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <templateId>",
		Short: "Print the last submitted answer set of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *store.Store, _ *dashboard.Dashboard) error {
				answers, ok, err := s.LoadAnswers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no answers submitted for %s", args[0])
				}
				return writeJSON(cmd, answers)
			})
		},
	})
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the whole template collection as JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *store.Store, _ *dashboard.Dashboard) error {
				templates, err := s.Load(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, templates)
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the template collection with a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := readTemplates(args[0])
			if err != nil {
				return err
			}
			if len(templates) > a.maxTemplates {
				return fmt.Errorf("%w: file has %d templates, limit is %d", form.ErrTemplateLimit, len(templates), a.maxTemplates)
			}
			return a.withStore(cmd, func(s *store.Store, _ *dashboard.Dashboard) error {
				if err := s.Save(cmd.Context(), templates); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d templates\n", len(templates))
				return nil
			})
		},
	}
}

// readTemplates decodes a collection and normalizes every field. YAML input is converted to
// JSON first so both formats share the JSON field names.
func readTemplates(path string) ([]form.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
	}

	var templates []form.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for ti := range templates {
		for si := range templates[ti].Sections {
			fields := templates[ti].Sections[si].Fields
			for fi := range fields {
				if !fields[fi].Type.Valid() {
					return nil, fmt.Errorf("template %s field %s: %w", templates[ti].ID, fields[fi].ID, form.ErrUnknownFieldType)
				}
				fields[fi] = fields[fi].Normalize()
			}
		}
	}
	return templates, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
