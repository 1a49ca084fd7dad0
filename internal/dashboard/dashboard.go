// Package dashboard lists, creates and deletes templates.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"formbuilder/internal/form"
	"formbuilder/internal/notify"
	"formbuilder/internal/store"
)

// DefaultMaxTemplates caps the collection size.
const DefaultMaxTemplates = 5

// Dashboard is the entry point of the editor: the template list.
type Dashboard struct {
	store        *store.Store
	notifier     notify.Notifier
	logger       *slog.Logger
	maxTemplates int
	now          func() time.Time
}

type Option func(*Dashboard)

// WithMaxTemplates overrides DefaultMaxTemplates.
func WithMaxTemplates(n int) Option {
	return func(d *Dashboard) {
		if n > 0 {
			d.maxTemplates = n
		}
	}
}

// WithClock overrides time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

func New(s *store.Store, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dashboard{
		store:        s,
		notifier:     notifier,
		logger:       logger,
		maxTemplates: DefaultMaxTemplates,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxTemplates reports the configured cap.
func (d *Dashboard) MaxTemplates() int { return d.maxTemplates }

// List returns the templates in insertion order.
func (d *Dashboard) List(ctx context.Context) ([]form.Template, error) {
	return d.store.Load(ctx)
}

// Get returns a single template.
func (d *Dashboard) Get(ctx context.Context, id string) (form.Template, error) {
	return d.store.Get(ctx, id)
}

// Create appends an empty template. When the collection is full nothing changes, the user
// is alerted and ErrTemplateLimit is returned.
func (d *Dashboard) Create(ctx context.Context) (form.Template, error) {
	var created form.Template
	err := d.store.Update(ctx, func(templates []form.Template) ([]form.Template, error) {
		if len(templates) >= d.maxTemplates {
			return nil, form.ErrTemplateLimit
		}
		created = form.NewTemplate(len(templates)+1, d.now())
		return append(templates, created), nil
	})
	if err != nil {
		if errors.Is(err, form.ErrTemplateLimit) {
			d.logger.Warn("template limit reached", slog.Int("max_templates", d.maxTemplates))
			notify.Send(ctx, d.notifier, d.logger, notify.Notification{
				Level:   notify.LevelAlert,
				Message: fmt.Sprintf("You can only create up to %d templates.", d.maxTemplates),
			})
		}
		return form.Template{}, err
	}

	d.logger.Info("template created",
		slog.String("template_id", created.ID),
		slog.String("name", created.Name),
	)
	return created, nil
}

// Delete removes the template with id. Deleting an unknown id is a no-op.
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	removed := false
	err := d.store.Update(ctx, func(templates []form.Template) ([]form.Template, error) {
		kept := make([]form.Template, 0, len(templates))
		for _, t := range templates {
			if t.ID == id {
				removed = true
				continue
			}
			kept = append(kept, t)
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	if removed {
		d.logger.Info("template deleted", slog.String("template_id", id))
	}
	return nil
}

// BuilderPath is the route of the builder view for a template.
func BuilderPath(id string) string { return "/builder/" + id }

// FormPath is the route of the fill-in view for a template.
func FormPath(id string) string { return "/form/" + id }

// ListPath is the route of the template list.
const ListPath = "/"

// Open returns where to navigate to edit a template. It does not touch the store.
func (d *Dashboard) Open(id string) string { return BuilderPath(id) }

// OpenRuntime returns where to navigate to fill in a template. It does not touch the store.
func (d *Dashboard) OpenRuntime(id string) string { return FormPath(id) }
