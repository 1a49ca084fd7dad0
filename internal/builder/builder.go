// Package builder implements the template editing surface: sections, fields dropped from
// the palette, the field edit dialog and draft saving. Every mutation reads the whole
// collection, replaces the edited template and writes the collection back.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"formbuilder/internal/dashboard"
	"formbuilder/internal/form"
	"formbuilder/internal/notify"
	"formbuilder/internal/store"
)

// DefaultMaxSections caps the sections of one template.
const DefaultMaxSections = 10

type Builder struct {
	store       *store.Store
	notifier    notify.Notifier
	logger      *slog.Logger
	maxSections int

	mu    sync.Mutex
	drags map[string]form.PaletteItem
}

type Option func(*Builder)

// WithMaxSections overrides DefaultMaxSections.
func WithMaxSections(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxSections = n
		}
	}
}

func New(s *store.Store, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		store:       s,
		notifier:    notifier,
		logger:      logger,
		maxSections: DefaultMaxSections,
		drags:       map[string]form.PaletteItem{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load returns the template being edited, or ErrTemplateNotFound.
func (b *Builder) Load(ctx context.Context, templateID string) (form.Template, error) {
	return b.store.Get(ctx, templateID)
}

func (b *Builder) notify(ctx context.Context, templateID string, level notify.Level, msg string) {
	notify.Send(ctx, b.notifier, b.logger, notify.Notification{
		Level:      level,
		Message:    msg,
		TemplateID: templateID,
	})
}

// AddSection appends "Section N". The cap is checked before anything is written.
func (b *Builder) AddSection(ctx context.Context, templateID string) (form.Template, form.Section, error) {
	var added form.Section
	t, err := b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		if len(t.Sections) >= b.maxSections {
			return form.ErrSectionLimit
		}
		added = form.NewSection(len(t.Sections) + 1)
		t.Sections = append(t.Sections, added)
		return nil
	})
	if err != nil {
		if errors.Is(err, form.ErrSectionLimit) {
			b.logger.Warn("section limit reached",
				slog.String("template_id", templateID),
				slog.Int("max_sections", b.maxSections),
			)
			b.notify(ctx, templateID, notify.LevelError, fmt.Sprintf("You can only have up to %d sections.", b.maxSections))
		}
		return form.Template{}, form.Section{}, err
	}
	b.logger.Info("section added",
		slog.String("template_id", templateID),
		slog.String("section_id", added.ID),
	)
	return t, added, nil
}

// RenameSection replaces a section title in place with the raw input minus markup. Titles
// arrive on every keystroke, so empty titles and trailing spaces are kept.
func (b *Builder) RenameSection(ctx context.Context, templateID, sectionID, title string) (form.Template, error) {
	title = form.StripMarkup(title)
	return b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		i := t.SectionIndex(sectionID)
		if i < 0 {
			return form.ErrSectionNotFound
		}
		t.Sections[i].Title = title
		return nil
	})
}

// DeleteSection removes a section and every field in it.
func (b *Builder) DeleteSection(ctx context.Context, templateID, sectionID string) (form.Template, error) {
	t, err := b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		i := t.SectionIndex(sectionID)
		if i < 0 {
			return form.ErrSectionNotFound
		}
		t.Sections = append(t.Sections[:i:i], t.Sections[i+1:]...)
		return nil
	})
	if err != nil {
		return form.Template{}, err
	}
	b.logger.Info("section deleted",
		slog.String("template_id", templateID),
		slog.String("section_id", sectionID),
	)
	b.notify(ctx, templateID, notify.LevelSuccess, "Section deleted!")
	return t, nil
}

// DropField appends a new field of fieldType to a section.
func (b *Builder) DropField(ctx context.Context, templateID, sectionID string, fieldType form.FieldType) (form.Template, form.Field, error) {
	field, err := form.NewField(fieldType)
	if err != nil {
		return form.Template{}, form.Field{}, err
	}
	t, err := b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		i := t.SectionIndex(sectionID)
		if i < 0 {
			return form.ErrSectionNotFound
		}
		t.Sections[i].Fields = append(t.Sections[i].Fields, field)
		return nil
	})
	if err != nil {
		return form.Template{}, form.Field{}, err
	}
	b.logger.Info("field added",
		slog.String("template_id", templateID),
		slog.String("section_id", sectionID),
		slog.String("field_id", field.ID),
		slog.String("field_type", string(fieldType)),
	)
	b.notify(ctx, templateID, notify.LevelSuccess, "Field added!")
	return t, field, nil
}

// EditField opens the edit dialog for a field, searching every section.
func (b *Builder) EditField(ctx context.Context, templateID, fieldID string) (form.Draft, error) {
	t, err := b.store.Get(ctx, templateID)
	if err != nil {
		return form.Draft{}, err
	}
	f, ok := t.FindField(fieldID)
	if !ok {
		return form.Draft{}, form.ErrFieldNotFound
	}
	return form.NewDraft(f), nil
}

// ConfirmEdit applies a draft to its field.
func (b *Builder) ConfirmEdit(ctx context.Context, templateID string, d form.Draft) (form.Template, form.Field, error) {
	if d.Type != "" && !d.Type.Valid() {
		return form.Template{}, form.Field{}, fmt.Errorf("%w: %q", form.ErrUnknownFieldType, string(d.Type))
	}
	d.Label = form.CleanText(d.Label)
	options := make([]string, len(d.Options))
	for i, opt := range d.Options {
		options[i] = form.CleanText(opt)
	}
	d.Options = options

	var saved form.Field
	t, err := b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		current, ok := t.FindField(d.FieldID)
		if !ok {
			return form.ErrFieldNotFound
		}
		saved = d.Apply(current)
		replaceField(t, saved)
		return nil
	})
	if err != nil {
		return form.Template{}, form.Field{}, err
	}
	b.logger.Info("field updated",
		slog.String("template_id", templateID),
		slog.String("field_id", saved.ID),
	)
	b.notify(ctx, templateID, notify.LevelSuccess, "Field updated!")
	return t, saved, nil
}

// SaveField replaces the field with the same id, wherever it lives, with a normalized copy of f.
func (b *Builder) SaveField(ctx context.Context, templateID string, f form.Field) (form.Template, error) {
	if !f.Type.Valid() {
		return form.Template{}, fmt.Errorf("%w: %q", form.ErrUnknownFieldType, string(f.Type))
	}
	if f.UploadType != "" && !f.UploadType.Valid() {
		return form.Template{}, fmt.Errorf("%w: %q", form.ErrUnknownUploadKind, string(f.UploadType))
	}
	f.Label = form.CleanText(f.Label)
	f = f.Normalize()
	return b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		if _, ok := t.FindField(f.ID); !ok {
			return form.ErrFieldNotFound
		}
		replaceField(t, f)
		return nil
	})
}

func replaceField(t *form.Template, f form.Field) {
	for si := range t.Sections {
		for fi := range t.Sections[si].Fields {
			if t.Sections[si].Fields[fi].ID == f.ID {
				t.Sections[si].Fields[fi] = f
			}
		}
	}
}

// DeleteField removes a field from the given section.
func (b *Builder) DeleteField(ctx context.Context, templateID, sectionID, fieldID string) (form.Template, error) {
	t, err := b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		i := t.SectionIndex(sectionID)
		if i < 0 {
			return form.ErrSectionNotFound
		}
		fields := t.Sections[i].Fields
		kept := make([]form.Field, 0, len(fields))
		for _, f := range fields {
			if f.ID != fieldID {
				kept = append(kept, f)
			}
		}
		if len(kept) == len(fields) {
			return form.ErrFieldNotFound
		}
		t.Sections[i].Fields = kept
		return nil
	})
	if err != nil {
		return form.Template{}, err
	}
	b.logger.Info("field deleted",
		slog.String("template_id", templateID),
		slog.String("section_id", sectionID),
		slog.String("field_id", fieldID),
	)
	b.notify(ctx, templateID, notify.LevelSuccess, "Field deleted!")
	return t, nil
}

// SetUploadConstraint changes which files an upload field accepts.
func (b *Builder) SetUploadConstraint(ctx context.Context, templateID, sectionID, fieldID string, kind form.UploadKind) (form.Template, error) {
	if !kind.Valid() {
		return form.Template{}, fmt.Errorf("%w: %q", form.ErrUnknownUploadKind, string(kind))
	}
	return b.store.UpdateTemplate(ctx, templateID, func(t *form.Template) error {
		i := t.SectionIndex(sectionID)
		if i < 0 {
			return form.ErrSectionNotFound
		}
		for fi := range t.Sections[i].Fields {
			f := &t.Sections[i].Fields[fi]
			if f.ID != fieldID {
				continue
			}
			if f.Type != form.FieldTypeUpload {
				return form.ErrNotUploadField
			}
			f.UploadType = kind
			return nil
		}
		return form.ErrFieldNotFound
	})
}

// SaveDraft writes the current template under its draft key and returns the route to go
// back to, the template list.
func (b *Builder) SaveDraft(ctx context.Context, templateID string) (string, error) {
	t, err := b.store.Get(ctx, templateID)
	if err != nil {
		return "", err
	}
	if err := b.store.SaveDraft(ctx, t); err != nil {
		return "", err
	}
	b.logger.Info("template draft saved", slog.String("template_id", templateID))
	b.notify(ctx, templateID, notify.LevelSuccess, "Template saved as draft!")
	return dashboard.ListPath, nil
}

// Preview renders the builder surface of a template with disabled inputs.
func (b *Builder) Preview(ctx context.Context, templateID string) ([]form.RenderedSection, error) {
	t, err := b.store.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return form.Render(t, nil, form.ModeBuilder)
}
