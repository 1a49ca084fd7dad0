package builder

import (
	"context"
	"fmt"
	"log/slog"

	"formbuilder/internal/form"
)

// DragPayload is what a palette entry carries while it is being dragged.
type DragPayload struct {
	Type      string         `json:"type"`
	FieldType form.FieldType `json:"fieldType"`
	Label     string         `json:"label"`
}

// DragStart holds payload as the active drag for a template. Only palette payloads with a
// known field type are accepted.
func (b *Builder) DragStart(templateID string, payload DragPayload) error {
	if payload.Type != form.PaletteItemType {
		return fmt.Errorf("unsupported drag source %q", payload.Type)
	}
	if !payload.FieldType.Valid() {
		return fmt.Errorf("%w: %q", form.ErrUnknownFieldType, string(payload.FieldType))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drags[templateID] = form.PaletteItem{FieldType: payload.FieldType, Label: payload.Label}
	return nil
}

// Active returns the payload being dragged over a template, for the drag overlay.
func (b *Builder) Active(templateID string) (DragPayload, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.drags[templateID]
	if !ok {
		return DragPayload{}, false
	}
	return DragPayload{Type: form.PaletteItemType, FieldType: item.FieldType, Label: item.Label}, true
}

// DragEnd finishes a drag. When overID names a drop target and a payload is active, the
// payload's field type is dropped onto that section. The active payload is cleared whether
// or not a drop happened. dropped is false when nothing was dropped.
func (b *Builder) DragEnd(ctx context.Context, templateID, overID string) (t form.Template, f form.Field, dropped bool, err error) {
	b.mu.Lock()
	item, ok := b.drags[templateID]
	delete(b.drags, templateID)
	b.mu.Unlock()

	if !ok || overID == "" {
		b.logger.Debug("drag ended without drop",
			slog.String("template_id", templateID),
			slog.Bool("active", ok),
		)
		return form.Template{}, form.Field{}, false, nil
	}

	t, f, err = b.DropField(ctx, templateID, overID, item.FieldType)
	if err != nil {
		return form.Template{}, form.Field{}, false, err
	}
	return t, f, true, nil
}
