// Package store persists the template collection, template drafts and submitted
// answer sets as whole JSON snapshots on a key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"formbuilder/internal/form"
	"formbuilder/internal/storage"
)

// CollectionKey holds the JSON array of every template.
const CollectionKey = "form_templates"

// DraftKey is where "save draft" writes a single template.
func DraftKey(templateID string) string {
	return "template-" + templateID
}

// AnswersKey is where a submitted answer set is written.
func AnswersKey(templateID string) string {
	return "form_data_" + templateID
}

// Store reads and writes the template collection as one snapshot.
// Last write wins; there is no versioning.
type Store struct {
	backend storage.Backend
	mu      sync.Mutex
}

func New(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Load returns the stored collection in insertion order. A missing snapshot is an empty collection.
func (s *Store) Load(ctx context.Context) ([]form.Template, error) {
	data, err := s.backend.Get(ctx, CollectionKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []form.Template{}, nil
		}
		return nil, fmt.Errorf("load templates: %w", err)
	}
	if len(data) == 0 {
		return []form.Template{}, nil
	}
	var templates []form.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if templates == nil {
		templates = []form.Template{}
	}
	return templates, nil
}

// Save overwrites the stored collection.
func (s *Store) Save(ctx context.Context, templates []form.Template) error {
	if templates == nil {
		templates = []form.Template{}
	}
	data, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	if err := s.backend.Set(ctx, CollectionKey, data); err != nil {
		return fmt.Errorf("save templates: %w", err)
	}
	return nil
}

// Update runs fn on the loaded collection and saves what it returns. Calls are serialized so a
// read-modify-write is never interleaved with another from this process. If fn returns an error
// nothing is written.
func (s *Store) Update(ctx context.Context, fn func([]form.Template) ([]form.Template, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates, err := s.Load(ctx)
	if err != nil {
		return err
	}
	updated, err := fn(templates)
	if err != nil {
		return err
	}
	return s.Save(ctx, updated)
}

// UpdateTemplate applies fn to the template with id and writes the whole collection back.
func (s *Store) UpdateTemplate(ctx context.Context, id string, fn func(*form.Template) error) (form.Template, error) {
	var result form.Template
	err := s.Update(ctx, func(templates []form.Template) ([]form.Template, error) {
		i := form.FindTemplate(templates, id)
		if i < 0 {
			return nil, form.ErrTemplateNotFound
		}
		t := templates[i].Clone()
		if err := fn(&t); err != nil {
			return nil, err
		}
		templates[i] = t
		result = t
		return templates, nil
	})
	if err != nil {
		return form.Template{}, err
	}
	return result, nil
}

// Get returns the template with id.
func (s *Store) Get(ctx context.Context, id string) (form.Template, error) {
	templates, err := s.Load(ctx)
	if err != nil {
		return form.Template{}, err
	}
	i := form.FindTemplate(templates, id)
	if i < 0 {
		return form.Template{}, form.ErrTemplateNotFound
	}
	return templates[i], nil
}

// SaveDraft writes t under its own draft key.
func (s *Store) SaveDraft(ctx context.Context, t form.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.backend.Set(ctx, DraftKey(t.ID), data); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the last draft saved for templateID.
func (s *Store) LoadDraft(ctx context.Context, templateID string) (form.Template, error) {
	data, err := s.backend.Get(ctx, DraftKey(templateID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return form.Template{}, form.ErrTemplateNotFound
		}
		return form.Template{}, fmt.Errorf("load draft: %w", err)
	}
	var t form.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return form.Template{}, fmt.Errorf("decode draft: %w", err)
	}
	return t, nil
}

// SaveAnswers writes a submitted answer set verbatim.
func (s *Store) SaveAnswers(ctx context.Context, templateID string, answers form.Answers) error {
	if answers == nil {
		answers = form.Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	if err := s.backend.Set(ctx, AnswersKey(templateID), data); err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// LoadAnswers returns the last submitted answer set, or nil and ok=false when none exists.
func (s *Store) LoadAnswers(ctx context.Context, templateID string) (form.Answers, bool, error) {
	data, err := s.backend.Get(ctx, AnswersKey(templateID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load answers: %w", err)
	}
	var answers form.Answers
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, false, fmt.Errorf("decode answers: %w", err)
	}
	return answers, true, nil
}
