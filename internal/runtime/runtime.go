// Package runtime runs fill-in sessions: it holds the answers a user gives for a template,
// uploads picked files, checks required fields and persists the answer set on submit.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"formbuilder/internal/form"
	"formbuilder/internal/metrics"
	"formbuilder/internal/notify"
	"formbuilder/internal/store"
	"formbuilder/internal/upload"
)

// Controller keeps the open sessions in memory.
type Controller struct {
	store    *store.Store
	gateway  upload.Gateway
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
	ttl      time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

type Option func(*Controller)

// WithClock overrides time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// DefaultSessionTTL is how long a session may stay unused before Reap drops it.
const DefaultSessionTTL = 30 * time.Minute

// WithSessionTTL overrides DefaultSessionTTL. Zero keeps sessions until Close.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *Controller) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

func New(s *store.Store, gateway upload.Gateway, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		store:    s,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		ttl:      DefaultSessionTTL,
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) notify(ctx context.Context, s *Session, level notify.Level, msg string) {
	notify.Send(ctx, c.notifier, c.logger, notify.Notification{
		Level:      level,
		Message:    msg,
		TemplateID: s.TemplateID,
		SessionID:  s.ID,
	})
}

func (c *Controller) session(id string) (*Session, error) {
	c.mu.RLock()
	s, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(c.now().UTC())
	return s, nil
}

// Start opens a session with an empty answer set. An unknown template is ErrTemplateNotFound.
func (c *Controller) Start(ctx context.Context, templateID string) (Snapshot, error) {
	if _, err := c.store.Get(ctx, templateID); err != nil {
		return Snapshot{}, err
	}
	s := newSession(form.NewID(), templateID, c.now().UTC())

	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()
	metrics.SessionOpened()

	c.logger.Info("form session started",
		slog.String("session_id", s.ID),
		slog.String("template_id", templateID),
	)
	return s.snapshot(), nil
}

// Session returns the current state of a session.
func (c *Controller) Session(id string) (Snapshot, error) {
	s, err := c.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

// Close forgets a session. Closing an unknown session is a no-op.
func (c *Controller) Close(id string) {
	c.mu.Lock()
	_, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if ok {
		metrics.SessionClosed()
		c.logger.Info("form session closed", slog.String("session_id", id))
	}
}

// Len returns the number of open sessions.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Reap drops every session that has been idle longer than the TTL and returns how many were
// dropped. Sessions with a pending upload are kept.
func (c *Controller) Reap() int {
	if c.ttl <= 0 {
		return 0
	}
	cutoff := c.now().UTC().Add(-c.ttl)

	c.mu.Lock()
	var expired []string
	for id, s := range c.sessions {
		if s.idleSince(cutoff) {
			expired = append(expired, id)
			delete(c.sessions, id)
		}
	}
	c.mu.Unlock()

	for _, id := range expired {
		metrics.SessionClosed()
		c.logger.Info("form session expired", slog.String("session_id", id))
	}
	return len(expired)
}

// RunReaper calls Reap on a fixed interval until ctx is done. It returns at once when the
// TTL is zero.
func (c *Controller) RunReaper(ctx context.Context) {
	if c.ttl <= 0 {
		return
	}
	interval := c.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Reap()
		}
	}
}

// Template loads the template a session is filling in.
func (c *Controller) Template(ctx context.Context, id string) (form.Template, error) {
	s, err := c.session(id)
	if err != nil {
		return form.Template{}, err
	}
	return c.store.Get(ctx, s.TemplateID)
}

// SetAnswer overwrites the answer for fieldID. The zero Value clears it.
func (c *Controller) SetAnswer(id, fieldID string, v form.Value) error {
	s, err := c.session(id)
	if err != nil {
		return err
	}
	s.set(fieldID, v)
	return nil
}

// Render describes the fillable form of a session with its current answers.
func (c *Controller) Render(ctx context.Context, id string) ([]form.RenderedSection, error) {
	s, err := c.session(id)
	if err != nil {
		return nil, err
	}
	t, err := c.store.Get(ctx, s.TemplateID)
	if err != nil {
		return nil, err
	}
	return form.Render(t, s.snapshot().Answers, form.ModeFill)
}

// Validate returns a *ValidationError for the first required field, in section then field
// order, whose answer is absent or the empty string. Later fields are not checked.
func Validate(t form.Template, answers form.Answers) error {
	for _, sec := range t.Sections {
		for _, f := range sec.Fields {
			if f.Required && answers[f.ID].Blank() {
				return &ValidationError{FieldID: f.ID, Label: f.Label}
			}
		}
	}
	return nil
}

// Submit validates the answers and persists them under the template's answer key. A failed
// check alerts once with the first offending label and changes nothing.
func (c *Controller) Submit(ctx context.Context, id string) (Snapshot, error) {
	s, err := c.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	t, err := c.store.Get(ctx, s.TemplateID)
	if err != nil {
		return Snapshot{}, err
	}

	answers := s.snapshot().Answers
	if err := Validate(t, answers); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			metrics.ObserveSubmission(false)
			c.logger.Info("form submission rejected",
				slog.String("session_id", s.ID),
				slog.String("field_id", verr.FieldID),
			)
			c.notify(ctx, s, notify.LevelAlert, verr.Error())
		}
		return Snapshot{}, err
	}

	if err := c.store.SaveAnswers(ctx, t.ID, answers); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	s.submitted = true
	s.mu.Unlock()
	metrics.ObserveSubmission(true)

	c.logger.Info("form submitted",
		slog.String("session_id", s.ID),
		slog.String("template_id", t.ID),
		slog.Int("answers", len(answers)),
	)
	return s.snapshot(), nil
}

// Restart leaves the submitted state. Answers are kept.
func (c *Controller) Restart(id string) (Snapshot, error) {
	s, err := c.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	s.submitted = false
	s.mu.Unlock()
	return s.snapshot(), nil
}

// Upload sends f through the gateway and stores the returned URL as the answer of an upload
// field. Only one upload per field may be pending. On failure the answer is left as it was
// and a single error notification is sent.
func (c *Controller) Upload(ctx context.Context, id, fieldID string, f upload.File) (string, error) {
	s, err := c.session(id)
	if err != nil {
		return "", err
	}
	t, err := c.store.Get(ctx, s.TemplateID)
	if err != nil {
		return "", err
	}
	field, ok := t.FindField(fieldID)
	if !ok {
		return "", form.ErrFieldNotFound
	}
	if field.Type != form.FieldTypeUpload {
		return "", form.ErrNotUploadField
	}
	if field.UploadType.Effective() == form.UploadImage && !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return "", fmt.Errorf("%w: %q is not an image", ErrUploadKindMismatch, f.ContentType)
	}

	if !s.begin(fieldID) {
		return "", ErrUploadInFlight
	}
	defer s.settle(fieldID)

	url, err := c.gateway.Upload(ctx, f)
	if err != nil {
		c.logger.Warn("field upload failed",
			slog.String("session_id", s.ID),
			slog.String("field_id", fieldID),
			slog.Any("error", err),
		)
		c.notify(ctx, s, notify.LevelError, "Upload failed")
		return "", err
	}

	s.set(fieldID, form.StringValue(url))
	c.notify(ctx, s, notify.LevelSuccess, "File uploaded successfully!")
	return url, nil
}
