package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbuilder/internal/form"
	"formbuilder/internal/notify"
	"formbuilder/internal/storage"
	"formbuilder/internal/store"
	"formbuilder/internal/upload"
)

type fakeGateway struct {
	url     string
	err     error
	calls   int
	release chan struct{}
	started chan struct{}
}

func (g *fakeGateway) Upload(ctx context.Context, f upload.File) (string, error) {
	g.calls++
	if g.started != nil {
		close(g.started)
	}
	if g.release != nil {
		<-g.release
	}
	return g.url, g.err
}

type fixture struct {
	ctx      context.Context
	backend  *storage.Memory
	store    *store.Store
	recorder *notify.Recorder
	template form.Template
}

// newFixture stores a template with two sections:
// "Name" (text, required), "Age" (number), then "Photo" (upload, image, required) and "CV" (upload).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := storage.NewMemory()
	s := store.New(backend)

	tpl := form.Template{
		ID:        "tpl-1",
		Name:      "Template 1",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Sections: []form.Section{
			{ID: "s1", Title: "Section 1", Fields: []form.Field{
				{ID: "name", Label: "Name", Type: form.FieldTypeText, Required: true},
				{ID: "age", Label: "Age", Type: form.FieldTypeNumber},
			}},
			{ID: "s2", Title: "Section 2", Fields: []form.Field{
				{ID: "photo", Label: "Photo", Type: form.FieldTypeUpload, Required: true, UploadType: form.UploadImage},
				{ID: "cv", Label: "CV", Type: form.FieldTypeUpload},
			}},
		},
	}
	require.NoError(t, s.Save(ctx, []form.Template{tpl}))
	return &fixture{ctx: ctx, backend: backend, store: s, recorder: &notify.Recorder{}, template: tpl}
}

func (f *fixture) controller(gw upload.Gateway, opts ...Option) *Controller {
	return New(f.store, gw, f.recorder, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func imageFile() upload.File {
	return upload.File{Name: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

func TestStartUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller(nil).Start(f.ctx, "missing")
	assert.ErrorIs(t, err, form.ErrTemplateNotFound)
}

func TestStartHasEmptyAnswers(t *testing.T) {
	f := newFixture(t)
	c := f.controller(nil)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Empty(t, snap.Answers)
	assert.False(t, snap.Submitted)

	_, err = c.Session("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNullAnswerClearsField(t *testing.T) {
	f := newFixture(t)
	c := f.controller(nil)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	require.NoError(t, c.SetAnswer(snap.ID, "name", form.StringValue("Ada")))
	require.NoError(t, c.SetAnswer(snap.ID, "photo", form.StringValue("https://cdn.example/a.png")))
	require.NoError(t, c.SetAnswer(snap.ID, "age", form.NumberValue(30)))
	require.NoError(t, c.SetAnswer(snap.ID, "age", form.Value{}))

	current, err := c.Session(snap.ID)
	require.NoError(t, err)
	assert.NotContains(t, current.Answers, "age")

	_, err = c.Submit(f.ctx, snap.ID)
	require.NoError(t, err)

	raw, err := f.backend.Get(f.ctx, store.AnswersKey(f.template.ID))
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.NotContains(t, stored, "age")
	assert.Equal(t, "Ada", stored["name"])
}

func TestReapDropsIdleSessions(t *testing.T) {
	f := newFixture(t)
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := f.controller(nil, WithClock(clock.Now), WithSessionTTL(10*time.Minute))

	idle, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)
	active, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	clock.Advance(8 * time.Minute)
	require.NoError(t, c.SetAnswer(active.ID, "name", form.StringValue("Ada")))
	assert.Zero(t, c.Reap())

	clock.Advance(3 * time.Minute)
	assert.Equal(t, 1, c.Reap())
	assert.Equal(t, 1, c.Len())

	_, err = c.Session(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	current, err := c.Session(active.ID)
	require.NoError(t, err)
	assert.Equal(t, form.StringValue("Ada"), current.Answers["name"])
}

func TestReapKeepsSessionWithPendingUpload(t *testing.T) {
	f := newFixture(t)
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	gw := &fakeGateway{url: "https://cdn.example/slow.png", release: make(chan struct{}), started: make(chan struct{})}
	c := f.controller(gw, WithClock(clock.Now), WithSessionTTL(time.Minute))

	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(f.ctx, snap.ID, "photo", imageFile())
		done <- err
	}()
	<-gw.started

	clock.Advance(time.Hour)
	assert.Zero(t, c.Reap())

	close(gw.release)
	require.NoError(t, <-done)
	clock.Advance(time.Hour)
	assert.Equal(t, 1, c.Reap())
}

func TestReapDisabledWithZeroTTL(t *testing.T) {
	f := newFixture(t)
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := f.controller(nil, WithClock(clock.Now), WithSessionTTL(0))
	_, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	assert.Zero(t, c.Reap())
	assert.Equal(t, 1, c.Len())

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	c.RunReaper(ctx)
}

func TestSubmitWithMissingRequiredField(t *testing.T) {
	f := newFixture(t)
	c := f.controller(nil)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)
	require.NoError(t, c.SetAnswer(snap.ID, "name", form.StringValue("")))

	_, err = c.Submit(f.ctx, snap.ID)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.FieldID)

	alerts := f.recorder.All()
	require.Len(t, alerts, 1, "only the first offender is reported")
	assert.Equal(t, notify.LevelAlert, alerts[0].Level)
	assert.Equal(t, `Field "Name" is required.`, alerts[0].Message)

	_, err = f.backend.Get(f.ctx, store.AnswersKey(f.template.ID))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	current, err := c.Session(snap.ID)
	require.NoError(t, err)
	assert.False(t, current.Submitted)
}

func TestSubmitPersistsAnswers(t *testing.T) {
	f := newFixture(t)
	c := f.controller(nil)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)
	require.NoError(t, c.SetAnswer(snap.ID, "name", form.StringValue("Ada")))
	require.NoError(t, c.SetAnswer(snap.ID, "photo", form.StringValue("https://cdn.example/a.png")))
	require.NoError(t, c.SetAnswer(snap.ID, "age", form.NumberValue(0)))

	done, err := c.Submit(f.ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, done.Submitted)

	raw, err := f.backend.Get(f.ctx, "form_data_tpl-1")
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, map[string]any{
		"name":  "Ada",
		"photo": "https://cdn.example/a.png",
		"age":   0.0,
	}, stored)

	restarted, err := c.Restart(snap.ID)
	require.NoError(t, err)
	assert.False(t, restarted.Submitted)
	assert.Equal(t, done.Answers, restarted.Answers)
}

func TestValidateTreatsFalseAsAnswered(t *testing.T) {
	tpl := form.Template{Sections: []form.Section{{Fields: []form.Field{
		{ID: "agree", Label: "Agree", Type: form.FieldTypeBoolean, Required: true},
	}}}}
	assert.NoError(t, Validate(tpl, form.Answers{"agree": form.BooleanValue(false)}))
	assert.Error(t, Validate(tpl, form.Answers{}))
}

func TestUploadSetsAnswer(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{url: "https://cdn.example/me.png"}
	c := f.controller(gw)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	got, err := c.Upload(f.ctx, snap.ID, "photo", imageFile())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/me.png", got)

	current, err := c.Session(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, form.StringValue("https://cdn.example/me.png"), current.Answers["photo"])
	assert.Empty(t, current.Uploading)
	assert.Equal(t, 1, f.recorder.Count(notify.LevelSuccess))

	sections, err := c.Render(f.ctx, snap.ID)
	require.NoError(t, err)
	photo := sections[1].Fields[0]
	require.NotNil(t, photo.Preview)
	assert.Equal(t, "image", photo.Preview.Kind)
}

func TestUploadServerErrorLeavesAnswerUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t)
	c := f.controller(upload.NewHosted(srv.URL, "form_builder", srv.Client()))
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	_, err = c.Upload(f.ctx, snap.ID, "cv", upload.File{Name: "cv.pdf", ContentType: "application/pdf", Body: strings.NewReader("pdf")})
	require.ErrorIs(t, err, upload.ErrUploadFailed)

	current, err := c.Session(snap.ID)
	require.NoError(t, err)
	_, answered := current.Answers["cv"]
	assert.False(t, answered)

	failures := f.recorder.All()
	require.Len(t, failures, 1)
	assert.Equal(t, notify.LevelError, failures[0].Level)
	assert.Equal(t, "Upload failed", failures[0].Message)
}

func TestUploadFailureKeepsPreviousAnswer(t *testing.T) {
	f := newFixture(t)
	c := f.controller(&fakeGateway{err: upload.ErrUploadFailed})
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)
	require.NoError(t, c.SetAnswer(snap.ID, "cv", form.StringValue("https://cdn.example/old.pdf")))

	_, err = c.Upload(f.ctx, snap.ID, "cv", imageFile())
	require.Error(t, err)

	current, err := c.Session(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, form.StringValue("https://cdn.example/old.pdf"), current.Answers["cv"])
}

func TestUploadRejectsWrongFieldOrKind(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{url: "https://cdn.example/x"}
	c := f.controller(gw)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	_, err = c.Upload(f.ctx, snap.ID, "name", imageFile())
	assert.ErrorIs(t, err, form.ErrNotUploadField)

	_, err = c.Upload(f.ctx, snap.ID, "missing", imageFile())
	assert.ErrorIs(t, err, form.ErrFieldNotFound)

	_, err = c.Upload(f.ctx, snap.ID, "photo", upload.File{Name: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrUploadKindMismatch)

	assert.Zero(t, gw.calls)
	assert.Empty(t, f.recorder.All())
}

func TestUploadInFlightGuard(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{
		url:     "https://cdn.example/slow.png",
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	c := f.controller(gw)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Upload(f.ctx, snap.ID, "photo", imageFile())
		errc <- err
	}()
	<-gw.started

	current, err := c.Session(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo"}, current.Uploading)

	_, err = c.Upload(f.ctx, snap.ID, "photo", imageFile())
	assert.ErrorIs(t, err, ErrUploadInFlight)

	close(gw.release)
	require.NoError(t, <-errc)

	current, err = c.Session(snap.ID)
	require.NoError(t, err)
	assert.Empty(t, current.Uploading)
	assert.Equal(t, form.StringValue("https://cdn.example/slow.png"), current.Answers["photo"])
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	c := f.controller(nil)
	snap, err := c.Start(f.ctx, f.template.ID)
	require.NoError(t, err)

	c.Close(snap.ID)
	c.Close(snap.ID)
	_, err = c.Session(snap.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, errors.Is(c.SetAnswer(snap.ID, "name", form.StringValue("x")), ErrSessionNotFound))
}
