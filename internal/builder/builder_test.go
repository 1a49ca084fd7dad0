package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbuilder/internal/dashboard"
	"formbuilder/internal/form"
	"formbuilder/internal/notify"
	"formbuilder/internal/storage"
	"formbuilder/internal/store"
)

type fixture struct {
	ctx      context.Context
	backend  *storage.Memory
	store    *store.Store
	builder  *Builder
	recorder *notify.Recorder
	template form.Template
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := storage.NewMemory()
	s := store.New(backend)
	rec := &notify.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tpl, err := dashboard.New(s, nil, logger).Create(ctx)
	require.NoError(t, err)

	return &fixture{
		ctx:      ctx,
		backend:  backend,
		store:    s,
		builder:  New(s, rec, logger, opts...),
		recorder: rec,
		template: tpl,
	}
}

func (f *fixture) addSection(t *testing.T) form.Section {
	t.Helper()
	_, sec, err := f.builder.AddSection(f.ctx, f.template.ID)
	require.NoError(t, err)
	return sec
}

func TestAddSectionNumbering(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 3; i++ {
		sec := f.addSection(t)
		assert.Equal(t, fmt.Sprintf("Section %d", i), sec.Title)
		assert.Empty(t, sec.Fields)
	}
	tpl, err := f.builder.Load(f.ctx, f.template.ID)
	require.NoError(t, err)
	assert.Len(t, tpl.Sections, 3)
}

func TestAddSectionAtCap(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < DefaultMaxSections; i++ {
		f.addSection(t)
	}
	before, err := f.store.Load(f.ctx)
	require.NoError(t, err)

	_, _, err = f.builder.AddSection(f.ctx, f.template.ID)
	require.ErrorIs(t, err, form.ErrSectionLimit)

	after, err := f.store.Load(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	errs := f.recorder.All()
	require.Len(t, errs, 1)
	assert.Equal(t, notify.LevelError, errs[0].Level)
	assert.Equal(t, "You can only have up to 10 sections.", errs[0].Message)
}

func TestAddSectionUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.builder.AddSection(f.ctx, "missing")
	assert.ErrorIs(t, err, form.ErrTemplateNotFound)
}

func TestRenameSection(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)

	tpl, err := f.builder.RenameSection(f.ctx, f.template.ID, sec.ID, "<b>Contact</b> details")
	require.NoError(t, err)
	assert.Equal(t, "Contact details", tpl.Sections[0].Title)

	tpl, err = f.builder.RenameSection(f.ctx, f.template.ID, sec.ID, "My ")
	require.NoError(t, err)
	assert.Equal(t, "My ", tpl.Sections[0].Title)

	tpl, err = f.builder.RenameSection(f.ctx, f.template.ID, sec.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "", tpl.Sections[0].Title)

	stored, err := f.store.Get(f.ctx, f.template.ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Sections[0].Title)

	_, err = f.builder.RenameSection(f.ctx, f.template.ID, "nope", "x")
	assert.ErrorIs(t, err, form.ErrSectionNotFound)
}

func TestDropEnumField(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)

	tpl, field, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeEnum)
	require.NoError(t, err)
	assert.Equal(t, "ENUM Field", field.Label)
	assert.False(t, field.Required)
	assert.Equal(t, []string{"Option 1", "Option 2"}, field.Options)
	require.Len(t, tpl.Sections[0].Fields, 1)
	assert.Equal(t, field, tpl.Sections[0].Fields[0])
	assert.Equal(t, 1, f.recorder.Count(notify.LevelSuccess))
}

func TestDropBooleanFieldHasNoOptions(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)

	_, field, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, "BOOLEAN Field", field.Label)
	assert.Nil(t, field.Options)
}

func TestDropFieldRejectsUnknownTypeAndSection(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)

	_, _, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldType("date"))
	assert.ErrorIs(t, err, form.ErrUnknownFieldType)

	_, _, err = f.builder.DropField(f.ctx, f.template.ID, "missing", form.FieldTypeText)
	assert.ErrorIs(t, err, form.ErrSectionNotFound)
	assert.Zero(t, f.recorder.Count(notify.LevelSuccess))
}

func TestConfirmEditChangingTypeClearsOptions(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)
	_, field, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeEnum)
	require.NoError(t, err)

	d, err := f.builder.EditField(f.ctx, f.template.ID, field.ID)
	require.NoError(t, err)
	assert.Equal(t, field.Options, d.Options)

	d.Label = "Favourite colour"
	d.Required = true
	d.Type = form.FieldTypeText
	tpl, saved, err := f.builder.ConfirmEdit(f.ctx, f.template.ID, d)
	require.NoError(t, err)
	assert.Equal(t, "Favourite colour", saved.Label)
	assert.True(t, saved.Required)
	assert.Equal(t, form.FieldTypeText, saved.Type)
	assert.Nil(t, saved.Options)
	assert.Equal(t, saved, tpl.Sections[0].Fields[0])
}

func TestConfirmEditOptions(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)
	_, field, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeEnum)
	require.NoError(t, err)

	d, err := f.builder.EditField(f.ctx, f.template.ID, field.ID)
	require.NoError(t, err)
	d.RemoveOption(0)
	d.AddOption()
	d.SetOption(0, "Red")

	_, saved, err := f.builder.ConfirmEdit(f.ctx, f.template.ID, d)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Option 2"}, saved.Options)
}

func TestEditUnknownField(t *testing.T) {
	f := newFixture(t)
	f.addSection(t)
	_, err := f.builder.EditField(f.ctx, f.template.ID, "missing")
	assert.ErrorIs(t, err, form.ErrFieldNotFound)

	_, _, err = f.builder.ConfirmEdit(f.ctx, f.template.ID, form.Draft{FieldID: "missing"})
	assert.ErrorIs(t, err, form.ErrFieldNotFound)
}

func TestSaveFieldNormalizes(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)
	_, field, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeText)
	require.NoError(t, err)

	field.Options = []string{"stray"}
	field.UploadType = form.UploadImage
	tpl, err := f.builder.SaveField(f.ctx, f.template.ID, field)
	require.NoError(t, err)
	got := tpl.Sections[0].Fields[0]
	assert.Nil(t, got.Options)
	assert.Empty(t, got.UploadType)
}

func TestDeleteSectionKeepsSiblings(t *testing.T) {
	f := newFixture(t)
	first := f.addSection(t)
	second := f.addSection(t)
	_, _, err := f.builder.DropField(f.ctx, f.template.ID, first.ID, form.FieldTypeText)
	require.NoError(t, err)
	_, kept, err := f.builder.DropField(f.ctx, f.template.ID, second.ID, form.FieldTypeNumber)
	require.NoError(t, err)

	tpl, err := f.builder.DeleteSection(f.ctx, f.template.ID, first.ID)
	require.NoError(t, err)
	require.Len(t, tpl.Sections, 1)
	assert.Equal(t, second.ID, tpl.Sections[0].ID)
	assert.Equal(t, []form.Field{kept}, tpl.Sections[0].Fields)

	last := f.recorder.All()
	assert.Equal(t, "Section deleted!", last[len(last)-1].Message)
}

func TestDeleteField(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)
	_, a, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeText)
	require.NoError(t, err)
	_, b, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeParagraph)
	require.NoError(t, err)

	tpl, err := f.builder.DeleteField(f.ctx, f.template.ID, sec.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []form.Field{b}, tpl.Sections[0].Fields)

	_, err = f.builder.DeleteField(f.ctx, f.template.ID, sec.ID, a.ID)
	assert.ErrorIs(t, err, form.ErrFieldNotFound)
}

func TestSetUploadConstraint(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)
	_, up, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeUpload)
	require.NoError(t, err)
	_, txt, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeText)
	require.NoError(t, err)

	tpl, err := f.builder.SetUploadConstraint(f.ctx, f.template.ID, sec.ID, up.ID, form.UploadImage)
	require.NoError(t, err)
	got, ok := tpl.FindField(up.ID)
	require.True(t, ok)
	assert.Equal(t, form.UploadImage, got.UploadType)

	_, err = f.builder.SetUploadConstraint(f.ctx, f.template.ID, sec.ID, txt.ID, form.UploadFile)
	assert.ErrorIs(t, err, form.ErrNotUploadField)

	_, err = f.builder.SetUploadConstraint(f.ctx, f.template.ID, sec.ID, up.ID, form.UploadKind("video"))
	assert.ErrorIs(t, err, form.ErrUnknownUploadKind)
}

func TestSaveDraftWritesDraftKey(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)
	_, _, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeText)
	require.NoError(t, err)

	next, err := f.builder.SaveDraft(f.ctx, f.template.ID)
	require.NoError(t, err)
	assert.Equal(t, "/", next)

	raw, err := f.backend.Get(f.ctx, "template-"+f.template.ID)
	require.NoError(t, err)
	var draft form.Template
	require.NoError(t, json.Unmarshal(raw, &draft))

	current, err := f.builder.Load(f.ctx, f.template.ID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, draft.ID)
	assert.Equal(t, current.Sections, draft.Sections)
	assert.True(t, current.CreatedAt.Equal(draft.CreatedAt))

	last := f.recorder.All()
	assert.Equal(t, "Template saved as draft!", last[len(last)-1].Message)
}

func TestDragDropOntoSection(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)

	require.NoError(t, f.builder.DragStart(f.template.ID, DragPayload{
		Type:      form.PaletteItemType,
		FieldType: form.FieldTypeUpload,
		Label:     "Upload",
	}))
	active, ok := f.builder.Active(f.template.ID)
	require.True(t, ok)
	assert.Equal(t, form.FieldTypeUpload, active.FieldType)

	tpl, field, dropped, err := f.builder.DragEnd(f.ctx, f.template.ID, sec.ID)
	require.NoError(t, err)
	assert.True(t, dropped)
	assert.Equal(t, form.FieldTypeUpload, field.Type)
	assert.Len(t, tpl.Sections[0].Fields, 1)

	_, ok = f.builder.Active(f.template.ID)
	assert.False(t, ok)
}

func TestDragEndWithoutTargetClearsActive(t *testing.T) {
	f := newFixture(t)
	f.addSection(t)
	before, err := f.store.Load(f.ctx)
	require.NoError(t, err)

	require.NoError(t, f.builder.DragStart(f.template.ID, DragPayload{Type: form.PaletteItemType, FieldType: form.FieldTypeText}))
	_, _, dropped, err := f.builder.DragEnd(f.ctx, f.template.ID, "")
	require.NoError(t, err)
	assert.False(t, dropped)

	_, ok := f.builder.Active(f.template.ID)
	assert.False(t, ok)

	after, err := f.store.Load(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDragStartRejectsForeignPayload(t *testing.T) {
	f := newFixture(t)
	err := f.builder.DragStart(f.template.ID, DragPayload{Type: "section", FieldType: form.FieldTypeText})
	assert.Error(t, err)
	err = f.builder.DragStart(f.template.ID, DragPayload{Type: form.PaletteItemType, FieldType: "date"})
	assert.ErrorIs(t, err, form.ErrUnknownFieldType)
	_, ok := f.builder.Active(f.template.ID)
	assert.False(t, ok)
}

func TestPreviewRendersDisabledInputs(t *testing.T) {
	f := newFixture(t)
	sec := f.addSection(t)
	_, _, err := f.builder.DropField(f.ctx, f.template.ID, sec.ID, form.FieldTypeText)
	require.NoError(t, err)

	sections, err := f.builder.Preview(f.ctx, f.template.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Fields, 1)
	assert.True(t, sections[0].Fields[0].Disabled)
}

func TestMutationsKeepCreatedAt(t *testing.T) {
	f := newFixture(t)
	f.addSection(t)
	tpl, err := f.builder.Load(f.ctx, f.template.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, f.template.CreatedAt, tpl.CreatedAt, time.Millisecond)
}
