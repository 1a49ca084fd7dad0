package form

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultEnumOptions seeds every newly dropped enum field.
var DefaultEnumOptions = []string{"Option 1", "Option 2"}

var textPolicy = bluemonday.StrictPolicy()

// StripMarkup removes markup from user-entered text and keeps the remaining characters,
// surrounding spaces included.
func StripMarkup(s string) string {
	return html.UnescapeString(textPolicy.Sanitize(s))
}

// CleanText strips markup and trims labels and options on save.
func CleanText(s string) string {
	return strings.TrimSpace(StripMarkup(s))
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// NewTemplate builds an empty template named after its position in the collection.
func NewTemplate(position int, now time.Time) Template {
	return Template{
		ID:        NewID(),
		Name:      fmt.Sprintf("Template %d", position),
		Sections:  []Section{},
		CreatedAt: now.UTC(),
	}
}

// NewSection builds an empty section titled after its position in the template.
func NewSection(position int) Section {
	return Section{
		ID:     NewID(),
		Title:  fmt.Sprintf("Section %d", position),
		Fields: []Field{},
	}
}

// NewField builds the field produced by dropping a palette entry of type t.
func NewField(t FieldType) (Field, error) {
	if !t.Valid() {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownFieldType, string(t))
	}
	f := Field{
		ID:       NewID(),
		Label:    strings.ToUpper(string(t)) + " Field",
		Type:     t,
		Required: false,
	}
	if t == FieldTypeEnum {
		f.Options = append([]string(nil), DefaultEnumOptions...)
	}
	return f, nil
}
