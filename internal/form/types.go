package form

import (
	"fmt"
	"time"
)

// FieldType enumerates the input kinds a template field can take.
type FieldType string

const (
	FieldTypeLabel     FieldType = "label"
	FieldTypeText      FieldType = "text"
	FieldTypeNumber    FieldType = "number"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeEnum      FieldType = "enum"
	FieldTypeParagraph FieldType = "paragraph"
	FieldTypeUpload    FieldType = "upload"
)

// FieldTypes lists every kind in palette order followed by label.
var FieldTypes = []FieldType{
	FieldTypeText,
	FieldTypeParagraph,
	FieldTypeNumber,
	FieldTypeBoolean,
	FieldTypeEnum,
	FieldTypeUpload,
	FieldTypeLabel,
}

// Valid reports whether t names one of the seven known kinds.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeLabel, FieldTypeText, FieldTypeNumber, FieldTypeBoolean,
		FieldTypeEnum, FieldTypeParagraph, FieldTypeUpload:
		return true
	default:
		return false
	}
}

// ParseFieldType converts raw input into a FieldType.
func ParseFieldType(raw string) (FieldType, error) {
	t := FieldType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFieldType, raw)
	}
	return t, nil
}

// UploadKind restricts which files an upload field accepts.
type UploadKind string

const (
	UploadImage UploadKind = "image"
	UploadFile  UploadKind = "file"
	UploadBoth  UploadKind = "both"
)

func (k UploadKind) Valid() bool {
	switch k {
	case UploadImage, UploadFile, UploadBoth:
		return true
	default:
		return false
	}
}

// ParseUploadKind converts raw input into an UploadKind.
func ParseUploadKind(raw string) (UploadKind, error) {
	k := UploadKind(raw)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownUploadKind, raw)
	}
	return k, nil
}

// Effective returns the constraint in force; an unset kind allows both.
func (k UploadKind) Effective() UploadKind {
	if k == "" {
		return UploadBoth
	}
	return k
}

// Field is a single typed input definition inside a section.
type Field struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Type       FieldType  `json:"type"`
	Required   bool       `json:"required"`
	Options    []string   `json:"options,omitempty"`
	UploadType UploadKind `json:"uploadType,omitempty"`
}

// Normalize drops metadata that has no meaning for the field's type.
func (f Field) Normalize() Field {
	if f.Type != FieldTypeEnum {
		f.Options = nil
	}
	if f.Type != FieldTypeUpload {
		f.UploadType = ""
	}
	return f
}

// Section is a titled, ordered group of fields.
type Section struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Template is a named, ordered collection of sections.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sections  []Section `json:"sections"`
	CreatedAt time.Time `json:"createdAt"`
}

// SectionIndex returns the position of the section with id, or -1.
func (t Template) SectionIndex(id string) int {
	for i, s := range t.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// FindField searches every section for the field with id.
func (t Template) FindField(id string) (Field, bool) {
	for _, s := range t.Sections {
		for _, f := range s.Fields {
			if f.ID == id {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing stored slices.
func (t Template) Clone() Template {
	out := t
	if t.Sections == nil {
		return out
	}
	out.Sections = make([]Section, len(t.Sections))
	for i, s := range t.Sections {
		cs := s
		if s.Fields == nil {
			out.Sections[i] = cs
			continue
		}
		cs.Fields = make([]Field, len(s.Fields))
		for j, f := range s.Fields {
			cf := f
			if f.Options != nil {
				cf.Options = append([]string(nil), f.Options...)
			}
			cs.Fields[j] = cf
		}
		out.Sections[i] = cs
	}
	return out
}

// FindTemplate returns the index of the template with id in templates, or -1.
func FindTemplate(templates []Template, id string) int {
	for i, t := range templates {
		if t.ID == id {
			return i
		}
	}
	return -1
}
