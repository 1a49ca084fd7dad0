package form

import "fmt"

// Control names the input widget a field renders as.
type Control string

const (
	ControlStatic   Control = "static"
	ControlText     Control = "text"
	ControlNumber   Control = "number"
	ControlCheckbox Control = "checkbox"
	ControlSelect   Control = "select"
	ControlTextarea Control = "textarea"
	ControlFile     Control = "file"
)

// SelectPlaceholder is the empty first choice of a fillable dropdown.
const SelectPlaceholder = "Select an option"

// Preview describes how an uploaded answer is displayed.
type Preview struct {
	Kind string `json:"kind"` // "image" or "link"
	URL  string `json:"url"`
}

// RenderedField is the display description of one field.
type RenderedField struct {
	FieldID     string     `json:"fieldId"`
	Label       string     `json:"label"`
	Type        FieldType  `json:"type"`
	Control     Control    `json:"control"`
	Required    bool       `json:"required"`
	Disabled    bool       `json:"disabled,omitempty"`
	Placeholder string     `json:"placeholder,omitempty"`
	Options     []string   `json:"options,omitempty"`
	Accept      string     `json:"accept,omitempty"`
	UploadType  UploadKind `json:"uploadType,omitempty"`
	Value       Value      `json:"value"`
	Preview     *Preview   `json:"preview,omitempty"`
}

// RenderedSection groups the rendered fields of a section.
type RenderedSection struct {
	SectionID string          `json:"sectionId"`
	Title     string          `json:"title"`
	Fields    []RenderedField `json:"fields"`
}

// RenderMode selects between the builder surface and the fillable form.
type RenderMode int

const (
	// ModeFill renders enabled inputs bound to answers.
	ModeFill RenderMode = iota
	// ModeBuilder renders disabled inputs with sample placeholders.
	ModeBuilder
)

// Render describes every section of t. answers may be nil.
func Render(t Template, answers Answers, mode RenderMode) ([]RenderedSection, error) {
	out := make([]RenderedSection, 0, len(t.Sections))
	for _, s := range t.Sections {
		rs := RenderedSection{
			SectionID: s.ID,
			Title:     s.Title,
			Fields:    make([]RenderedField, 0, len(s.Fields)),
		}
		for _, f := range s.Fields {
			rf, err := RenderField(f, answers[f.ID], mode)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", s.ID, err)
			}
			rs.Fields = append(rs.Fields, rf)
		}
		out = append(out, rs)
	}
	return out, nil
}

// RenderField describes a single field.
func RenderField(f Field, answer Value, mode RenderMode) (RenderedField, error) {
	rf := RenderedField{
		FieldID:  f.ID,
		Label:    f.Label,
		Type:     f.Type,
		Required: f.Required,
		Disabled: mode == ModeBuilder,
	}
	if mode == ModeFill {
		rf.Value = answer
	}

	switch f.Type {
	case FieldTypeLabel:
		rf.Control = ControlStatic
	case FieldTypeText:
		rf.Control = ControlText
		if mode == ModeBuilder {
			rf.Placeholder = "Text input"
		}
	case FieldTypeNumber:
		rf.Control = ControlNumber
		if mode == ModeBuilder {
			rf.Placeholder = "Number input"
		}
	case FieldTypeBoolean:
		rf.Control = ControlCheckbox
	case FieldTypeEnum:
		rf.Control = ControlSelect
		rf.Options = append([]string(nil), f.Options...)
		if mode == ModeFill {
			rf.Placeholder = SelectPlaceholder
		}
	case FieldTypeParagraph:
		rf.Control = ControlTextarea
	case FieldTypeUpload:
		rf.Control = ControlFile
		kind := f.UploadType.Effective()
		rf.UploadType = kind
		rf.Accept = AcceptFor(kind)
		if mode == ModeFill && answer.IsURL() {
			url, _ := answer.Str()
			rf.Preview = &Preview{Kind: "link", URL: url}
			if kind == UploadImage {
				rf.Preview.Kind = "image"
			}
		}
	default:
		return RenderedField{}, fmt.Errorf("field %s: %w: %q", f.ID, ErrUnknownFieldType, string(f.Type))
	}
	return rf, nil
}

// AcceptFor returns the file-picker filter for an upload constraint.
func AcceptFor(kind UploadKind) string {
	switch kind {
	case UploadImage:
		return "image/*"
	case UploadFile:
		return "*/*"
	default:
		return ""
	}
}
