package form

import "fmt"

// Draft holds the editable state of a field while its edit dialog is open.
type Draft struct {
	FieldID  string    `json:"fieldId"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Options  []string  `json:"options"`
}

// NewDraft pre-populates a draft from f.
func NewDraft(f Field) Draft {
	options := make([]string, len(f.Options))
	copy(options, f.Options)
	return Draft{
		FieldID:  f.ID,
		Type:     f.Type,
		Label:    f.Label,
		Required: f.Required,
		Options:  options,
	}
}

// AddOption appends "Option N" where N is the new option count.
func (d *Draft) AddOption() {
	d.Options = append(d.Options, fmt.Sprintf("Option %d", len(d.Options)+1))
}

// SetOption replaces the option at index i. Out of range indexes are ignored.
func (d *Draft) SetOption(i int, value string) {
	if i < 0 || i >= len(d.Options) {
		return
	}
	d.Options[i] = value
}

// RemoveOption deletes the option at index i. Out of range indexes are ignored.
func (d *Draft) RemoveOption(i int) {
	if i < 0 || i >= len(d.Options) {
		return
	}
	d.Options = append(d.Options[:i:i], d.Options[i+1:]...)
}

// Apply returns f with the draft's edits, keeping options only for enum fields.
func (d Draft) Apply(f Field) Field {
	f.Label = d.Label
	f.Required = d.Required
	if d.Type != "" {
		f.Type = d.Type
	}
	f.Options = append([]string(nil), d.Options...)
	return f.Normalize()
}
