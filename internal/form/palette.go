package form

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed palette.yaml
var paletteYAML []byte

// PaletteItemType marks a drag payload as coming from the field palette.
const PaletteItemType = "palette"

// PaletteItem is one draggable entry of the field palette.
type PaletteItem struct {
	FieldType FieldType `yaml:"fieldType" json:"fieldType"`
	Label     string    `yaml:"label" json:"label"`
}

// ParsePalette decodes a palette definition, rejecting unknown field types.
func ParsePalette(data []byte) ([]PaletteItem, error) {
	var items []PaletteItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode palette: %w", err)
	}
	for _, item := range items {
		if !item.FieldType.Valid() {
			return nil, fmt.Errorf("palette entry %q: %w", item.Label, ErrUnknownFieldType)
		}
	}
	return items, nil
}

// Palette returns the built-in palette.
func Palette() []PaletteItem {
	items, err := ParsePalette(paletteYAML)
	if err != nil {
		panic(err)
	}
	return items
}
