// Package icons resolves display icons for narrative cells and data objects.
//
// The data-type table ships as an embedded JSON file and is loaded once on
// first use; it is read-only configuration, never mutated at runtime.
package icons

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed icons.json
var iconJSON []byte

// Icon describes how to render a cell or data-type icon.
// Kind "image" means Icon holds an image source URL. Kind "class" means Icon
// holds CSS classes, and Color and Shape are also set.
type Icon struct {
	Kind  string `json:"type"`
	Icon  string `json:"icon"`
	Color string `json:"color,omitempty"`
	Shape string `json:"shape,omitempty"`
}

type iconTable struct {
	classes      map[string]string
	colors       []string
	colorMapping map[string]string
}

var (
	loadOnce sync.Once
	table    iconTable
)

func load() {
	var raw struct {
		Data         map[string]any    `json:"data"`
		Colors       []string          `json:"colors"`
		ColorMapping map[string]string `json:"color_mapping"`
	}
	if err := json.Unmarshal(iconJSON, &raw); err != nil {
		// The table is embedded at build time; a decode failure is a
		// packaging bug, not a runtime condition.
		panic("icons: bad embedded icons.json: " + err.Error())
	}
	table = iconTable{
		classes:      make(map[string]string, len(raw.Data)),
		colors:       raw.Colors,
		colorMapping: raw.ColorMapping,
	}
	for name, v := range raw.Data {
		switch val := v.(type) {
		case string:
			table.classes[name] = val
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				if s, ok := p.(string); ok {
					parts = append(parts, s)
				}
			}
			table.classes[name] = strings.Join(parts, " ")
		}
	}
}

// ForData returns the class icon for a data object's short type name,
// falling back to the default icon, first palette color, and circle shape
// when the type is unmapped.
func ForData(typeName string) Icon {
	loadOnce.Do(load)
	icon := Icon{
		Kind:  "class",
		Icon:  table.classes["DEFAULT"],
		Shape: "circle",
	}
	if len(table.colors) > 0 {
		icon.Color = table.colors[0]
	}
	if classes, ok := table.classes[typeName]; ok {
		icon.Icon = classes
	}
	if color, ok := table.colorMapping[typeName]; ok {
		icon.Color = color
	}
	return icon
}

// ForOutput returns the fixed arrow glyph used for generic output cells.
func ForOutput() Icon {
	return Icon{Kind: "class", Icon: "fa-arrow-right", Color: "silver", Shape: "square"}
}

// ForApp returns an image icon when the app spec declares one (iconURL
// non-empty), otherwise the fixed cube glyph.
func ForApp(iconURL string) Icon {
	if iconURL != "" {
		return Icon{Kind: "image", Icon: iconURL}
	}
	return Icon{Kind: "class", Icon: "fa-cube", Color: "#673ab7", Shape: "square"}
}

// ForUnknown returns the glyph for cells this system cannot classify.
func ForUnknown() Icon {
	return Icon{Kind: "class", Icon: "fa-question-circle-o", Color: "silver", Shape: "square"}
}
