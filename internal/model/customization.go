package model

import "time"

// Customization value types. Values are stored as text and coerced back to
// their native type on read.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeJSON    = "json"
	TypeColor   = "color"
)

// ValidCustomizationType reports whether t is one of the supported value types.
func ValidCustomizationType(t string) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeJSON, TypeColor:
		return true
	}
	return false
}

// Customization is a global key/value site override (free-form text, colors,
// feature toggles). Each write fully replaces the prior value.
type Customization struct {
	Key       string    `json:"key" db:"key"`
	Value     any       `json:"value"`
	Type      string    `json:"type" db:"type"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectSettings is the per-project customization blob (badges, overlay
// text, CTA, accent color). A project with no stored row has empty settings;
// absence is not an error.
type ProjectSettings struct {
	ProjectID string         `json:"project_id"`
	Settings  map[string]any `json:"settings"`
}
