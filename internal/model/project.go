package model

import "time"

// ProjectLinks holds the outbound links for a project.
type ProjectLinks struct {
	Live string `json:"live,omitempty"`
	Code string `json:"code,omitempty"`
}

// Project is a portfolio project entry. The structured fields (Stack, Tags,
// Images, Links, Metrics, Features) are stored as JSON text columns in the
// relational variant.
type Project struct {
	ID          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Slug        string         `json:"slug" db:"slug"`
	Description string         `json:"description" db:"description"`
	Stack       []string       `json:"stack"`
	Tags        []string       `json:"tags"`
	Tech        string         `json:"tech" db:"tech"`
	Image       string         `json:"image" db:"image"`
	Images      []string       `json:"images"`
	Links       ProjectLinks   `json:"links"`
	Category    string         `json:"category" db:"category"`
	Metrics     map[string]any `json:"metrics"`
	Features    []string       `json:"features"`
	Duration    string         `json:"duration" db:"duration"`
	Client      string         `json:"client" db:"client"`
	OrderIndex  int            `json:"order_index" db:"order_index"`
	IsFeatured  bool           `json:"is_featured" db:"is_featured"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// ProjectPatch is a partial update of a Project. Nil fields are left
// untouched by the merge; non-nil fields replace the stored value.
type ProjectPatch struct {
	Title       *string
	Slug        *string
	Description *string
	Stack       *[]string
	Tags        *[]string
	Tech        *string
	Image       *string
	Images      *[]string
	Links       *ProjectLinks
	Category    *string
	Metrics     *map[string]any
	Features    *[]string
	Duration    *string
	Client      *string
	OrderIndex  *int
	IsFeatured  *bool
}

// Apply merges the patch onto p, preserving fields the patch does not set.
func (patch ProjectPatch) Apply(p *Project) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Stack != nil {
		p.Stack = *patch.Stack
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	if patch.Tech != nil {
		p.Tech = *patch.Tech
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Images != nil {
		p.Images = *patch.Images
	}
	if patch.Links != nil {
		p.Links = *patch.Links
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Metrics != nil {
		p.Metrics = *patch.Metrics
	}
	if patch.Features != nil {
		p.Features = *patch.Features
	}
	if patch.Duration != nil {
		p.Duration = *patch.Duration
	}
	if patch.Client != nil {
		p.Client = *patch.Client
	}
	if patch.OrderIndex != nil {
		p.OrderIndex = *patch.OrderIndex
	}
	if patch.IsFeatured != nil {
		p.IsFeatured = *patch.IsFeatured
	}
}

// OrderEntry assigns a display position to a project during reordering.
type OrderEntry struct {
	ID         string `json:"id"`
	OrderIndex int    `json:"order_index"`
}
