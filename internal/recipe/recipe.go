package recipe

import (
	"strings"
	"time"
)

// Ingredient is one ingredient line of a recipe. Text is always the raw
// line; the remaining fields are filled in when extraction could parse
// them.
type Ingredient struct {
	Text     string   `json:"text"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Item     string   `json:"item,omitempty"`
	Category string   `json:"category,omitempty"`
}

// Name returns the item name, falling back to the raw text.
func (i Ingredient) Name() string {
	if name := strings.TrimSpace(i.Item); name != "" {
		return name
	}
	return strings.TrimSpace(i.Text)
}

// Recipe is a stored recipe.
type Recipe struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	SourceURL    string       `json:"source_url,omitempty"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`
	Tags         []string     `json:"tags,omitempty"`
	PrepTime     string       `json:"prep_time,omitempty"`
	Servings     string       `json:"servings,omitempty"`
	UpdatedAt    string       `json:"updated_at,omitempty"`
	Source       Source       `json:"source,omitempty"`
}

// Source records how a recipe entered the system.
type Source string

const (
	SourceGhost Source = "ghost"
	SourceClip  Source = "clip"
)

// PostData is the raw material handed to the extractor.
type PostData struct {
	ID        string
	Title     string
	SourceURL string
	UpdatedAt string
	HTML      string
}

// updatedTime parses UpdatedAt, falling back to now when it is missing or
// not RFC 3339.
func (r Recipe) updatedTime(now time.Time) time.Time {
	if r.UpdatedAt == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339, r.UpdatedAt)
	if err != nil {
		return now
	}
	return t
}
