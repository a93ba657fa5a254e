// Package closet holds the clothing item model, the resilient wire decoder
// for the analysis backend's JSON, and the in-memory index used to filter,
// search, and sort a fetched collection.
package closet

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel strings the upstream service uses to mean "no value". They must
// never be displayed literally.
const (
	sentinelNull        = "null"
	sentinelNotDetected = "Not detected"
)

// ClothingAttributes is the structured record produced by analyzing a single
// garment photo. Every string field is guaranteed to never hold the literal
// "null"; decoding normalizes that sentinel and absence to the empty string.
type ClothingAttributes struct {
	MainColors      []string `json:"main_colors"`
	SecondaryColors []string `json:"secondary_colors"`
	GarmentType     string   `json:"garment_type"`
	Pattern         string   `json:"pattern"`
	Material        string   `json:"material"`
	Style           string   `json:"style"`
	Season          string   `json:"season"`
	Occasion        string   `json:"occasion"`
	Fit             string   `json:"fit"`
	Brand           string   `json:"brand"`
	ID              string   `json:"id,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
}

// isSentinel reports whether a value is one of the upstream placeholders.
func isSentinel(s string) bool {
	return s == "" || s == sentinelNull || s == sentinelNotDetected
}

// IsEmpty reports whether the essential attributes carry no usable value.
func (a ClothingAttributes) IsEmpty() bool {
	return len(a.MainColors) == 0 &&
		isSentinel(a.GarmentType) &&
		isSentinel(a.Material) &&
		isSentinel(a.Pattern) &&
		isSentinel(a.Style)
}

// FormattedString renders the non-sentinel attributes as display lines.
func (a ClothingAttributes) FormattedString() string {
	var b strings.Builder

	writeLine := func(label, value string) {
		if !isSentinel(value) {
			b.WriteString(label + ": " + capitalize(value) + "\n")
		}
	}

	writeLine("Type", a.GarmentType)
	if len(a.MainColors) > 0 {
		b.WriteString("Main Colors: " + joinCapitalized(a.MainColors) + "\n")
	}
	if len(a.SecondaryColors) > 0 && !isSentinel(a.SecondaryColors[0]) {
		b.WriteString("Accent Colors: " + joinCapitalized(a.SecondaryColors) + "\n")
	}
	writeLine("Material", a.Material)
	writeLine("Pattern", a.Pattern)
	writeLine("Style", a.Style)
	writeLine("Season", a.Season)
	writeLine("Occasion", a.Occasion)
	writeLine("Fit", a.Fit)
	if !isSentinel(a.Brand) {
		b.WriteString("Brand: " + a.Brand + "\n")
	}

	if b.Len() == 0 {
		return "No attributes available"
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func joinCapitalized(values []string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = capitalize(v)
	}
	return strings.Join(out, ", ")
}

// ClothingItem is one entry of the closet collection. Items are created on
// fetch or on successful analysis and are immutable once displayed, except
// for removal from the collection.
type ClothingItem struct {
	ID         string
	Attributes ClothingAttributes
	ImageURL   string
	DateAdded  time.Time
}

// NewItem builds an item with a fresh id and the current time.
func NewItem(attrs ClothingAttributes) ClothingItem {
	id := attrs.ID
	if id == "" {
		id = uuid.NewString()
	}
	return ClothingItem{
		ID:         id,
		Attributes: attrs,
		ImageURL:   attrs.ImageURL,
		DateAdded:  time.Now(),
	}
}

// Name derives a display name from the item's color and garment type.
func (c ClothingItem) Name() string {
	typeStr := "Item"
	if c.Attributes.GarmentType != "" {
		typeStr = capitalize(c.Attributes.GarmentType)
	}
	if len(c.Attributes.MainColors) > 0 && c.Attributes.MainColors[0] != "" {
		return capitalize(c.Attributes.MainColors[0]) + " " + typeStr
	}
	return typeStr
}

// searchableText concatenates every attribute field plus all colors,
// lowercased, for free-text matching.
func (c ClothingItem) searchableText() string {
	a := c.Attributes
	parts := []string{
		a.GarmentType, a.Material, a.Style, a.Pattern,
		a.Season, a.Occasion, a.Fit, a.Brand,
	}
	parts = append(parts, a.MainColors...)
	parts = append(parts, a.SecondaryColors...)
	return strings.ToLower(strings.Join(parts, " "))
}
