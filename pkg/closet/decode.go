package closet

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// The backend's JSON is only loosely reliable: fields go missing, strings
// arrive where arrays are expected, and the literal string "null" stands in
// for absence. Decoding is therefore per-field best-effort with defaults;
// a malformed field degrades to its zero value and never aborts the record.

// rawObject is the field-level view of an untrusted JSON object. A nil map
// (non-object input) simply yields defaults for every field.
type rawObject map[string]json.RawMessage

func parseObject(data []byte) rawObject {
	var m rawObject
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// stringField decodes a string value, normalizing absence and the literal
// "null" sentinel to the empty string.
func (m rawObject) stringField(key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	if s == sentinelNull {
		return ""
	}
	return s
}

// stringListField decodes an array of strings; a lone string is wrapped in a
// one-element list, anything else becomes an empty list.
func (m rawObject) stringListField(key string) []string {
	raw, ok := m[key]
	if !ok {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			return []string{}
		}
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return []string{}
}

// timeLayoutAlt is the fallback layout tried when strict RFC 3339 with
// fractional seconds does not parse.
const timeLayoutAlt = "2006-01-02T15:04:05.000000-0700"

// timeField decodes a timestamp, trying strict ISO 8601 with fractional
// seconds first, then the backend's alternate layout, then "now". A
// timestamp never fails a record.
func (m rawObject) timeField(key string, now func() time.Time) time.Time {
	raw, ok := m[key]
	if !ok {
		return now()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return now()
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(timeLayoutAlt, s); err == nil {
		return t
	}
	return now()
}

// DecodeAttributes turns any JSON value into a fully populated
// ClothingAttributes. It never returns an error: unusable input produces an
// empty but renderable record.
func DecodeAttributes(data []byte) ClothingAttributes {
	m := parseObject(data)
	return ClothingAttributes{
		MainColors:      m.stringListField("main_colors"),
		SecondaryColors: m.stringListField("secondary_colors"),
		GarmentType:     m.stringField("garment_type"),
		Pattern:         m.stringField("pattern"),
		Material:        m.stringField("material"),
		Style:           m.stringField("style"),
		Season:          m.stringField("season"),
		Occasion:        m.stringField("occasion"),
		Fit:             m.stringField("fit"),
		Brand:           m.stringField("brand"),
	}
}

// UnmarshalJSON implements the best-effort decode for attribute payloads.
func (a *ClothingAttributes) UnmarshalJSON(data []byte) error {
	*a = DecodeAttributes(data)
	return nil
}

// DecodeItem turns any JSON value into a usable ClothingItem. A missing or
// malformed id is replaced with a fresh random one rather than leaving the
// record unusable.
func DecodeItem(data []byte) ClothingItem {
	m := parseObject(data)

	id := m.stringField("id")
	if id == "" {
		id = uuid.NewString()
	}

	var attrs ClothingAttributes
	if raw, ok := m["attributes"]; ok {
		attrs = DecodeAttributes(raw)
	} else {
		attrs = DecodeAttributes(nil)
	}

	return ClothingItem{
		ID:         id,
		Attributes: attrs,
		ImageURL:   m.stringField("image_url"),
		DateAdded:  m.timeField("created_at", time.Now),
	}
}

// UnmarshalJSON implements the best-effort decode for item payloads.
func (c *ClothingItem) UnmarshalJSON(data []byte) error {
	*c = DecodeItem(data)
	return nil
}

// MarshalJSON mirrors the wire format the backend expects, with the
// timestamp rendered as ISO 8601 with fractional seconds.
func (c ClothingItem) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID         string             `json:"id"`
		Attributes ClothingAttributes `json:"attributes"`
		ImageURL   string             `json:"image_url,omitempty"`
		DateAdded  string             `json:"created_at"`
	}
	return json.Marshal(wire{
		ID:         c.ID,
		Attributes: c.Attributes,
		ImageURL:   c.ImageURL,
		DateAdded:  c.DateAdded.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}
