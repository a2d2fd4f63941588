package domain

// RawPOI is a single tagged point returned by the upstream data source.
type RawPOI struct {
	ID       string            `json:"id"`
	Location Coordinate        `json:"location"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// Tag returns the tag value for key, or "" when absent.
func (p RawPOI) Tag(key string) string {
	if p.Tags == nil {
		return ""
	}
	return p.Tags[key]
}

// Name returns the POI's display name.
func (p RawPOI) Name() string {
	if n := p.Tag("name"); n != "" {
		return n
	}
	return "Unnamed"
}

// EnrichedPOI is a RawPOI with its distance from the query origin and its
// category label. An empty Category means the POI matched no category.
type EnrichedPOI struct {
	RawPOI
	Distance float64 `json:"distance"` // meters from origin
	Category string  `json:"category,omitempty"`
}

// Classified reports whether the POI matched a taxonomy category.
func (p EnrichedPOI) Classified() bool {
	return p.Category != ""
}

// CategoryOrOther returns the category label, or OtherLabel when unclassified.
func (p EnrichedPOI) CategoryOrOther() string {
	if p.Category == "" {
		return OtherLabel
	}
	return p.Category
}
