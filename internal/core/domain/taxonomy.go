package domain

import (
	"fmt"
	"iter"
	"slices"
)

const (
	// OtherLabel names POIs that match no category.
	OtherLabel = "Other"
	// OtherColor is the display color for OtherLabel and unknown labels.
	OtherColor = "#888888"
	// DefaultTagKey is the raw tag inspected for classification.
	DefaultTagKey = "amenity"
)

// Category groups raw tag values under a user-facing label.
type Category struct {
	Label string   `json:"label" mapstructure:"label"`
	Icon  string   `json:"icon,omitempty" mapstructure:"icon"`
	Color string   `json:"color" mapstructure:"color"`
	Tags  []string `json:"tags" mapstructure:"tags"`
}

// Contains reports whether tag belongs to the category.
func (c Category) Contains(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// Taxonomy is an ordered, immutable set of categories. Declaration order is
// significant: a tag listed by several categories belongs to the first one.
type Taxonomy struct {
	tagKey     string
	categories []Category
}

// NewTaxonomy validates and copies categories into a Taxonomy.
func NewTaxonomy(tagKey string, categories []Category) (*Taxonomy, error) {
	if tagKey == "" {
		tagKey = DefaultTagKey
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("taxonomy: at least one category is required")
	}

	seen := make(map[string]bool, len(categories))
	out := make([]Category, 0, len(categories))
	for i, c := range categories {
		switch {
		case c.Label == "":
			return nil, fmt.Errorf("taxonomy: category %d has no label", i)
		case c.Label == OtherLabel:
			return nil, fmt.Errorf("taxonomy: %q is reserved", OtherLabel)
		case seen[c.Label]:
			return nil, fmt.Errorf("taxonomy: duplicate label %q", c.Label)
		case len(c.Tags) == 0:
			return nil, fmt.Errorf("taxonomy: category %q lists no tags", c.Label)
		}
		seen[c.Label] = true
		if c.Color == "" {
			c.Color = OtherColor
		}
		c.Tags = slices.Clone(c.Tags)
		out = append(out, c)
	}

	return &Taxonomy{tagKey: tagKey, categories: out}, nil
}

// DefaultTaxonomy returns the built-in OSM amenity taxonomy.
func DefaultTaxonomy() *Taxonomy {
	t, err := NewTaxonomy(DefaultTagKey, DefaultCategories())
	if err != nil {
		panic("default taxonomy: " + err.Error())
	}
	return t
}

// DefaultCategories lists the built-in categories in declaration order.
func DefaultCategories() []Category {
	return []Category{
		{Label: "Transport", Icon: "🚗", Color: "#1f77b4", Tags: []string{"charging_station", "bicycle_rental", "bus_station", "parking", "taxi"}},
		{Label: "Food", Icon: "🍔", Color: "#d62728", Tags: []string{"restaurant", "fast_food", "bakery", "butcher", "ice_cream"}},
		{Label: "Café / Bars", Icon: "☕", Color: "#ff9896", Tags: []string{"cafe", "pub", "bar"}},
		{Label: "Shopping / Retail", Icon: "🛍️", Color: "#2ca02c", Tags: []string{"supermarket", "convenience", "marketplace", "clothes", "electronics", "hairdresser", "laundry"}},
		{Label: "Education", Icon: "🏫", Color: "#9467bd", Tags: []string{"school", "kindergarten", "university", "library"}},
		{Label: "Health / Medical", Icon: "🏥", Color: "#17becf", Tags: []string{"clinic", "hospital", "pharmacy", "dentist"}},
		{Label: "Financial Services", Icon: "💰", Color: "#bcbd22", Tags: []string{"bank", "atm", "bureau_de_change"}},
		{Label: "Public Services", Icon: "🏛️", Color: "#7f7f7f", Tags: []string{"police", "fire_station", "post_office", "office"}},
		{Label: "Religious", Icon: "🕍", Color: "#d222a6", Tags: []string{"place_of_worship", "church", "mosque", "temple"}},
	}
}

// TagKey returns the raw tag key used for classification.
func (t *Taxonomy) TagKey() string { return t.tagKey }

// All yields categories in declaration order. Tags must not be modified.
func (t *Taxonomy) All() iter.Seq[Category] {
	return func(yield func(Category) bool) {
		for _, c := range t.categories {
			if !yield(c) {
				return
			}
		}
	}
}

// Categories returns a copy of the categories in declaration order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		c.Tags = slices.Clone(c.Tags)
		out[i] = c
	}
	return out
}

// Labels returns every label in declaration order.
func (t *Taxonomy) Labels() []string {
	labels := make([]string, len(t.categories))
	for i, c := range t.categories {
		labels[i] = c.Label
	}
	return labels
}

// Has reports whether label is declared.
func (t *Taxonomy) Has(label string) bool {
	return t.index(label) >= 0
}

// Color returns the display color for label, OtherColor when unknown.
func (t *Taxonomy) Color(label string) string {
	if i := t.index(label); i >= 0 {
		return t.categories[i].Color
	}
	return OtherColor
}

// Order returns the declaration index of label; OtherLabel and unknown labels
// sort after every declared category.
func (t *Taxonomy) Order(label string) int {
	if i := t.index(label); i >= 0 {
		return i
	}
	return len(t.categories)
}

// TagValues returns the union of tags for the given labels, in declaration
// order and without duplicates. Unknown labels are ignored.
func (t *Taxonomy) TagValues(labels []string) []string {
	var out []string
	for _, c := range t.categories {
		if !slices.Contains(labels, c.Label) {
			continue
		}
		for _, tag := range c.Tags {
			if !slices.Contains(out, tag) {
				out = append(out, tag)
			}
		}
	}
	return out
}

func (t *Taxonomy) index(label string) int {
	return slices.IndexFunc(t.categories, func(c Category) bool { return c.Label == label })
}
