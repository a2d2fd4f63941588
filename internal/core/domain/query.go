package domain

import "slices"

// Query is the input of a single spatial lookup.
type Query struct {
	Origin Coordinate
	Radius int // meters
	// TagValues restricts results to these raw tag values. Empty means
	// every element carrying the taxonomy's tag key.
	TagValues []string
}

// QueryState is the user-controlled parameter set the scheduler acts on.
type QueryState struct {
	Origin             Coordinate `json:"origin"`
	Radius             int        `json:"radius"`
	SelectedCategories []string   `json:"selected_categories"`
}

// Clone returns a copy that shares no slices with s.
func (s QueryState) Clone() QueryState {
	s.SelectedCategories = slices.Clone(s.SelectedCategories)
	return s
}

// Equal compares two states, treating the selection as a set.
func (s QueryState) Equal(o QueryState) bool {
	if s.Origin != o.Origin || s.Radius != o.Radius {
		return false
	}
	if len(s.SelectedCategories) != len(o.SelectedCategories) {
		return false
	}
	for _, l := range s.SelectedCategories {
		if !slices.Contains(o.SelectedCategories, l) {
			return false
		}
	}
	return true
}

// IsSelected reports whether label is part of the selection.
func (s QueryState) IsSelected(label string) bool {
	return slices.Contains(s.SelectedCategories, label)
}
