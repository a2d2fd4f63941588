package usecases

import (
	"cmp"
	"slices"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// CategoryGroup is one section of the list view.
type CategoryGroup struct {
	Label string               `json:"label"`
	Color string               `json:"color"`
	POIs  []domain.EnrichedPOI `json:"pois"`
}

// GroupByCategory buckets pois by category label, in taxonomy order with
// domain.OtherLabel last. Each group is sorted by distance ascending.
func GroupByCategory(pois []domain.EnrichedPOI, taxonomy *domain.Taxonomy) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, p := range pois {
		label := p.CategoryOrOther()
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, CategoryGroup{Label: label, Color: taxonomy.Color(label)})
		}
		groups[i].POIs = append(groups[i].POIs, p)
	}

	slices.SortStableFunc(groups, func(a, b CategoryGroup) int {
		return cmp.Compare(taxonomy.Order(a.Label), taxonomy.Order(b.Label))
	})
	for _, g := range groups {
		SortByDistance(g.POIs)
	}
	return groups
}

// SortByDistance orders pois nearest first; equal distances keep input order.
func SortByDistance(pois []domain.EnrichedPOI) {
	slices.SortStableFunc(pois, func(a, b domain.EnrichedPOI) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
}
