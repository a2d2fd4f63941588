package usecases

import "github.com/samirrijal/osmdash/internal/core/domain"

// Filter returns the POIs whose category is in selected, preserving input
// order. An empty selection yields an empty result: the selection is an
// allow-list, never a bypass. Unclassified POIs are never returned.
func Filter(pois []domain.EnrichedPOI, selected []string) []domain.EnrichedPOI {
	out := []domain.EnrichedPOI{}
	if len(selected) == 0 {
		return out
	}

	allow := make(map[string]struct{}, len(selected))
	for _, l := range selected {
		allow[l] = struct{}{}
	}

	for _, p := range pois {
		if !p.Classified() {
			continue
		}
		if _, ok := allow[p.Category]; ok {
			out = append(out, p)
		}
	}
	return out
}
