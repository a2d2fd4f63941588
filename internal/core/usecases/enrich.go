package usecases

import (
	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/pkg/geospatial"
)

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Coordinate) float64 {
	return geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Enrich attaches the distance from origin to every POI. Categories are left
// empty; see Process for the combined pass.
func Enrich(raw []domain.RawPOI, origin domain.Coordinate) []domain.EnrichedPOI {
	out := make([]domain.EnrichedPOI, len(raw))
	for i, p := range raw {
		out[i] = domain.EnrichedPOI{
			RawPOI:   p,
			Distance: Distance(origin, p.Location),
		}
	}
	return out
}

// Process enriches and classifies a raw result set in a single pass.
func Process(raw []domain.RawPOI, origin domain.Coordinate, taxonomy *domain.Taxonomy) []domain.EnrichedPOI {
	out := Enrich(raw, origin)
	for i := range out {
		out[i].Category, _ = Classify(out[i].Tag(taxonomy.TagKey()), taxonomy)
	}
	return out
}
