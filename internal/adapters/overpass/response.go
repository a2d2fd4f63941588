package overpass

import (
	"strconv"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// coords returns the element position, using center for ways and relations.
func (e element) coords() (domain.Coordinate, bool) {
	if e.Lat != nil && e.Lon != nil {
		return domain.Coordinate{Lat: *e.Lat, Lon: *e.Lon}, true
	}
	if e.Center != nil {
		return domain.Coordinate{Lat: e.Center.Lat, Lon: e.Center.Lon}, true
	}
	return domain.Coordinate{}, false
}

// toRawPOIs converts elements, skipping those without a usable position.
func (r response) toRawPOIs() []domain.RawPOI {
	pois := make([]domain.RawPOI, 0, len(r.Elements))
	for _, e := range r.Elements {
		loc, ok := e.coords()
		if !ok || loc.Validate() != nil {
			continue
		}
		pois = append(pois, domain.RawPOI{
			ID:       strconv.FormatInt(e.ID, 10),
			Location: loc,
			Tags:     e.Tags,
		})
	}
	return pois
}
