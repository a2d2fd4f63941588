package domain

import "fmt"

// Coordinate represents a geographic coordinate (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports a BuildError when the coordinate is outside WGS 84 ranges.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return &BuildError{Field: "lat", Reason: fmt.Sprintf("%f is outside [-90, 90]", c.Lat)}
	}
	if c.Lon < -180 || c.Lon > 180 {
		return &BuildError{Field: "lon", Reason: fmt.Sprintf("%f is outside [-180, 180]", c.Lon)}
	}
	return nil
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// SavedPlace is a named origin preset.
type SavedPlace struct {
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}

// DefaultPlaceName is the preset used when nothing else is configured.
const DefaultPlaceName = "New York - Lower Manhattan"

// SavedPlaces returns the built-in origin presets, sorted by name.
func SavedPlaces() []SavedPlace {
	return []SavedPlace{
		{Name: "Bangalore - Brigade Road", Location: Coordinate{Lat: 12.9719, Lon: 77.6086}},
		{Name: "Berlin - TV Tower", Location: Coordinate{Lat: 52.5208, Lon: 13.4095}},
		{Name: "Dubai - Burj Khalifa", Location: Coordinate{Lat: 25.1972, Lon: 55.2744}},
		{Name: "Los Angeles - Downtown", Location: Coordinate{Lat: 34.0522, Lon: -118.2437}},
		{Name: "New York - Lower Manhattan", Location: Coordinate{Lat: 40.7075, Lon: -74.0113}},
		{Name: "Paris - Eiffel Tower", Location: Coordinate{Lat: 48.8584, Lon: 2.2945}},
		{Name: "Rome - Colosseum", Location: Coordinate{Lat: 41.8902, Lon: 12.4922}},
		{Name: "São Paulo - Downtown", Location: Coordinate{Lat: -23.5505, Lon: -46.6333}},
		{Name: "Sydney - Downtown", Location: Coordinate{Lat: -33.8688, Lon: 151.2093}},
		{Name: "Tokyo - Tokyo Tower", Location: Coordinate{Lat: 35.6586, Lon: 139.7454}},
	}
}

// FindPlace looks up a saved place by exact name.
func FindPlace(name string) (SavedPlace, bool) {
	for _, p := range SavedPlaces() {
		if p.Name == name {
			return p, true
		}
	}
	return SavedPlace{}, false
}
