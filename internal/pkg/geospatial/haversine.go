package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadius is the spherical radius in meters used for every distance.
const EarthRadius = orb.EarthRadius

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	b := geo.NewBoundAroundPoint(orb.Point{lon, lat}, radiusMeters)
	return b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon()
}

// Offset returns the point distance meters away from (lat, lon) along bearing
// degrees clockwise from north.
func Offset(lat, lon, bearing, distance float64) (float64, float64) {
	p := geo.PointAtBearingAndDistance(orb.Point{lon, lat}, bearing, distance)
	return p.Lat(), p.Lon()
}
