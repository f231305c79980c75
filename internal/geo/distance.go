package geo

import "math"

// earthRadiusMeters is the mean Earth radius used for great-circle math.
const earthRadiusMeters = 6371000

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Sample is a device-reported fix: a point plus the radius of uncertainty
// the device attached to it. Samples are ephemeral and never persisted.
type Sample struct {
	Point
	AccuracyMeters float64 `json:"accuracy_meters"`
}

// DistanceMeters returns the haversine great-circle distance between two
// points on the sphere.
func DistanceMeters(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Pow(math.Sin(dLng/2), 2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
