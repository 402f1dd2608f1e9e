// Package geo provides great-circle distance computation.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used by the haversine formula.
const EarthRadiusMiles = 3958.8

// Distance returns the great-circle distance in miles between two points
// given in degrees. It is symmetric and returns 0 for identical points.
// Coordinates are not validated here; callers reject out-of-range values
// before they reach this package.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
