// Package geo holds the geodesic math of the pipeline: the great-circle distance between two points and
// the rectangles used to sanity-check device positions and to frame map markers.
package geo

import (
	"math"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// EarthRadius is the equatorial radius in meters used by the distance calculation.
const EarthRadius = 6378137.0

const distancePrecision = 10000

// Distance returns the great-circle distance in meters between two points, rounded to 4 decimals.
// It is the haversine formula written in terms of the latitude difference and the longitude difference.
func Distance(from, to models.Coordinates) float64 {
	radLat1 := toRadians(from.Latitude)
	radLat2 := toRadians(to.Latitude)
	a := radLat1 - radLat2
	b := toRadians(from.Longitude - to.Longitude)

	s := 2 * math.Asin(math.Sqrt(
		math.Pow(math.Sin(a/2), 2)+math.Cos(radLat1)*math.Cos(radLat2)*math.Pow(math.Sin(b/2), 2),
	))
	s *= EarthRadius

	return math.Round(s*distancePrecision) / distancePrecision
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
