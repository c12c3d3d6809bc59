package models

import "fmt"

// Coordinates represents a geographical point defined by its longitude and latitude in degrees.
type Coordinates struct {
	Longitude float64 `json:"lng"` // Longitude of the geographical point.
	Latitude  float64 `json:"lat"` // Latitude of the geographical point.
}

// String renders the point in the "lng,lat" order used by the geocoding providers.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Longitude, c.Latitude)
}
