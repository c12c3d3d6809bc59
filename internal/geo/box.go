package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// Box is a longitude/latitude rectangle. Bounds are inclusive.
type Box struct {
	MinLongitude float64 `json:"min_lng"`
	MinLatitude  float64 `json:"min_lat"`
	MaxLongitude float64 `json:"max_lng"`
	MaxLatitude  float64 `json:"max_lat"`
}

// DefaultBox is the validity box applied to device positions unless configured otherwise.
var DefaultBox = Box{MinLongitude: 73, MinLatitude: 18, MaxLongitude: 135, MaxLatitude: 54}

// ErrInvalidBox is returned by ParseBox for malformed input.
var ErrInvalidBox = errors.New("invalid bounding box")

const boxComponents = 4

// ParseBox parses "minLng,minLat,maxLng,maxLat".
func ParseBox(raw string) (Box, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != boxComponents {
		return Box{}, fmt.Errorf("%w: expected 4 comma-separated values, got %q", ErrInvalidBox, raw)
	}

	values := make([]float64, boxComponents)
	for idx, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Box{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBox, part)
		}
		values[idx] = value
	}

	box := Box{MinLongitude: values[0], MinLatitude: values[1], MaxLongitude: values[2], MaxLatitude: values[3]}
	if box.MinLongitude > box.MaxLongitude || box.MinLatitude > box.MaxLatitude {
		return Box{}, fmt.Errorf("%w: minimum exceeds maximum in %q", ErrInvalidBox, raw)
	}

	return box, nil
}

// Contains reports whether the point lies inside the box.
func (b Box) Contains(point models.Coordinates) bool {
	return point.Longitude >= b.MinLongitude && point.Longitude <= b.MaxLongitude &&
		point.Latitude >= b.MinLatitude && point.Latitude <= b.MaxLatitude
}

// SouthWest returns the lower-left corner.
func (b Box) SouthWest() models.Coordinates {
	return models.Coordinates{Longitude: b.MinLongitude, Latitude: b.MinLatitude}
}

// NorthEast returns the upper-right corner.
func (b Box) NorthEast() models.Coordinates {
	return models.Coordinates{Longitude: b.MaxLongitude, Latitude: b.MaxLatitude}
}

// Center returns the arithmetic centre of the box.
func (b Box) Center() models.Coordinates {
	return models.Coordinates{
		Longitude: (b.MinLongitude + b.MaxLongitude) / 2,
		Latitude:  (b.MinLatitude + b.MaxLatitude) / 2,
	}
}

func (b Box) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLongitude, b.MinLatitude, b.MaxLongitude, b.MaxLatitude)
}

// Bounds returns the smallest box containing every point. ok is false for an empty slice.
// Boxes never cross the antimeridian: points on both sides of it span the whole longitude range between them.
func Bounds(points []models.Coordinates) (Box, bool) {
	if len(points) == 0 {
		return Box{}, false
	}

	box := Box{
		MinLongitude: points[0].Longitude,
		MinLatitude:  points[0].Latitude,
		MaxLongitude: points[0].Longitude,
		MaxLatitude:  points[0].Latitude,
	}
	for _, p := range points[1:] {
		box.MinLongitude = min(box.MinLongitude, p.Longitude)
		box.MinLatitude = min(box.MinLatitude, p.Latitude)
		box.MaxLongitude = max(box.MaxLongitude, p.Longitude)
		box.MaxLatitude = max(box.MaxLatitude, p.Latitude)
	}

	return box, true
}
