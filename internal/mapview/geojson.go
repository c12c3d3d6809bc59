package mapview

import "encoding/json"

// FeatureCollection is the GeoJSON form of a Scene. Center, Zoom and BBox are foreign members
// consumed by the map widget.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Center   []float64 `json:"center"`
	Zoom     int       `json:"zoom"`
	BBox     []float64 `json:"bbox,omitempty"`
	Features []Feature `json:"features"`
}

// Feature is a single marker.
type Feature struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// Geometry is a GeoJSON Point.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lng, lat]
}

// FeatureProperties carries the marker attributes.
type FeatureProperties struct {
	Title      string     `json:"title"`
	Kind       MarkerKind `json:"kind"`
	Rank       int        `json:"rank,omitempty"`
	DistanceKm *float64   `json:"distance_km,omitempty"`
}

// GeoJSON converts the scene.
func (s *Scene) GeoJSON() FeatureCollection {
	center, zoom, bounds := s.View()
	markers := s.Markers()

	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Center:   []float64{center.Longitude, center.Latitude},
		Zoom:     zoom,
		Features: make([]Feature, 0, len(markers)),
	}
	if bounds != nil {
		fc.BBox = []float64{bounds.MinLongitude, bounds.MinLatitude, bounds.MaxLongitude, bounds.MaxLatitude}
	}

	for _, m := range markers {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			ID:   m.ID,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{m.Position.Longitude, m.Position.Latitude},
			},
			Properties: FeatureProperties{
				Title:      m.Title,
				Kind:       m.Kind,
				Rank:       m.Rank,
				DistanceKm: m.DistanceKm,
			},
		})
	}

	return fc
}

// MarshalJSON encodes the scene as a GeoJSON FeatureCollection.
func (s *Scene) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.GeoJSON())
}
