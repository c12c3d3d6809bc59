// Package mapview holds the state of the result map: reference and address markers, centre, zoom and
// bounds. The batch pipeline never touches it; the UI layer builds a Scene from a finished batch.
package mapview

import (
	"fmt"
	"slices"
	"sync"

	"github.com/UnknownOlympus/nearby/internal/geo"
	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/google/uuid"
)

// Default view.
var DefaultCenter = models.Coordinates{Longitude: 116.397428, Latitude: 39.90923}

const (
	DefaultZoom = 11
	ResultZoom  = 12
)

// ReferenceTitle is the title of the reference marker.
const ReferenceTitle = "我的位置"

// MarkerKind tells reference and address markers apart.
type MarkerKind string

const (
	KindReference MarkerKind = "reference"
	KindAddress   MarkerKind = "address"
)

// Marker is one pin on the map.
type Marker struct {
	ID         string
	Position   models.Coordinates
	Title      string
	Kind       MarkerKind
	Rank       int      // 1-based position in the sorted results, 0 for the reference
	DistanceKm *float64 // nil for the reference
}

// Scene is the explicit map state object. It is safe for concurrent use.
type Scene struct {
	mu      sync.RWMutex
	center  models.Coordinates
	zoom    int
	bounds  *geo.Box
	markers []Marker
}

// NewScene returns an empty scene at the default view.
func NewScene() *Scene {
	return &Scene{center: DefaultCenter, zoom: DefaultZoom}
}

// AddMarker adds m and returns its ID. An empty ID is generated.
func (s *Scene) AddMarker(m Marker) string {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, m)

	return m.ID
}

// RemoveMarker removes the marker with id and reports whether it existed.
func (s *Scene) RemoveMarker(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.markers, func(m Marker) bool { return m.ID == id })
	if idx < 0 {
		return false
	}
	s.markers = slices.Delete(s.markers, idx, idx+1)

	return true
}

// ClearMarkers removes every marker.
func (s *Scene) ClearMarkers() {
	s.mu.Lock()
	s.markers = nil
	s.mu.Unlock()
}

// SetCenter moves the view.
func (s *Scene) SetCenter(center models.Coordinates, zoom int) {
	s.mu.Lock()
	s.center = center
	s.zoom = zoom
	s.mu.Unlock()
}

// FitBounds sets the view to the bounding box of points and centres it on the box centre.
// Fewer than two points leave the view unchanged.
func (s *Scene) FitBounds(points []models.Coordinates) bool {
	if len(points) < 2 {
		return false
	}
	box, ok := geo.Bounds(points)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = &box
	s.center = box.Center()

	return true
}

// Reset clears markers and bounds and restores the default view.
func (s *Scene) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = nil
	s.bounds = nil
	s.center = DefaultCenter
	s.zoom = DefaultZoom
}

// Markers returns a copy of the markers in insertion order.
func (s *Scene) Markers() []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.markers)
}

// View returns the centre, zoom and bounds (nil when not fitted).
func (s *Scene) View() (models.Coordinates, int, *geo.Box) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.center, s.zoom, s.bounds
}

// SceneFromBatch places the reference marker and one marker per resolved address, in ranked order.
func SceneFromBatch(result *models.BatchResult) *Scene {
	scene := NewScene()
	scene.SetCenter(result.Reference, ResultZoom)
	scene.AddMarker(Marker{Position: result.Reference, Title: ReferenceTitle, Kind: KindReference})

	positions := []models.Coordinates{result.Reference}
	rank := 0
	for _, res := range result.Results {
		if res.Location == nil {
			continue
		}
		rank++
		km := *res.Distance / 1000
		scene.AddMarker(Marker{
			Position:   *res.Location,
			Title:      fmt.Sprintf("%d. %s (%.2f km)", rank, res.Address, km),
			Kind:       KindAddress,
			Rank:       rank,
			DistanceKm: &km,
		})
		positions = append(positions, *res.Location)
	}

	scene.FitBounds(positions)

	return scene
}
