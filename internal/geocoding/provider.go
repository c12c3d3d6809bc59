package geocoding

import (
	"context"
	"net/http"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// Provider is an interface that defines a method for geocoding an address.
// The Geocode method takes a context and an address string as input,
// and returns the corresponding coordinates and an error if any occurs.
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// IPLocator is implemented by providers that can estimate the caller position from its IP address.
type IPLocator interface {
	LocateIP(ctx context.Context) (*IPLocation, error)
}

// IPLocation is the answer of an IP-location lookup.
type IPLocation struct {
	Position  models.Coordinates // Position is the point reported for the caller.
	City      string             // City is the city name, when the provider reports one.
	Rectangle string             // Rectangle is the raw bounding rectangle, when the provider reports one.
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// IPProvider is a Provider that also serves the IP-location tier.
type IPProvider interface {
	Provider
	IPLocator
}
