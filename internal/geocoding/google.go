package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/nearby/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It geocodes addresses and estimates
// the caller position through the Geolocation API.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

// GoogleAPIClient is the subset of *maps.Client the provider uses.
type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// googleStatusPrefix starts every API status error of the maps client ("maps: STATUS - message").
const googleStatusPrefix = "maps: "

// NewGoogleProvider initializes a new GoogleProvider with the given client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode takes a context and an address string as input, and returns the geographical coordinates
// (longitude and latitude) of the provided address using the Google Maps Geocoding API.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	req := maps.GeocodingRequest{Address: address}
	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		err = googleError("geocode failed", err)
		var providerErr *ProviderError
		if errors.As(err, &providerErr) && providerErr.Code == "ZERO_RESULTS" {
			return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
		}
		return nil, err
	}

	if len(geocodeResponse) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}
	coords := geocodeResponse[0].Geometry.Location

	return &models.Coordinates{Longitude: coords.Lng, Latitude: coords.Lat}, nil
}

// LocateIP asks the Geolocation API to place the caller by its IP address only.
func (gp *GoogleProvider) LocateIP(ctx context.Context) (*IPLocation, error) {
	req := maps.GeolocationRequest{ConsiderIP: true}
	result, err := gp.client.Geolocate(ctx, &req)
	if err != nil {
		return nil, googleError("geolocate failed", err)
	}
	if result == nil {
		return nil, ErrNoRectangle
	}

	gp.log.DebugContext(ctx, "Google IP location",
		"lng", result.Location.Lng,
		"lat", result.Location.Lat,
		"accuracy", result.Accuracy)

	return &IPLocation{
		Position: models.Coordinates{Longitude: result.Location.Lng, Latitude: result.Location.Lat},
	}, nil
}

// googleError classifies a maps client error. API statuses become a ProviderError carrying the status
// code; anything else (network, timeout, cancellation) is a transport failure.
func googleError(info string, err error) error {
	msg := err.Error()
	if !strings.HasPrefix(msg, googleStatusPrefix) {
		return fmt.Errorf("%w: google %s: %w", ErrTransport, info, err)
	}

	status, _, _ := strings.Cut(strings.TrimPrefix(msg, googleStatusPrefix), " - ")
	return &ProviderError{Provider: "google", Info: info, Code: strings.TrimSpace(status), Err: err}
}
