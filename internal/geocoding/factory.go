package geocoding

import (
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeAMap represents the AMap REST geocoding provider.
	ProviderTypeAMap ProviderType = "amap"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
)

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type      ProviderType // Type of provider to create, AMap when empty
	APIKey    string       // API key (AMap REST key or Google key)
	RateLimit int          // Rate limit for requests per second, 0 means unlimited
	Language  string       // Preferred result language (used by Nominatim provider)
	Logger    *slog.Logger // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
//
// Supported provider types:
// - "amap": AMap REST API v3 (requires REST key, supports IP location)
// - "google": Google Maps Geocoding API (requires API key, supports IP location)
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
//
// A missing key for a provider that needs one yields an error wrapping ErrMissingCredential.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeAMap, "":
		return newAMapProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	case ProviderTypeNominatim:
		return NewNominatimProvider(config.Language, config.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

func newAMapProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: amap REST key is empty", ErrMissingCredential)
	}

	return NewAMapProvider(config.APIKey, config.RateLimit, config.Logger), nil
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: google API key is empty", ErrMissingCredential)
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}
	if config.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(config.RateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}
