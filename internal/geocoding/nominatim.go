package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// NominatimBaseURL -- public OpenStreetMap Nominatim search endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// It needs no key and has no IP-location endpoint. Fair use is 1 request/second, which the batch
// delay setting should respect.
type NominatimProvider struct {
	client    HTTPClient
	baseURL   string
	language  string
	userAgent string // required by the Nominatim usage policy
	log       *slog.Logger
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

const nominatimUserAgent = "Nearby-Distance-Ranker/1.0 (https://github.com/UnknownOlympus/nearby)"

// NewNominatimProvider creates a new Nominatim geocoding provider.
func NewNominatimProvider(language string, log *slog.Logger) *NominatimProvider {
	const timeout = 10
	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout * time.Second}, language, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
func NewNominatimProviderWithClient(client HTTPClient, language string, log *slog.Logger) *NominatimProvider {
	if language == "" {
		language = "zh-CN,en"
	}

	return &NominatimProvider{
		client:    client,
		baseURL:   NominatimBaseURL,
		language:  language,
		userAgent: nominatimUserAgent,
		log:       log,
	}
}

// Geocode converts an address to coordinates using the top Nominatim match.
func (np *NominatimProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address)

	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	query.Set("accept-language", np.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, np.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", np.userAgent)

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid latitude %q", ErrParse, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid longitude %q", ErrParse, results[0].Lon)
	}

	np.log.DebugContext(ctx, "Nominatim found result", "address", address, "display_name", results[0].DisplayName)

	return &models.Coordinates{Longitude: lon, Latitude: lat}, nil
}
