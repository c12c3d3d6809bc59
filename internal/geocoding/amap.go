package geocoding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/nearby/internal/models"
	"golang.org/x/time/rate"
)

// AMapBaseURL -- AMap REST API v3 base URL.
const AMapBaseURL = "https://restapi.amap.com/v3"

const amapStatusOK = "1"

// AMapProvider implements geocoding and IP location using the AMap REST API.
type AMapProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the AMap API
	apiKey  string        // REST API key
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Client-side QPS limiter
}

// amapGeocodeResponse is the subset of /geocode/geo the pipeline needs.
type amapGeocodeResponse struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
	Geocodes []struct {
		FormattedAddress flexString `json:"formatted_address"`
		Location         flexString `json:"location"` // "lng,lat"
	} `json:"geocodes"`
}

// amapIPResponse is the subset of /ip the pipeline needs.
type amapIPResponse struct {
	Status    string     `json:"status"`
	Info      string     `json:"info"`
	InfoCode  string     `json:"infocode"`
	City      flexString `json:"city"`
	Rectangle flexString `json:"rectangle"` // "lng1,lat1;lng2,lat2"
}

// flexString decodes a JSON string and tolerates the empty arrays AMap sends in place of missing values.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		*f = ""
		return nil
	}

	var value string
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return err
	}
	*f = flexString(value)

	return nil
}

// NewAMapProvider creates a new AMap provider. A non-positive qps disables the client-side limiter.
func NewAMapProvider(apiKey string, qps int, log *slog.Logger) *AMapProvider {
	const timeout = 10

	limit := rate.Inf
	burst := 0
	if qps > 0 {
		limit = rate.Limit(qps)
		burst = qps
	}

	return &AMapProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL: AMapBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// NewAMapProviderWithClient allows injecting a custom HTTP client, base URL and limiter.
func NewAMapProviderWithClient(
	client HTTPClient,
	baseURL string,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *AMapProvider {
	return &AMapProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts an address into coordinates using the first candidate AMap returns.
func (ap *AMapProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	ap.log.DebugContext(ctx, "Geocoding using AMap", "address", address)

	query := url.Values{}
	query.Set("address", address)
	query.Set("key", ap.apiKey)
	query.Set("batch", "false")
	query.Set("output", "JSON")

	var resp amapGeocodeResponse
	if err := ap.get(ctx, "/geocode/geo", query, &resp); err != nil {
		return nil, err
	}

	if resp.Status != amapStatusOK {
		return nil, &ProviderError{Provider: "amap", Info: resp.Info, Code: resp.InfoCode}
	}
	if len(resp.Geocodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}

	coords, err := parseLngLat(string(resp.Geocodes[0].Location))
	if err != nil {
		return nil, err
	}

	ap.log.DebugContext(ctx, "AMap found result",
		"address", address,
		"formatted", string(resp.Geocodes[0].FormattedAddress),
		"lng", coords.Longitude,
		"lat", coords.Latitude)

	return coords, nil
}

// LocateIP estimates the caller position from its IP address. The first corner of the reported city
// rectangle is used as the position.
func (ap *AMapProvider) LocateIP(ctx context.Context) (*IPLocation, error) {
	query := url.Values{}
	query.Set("key", ap.apiKey)
	query.Set("output", "JSON")

	var resp amapIPResponse
	if err := ap.get(ctx, "/ip", query, &resp); err != nil {
		return nil, err
	}

	if resp.Status != amapStatusOK {
		return nil, &ProviderError{Provider: "amap", Info: resp.Info, Code: resp.InfoCode}
	}

	rectangle := strings.TrimSpace(string(resp.Rectangle))
	if rectangle == "" {
		return nil, ErrNoRectangle
	}

	corner, _, _ := strings.Cut(rectangle, ";")
	coords, err := parseLngLat(corner)
	if err != nil {
		return nil, fmt.Errorf("rectangle %q: %w", rectangle, err)
	}

	ap.log.DebugContext(ctx, "AMap IP location", "city", string(resp.City), "rectangle", rectangle)

	return &IPLocation{Position: *coords, City: string(resp.City), Rectangle: rectangle}, nil
}

// get performs one rate-limited GET request and decodes the JSON body into dest.
func (ap *AMapProvider) get(ctx context.Context, path string, query url.Values, dest any) error {
	if err := ap.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", ErrTransport, err)
	}

	reqURL := ap.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ap.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		ap.log.ErrorContext(ctx, "AMap API error", "path", path, "status", resp.StatusCode, "body", string(body))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err = json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}

	return nil
}

// parseLngLat parses a "lng,lat" pair.
func parseLngLat(raw string) (*models.Coordinates, error) {
	lngRaw, latRaw, found := strings.Cut(strings.TrimSpace(raw), ",")
	if !found {
		return nil, fmt.Errorf("%w: location %q is not a lng,lat pair", ErrParse, raw)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid longitude %q", ErrParse, lngRaw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid latitude %q", ErrParse, latRaw)
	}

	return &models.Coordinates{Longitude: lng, Latitude: lat}, nil
}
