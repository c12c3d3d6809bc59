// Package settings resolves user configuration in layers: a value stored by the user wins over a
// deployment default, which wins over the built-in default.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/internal/repository"
)

// Setting keys.
const (
	KeyJSAPIKey       = "amap_js_api_key"
	KeyRESTAPIKey     = "amap_rest_api_key"
	KeySecurityCode   = "amap_security_code"
	KeyManualLocation = "amap_manual_location"
	KeyRequestLimit   = "amap_request_limit"
	KeyRequestDelay   = "amap_request_delay"
	KeyAddresses      = "amap_addresses"
)

// Built-in defaults.
const (
	DefaultRequestLimit = 50
	DefaultRequestDelay = 1000 // milliseconds
)

// Source tells which layer a value came from.
type Source string

const (
	SourceStored     Source = "stored"
	SourceDeployment Source = "deployment"
	SourceBuiltin    Source = "builtin"
	SourceUnset      Source = "unset"
)

var (
	// ErrUnknownKey is returned for keys outside the known set.
	ErrUnknownKey = models.NewKindError(models.KindValidation, "unknown setting")
	// ErrInvalidValue is returned when a value does not parse for its key.
	ErrInvalidValue = models.NewKindError(models.KindConfiguration, "invalid setting value")
)

// Keys lists every known setting key in display order.
var Keys = []string{
	KeyJSAPIKey,
	KeyRESTAPIKey,
	KeySecurityCode,
	KeyManualLocation,
	KeyRequestLimit,
	KeyRequestDelay,
	KeyAddresses,
}

var builtin = map[string]string{
	KeyRequestLimit: strconv.Itoa(DefaultRequestLimit),
	KeyRequestDelay: strconv.Itoa(DefaultRequestDelay),
}

// Entry is one resolved setting.
type Entry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source Source `json:"source"`
}

// Snapshot is the configuration a single batch run works with. It is a value and never changes
// after it was taken.
type Snapshot struct {
	JSAPIKey       string
	RESTAPIKey     string
	SecurityCode   string
	ManualLocation string
	RequestLimit   int
	RequestDelay   time.Duration
}

// HasCredential reports whether a REST key is configured.
func (s Snapshot) HasCredential() bool { return strings.TrimSpace(s.RESTAPIKey) != "" }

// Resolver reads and writes settings through a repository.Interface.
type Resolver struct {
	store    repository.Interface
	defaults map[string]string
	log      *slog.Logger
}

// NewResolver creates a Resolver. deployment holds per-deployment defaults keyed by setting key;
// blank entries are ignored.
func NewResolver(store repository.Interface, deployment map[string]string, log *slog.Logger) *Resolver {
	defaults := make(map[string]string, len(builtin))
	for key, value := range deployment {
		if strings.TrimSpace(value) != "" && IsKnown(key) {
			defaults[key] = value
		}
	}
	return &Resolver{store: store, defaults: defaults, log: log}
}

// IsKnown reports whether key is a known setting.
func IsKnown(key string) bool { return slices.Contains(Keys, key) }

// Get resolves one key across all layers.
func (r *Resolver) Get(ctx context.Context, key string) (Entry, error) {
	if !IsKnown(key) {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	value, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		return Entry{Key: key, Value: value, Source: SourceStored}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return Entry{}, err
	}

	return r.fallback(key), nil
}

func (r *Resolver) fallback(key string) Entry {
	if value, ok := r.defaults[key]; ok {
		return Entry{Key: key, Value: value, Source: SourceDeployment}
	}
	if value, ok := builtin[key]; ok {
		return Entry{Key: key, Value: value, Source: SourceBuiltin}
	}
	return Entry{Key: key, Source: SourceUnset}
}

// All resolves every known key with one store read.
func (r *Resolver) All(ctx context.Context) ([]Entry, error) {
	stored, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(Keys))
	for _, key := range Keys {
		if value, ok := stored[key]; ok {
			entries = append(entries, Entry{Key: key, Value: value, Source: SourceStored})
			continue
		}
		entries = append(entries, r.fallback(key))
	}

	return entries, nil
}

// Set validates and stores a value. An empty value removes the stored value so the lower layers
// apply again.
func (r *Resolver) Set(ctx context.Context, key, value string) error {
	if !IsKnown(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if key != KeyAddresses {
		value = strings.TrimSpace(value)
	}
	if value == "" {
		return r.Delete(ctx, key)
	}
	if err := validate(key, value); err != nil {
		return err
	}

	if err := r.store.Set(ctx, key, value); err != nil {
		return err
	}
	r.log.InfoContext(ctx, "Setting updated", "key", key)

	return nil
}

// Delete removes the stored value of key.
func (r *Resolver) Delete(ctx context.Context, key string) error {
	if !IsKnown(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if err := r.store.Delete(ctx, key); err != nil {
		return err
	}
	r.log.InfoContext(ctx, "Setting reset", "key", key)

	return nil
}

// Snapshot reads all settings once and parses them for a run.
func (r *Resolver) Snapshot(ctx context.Context) (Snapshot, error) {
	entries, err := r.All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read settings: %w", err)
	}

	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}

	limit, err := parseLimit(values[KeyRequestLimit])
	if err != nil {
		return Snapshot{}, err
	}
	delay, err := parseDelay(values[KeyRequestDelay])
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		JSAPIKey:       values[KeyJSAPIKey],
		RESTAPIKey:     values[KeyRESTAPIKey],
		SecurityCode:   values[KeySecurityCode],
		ManualLocation: values[KeyManualLocation],
		RequestLimit:   limit,
		RequestDelay:   delay,
	}, nil
}

func validate(key, value string) error {
	var err error
	switch key {
	case KeyRequestLimit:
		_, err = parseLimit(value)
	case KeyRequestDelay:
		_, err = parseDelay(value)
	}
	return err
}

func parseLimit(raw string) (int, error) {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidValue, KeyRequestLimit, raw)
	}
	return limit, nil
}

func parseDelay(raw string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidValue, KeyRequestDelay, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
