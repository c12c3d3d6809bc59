package geocoding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("geocode cache miss")

// Cache stores resolved positions between runs.
type Cache interface {
	Get(ctx context.Context, key string) (*models.Coordinates, error)
	Set(ctx context.Context, key string, coords models.Coordinates, ttl time.Duration) error
}

// CacheObserver receives cache hit/miss notifications. metrics.Metrics satisfies it.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// CachedProvider decorates a Provider with a position cache. Cache faults are logged and never fail
// a lookup. Only successful lookups are stored.
type CachedProvider struct {
	next     Provider
	cache    Cache
	name     string
	ttl      time.Duration
	observer CacheObserver
	log      *slog.Logger
}

// NewCachedProvider wraps next. name distinguishes providers sharing one cache.
func NewCachedProvider(next Provider, cache Cache, name string, ttl time.Duration, log *slog.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, name: name, ttl: ttl, log: log}
}

// WithObserver attaches a hit/miss observer and returns the provider.
func (cp *CachedProvider) WithObserver(observer CacheObserver) *CachedProvider {
	cp.observer = observer
	return cp
}

// Geocode answers from the cache when possible and falls back to the wrapped provider.
func (cp *CachedProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	key := CacheKey(cp.name, address)

	coords, err := cp.cache.Get(ctx, key)
	switch {
	case err == nil:
		cp.log.DebugContext(ctx, "Geocode cache hit", "address", address)
		if cp.observer != nil {
			cp.observer.CacheHit()
		}
		return coords, nil
	case !errors.Is(err, ErrCacheMiss):
		cp.log.WarnContext(ctx, "Geocode cache read failed", "key", key, "error", err)
	}
	if cp.observer != nil {
		cp.observer.CacheMiss()
	}

	coords, err = cp.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if err = cp.cache.Set(ctx, key, *coords, cp.ttl); err != nil {
		cp.log.WarnContext(ctx, "Geocode cache write failed", "key", key, "error", err)
	}

	return coords, nil
}

// LocateIP is passed through uncached when the wrapped provider supports it.
func (cp *CachedProvider) LocateIP(ctx context.Context) (*IPLocation, error) {
	locator, ok := cp.next.(IPLocator)
	if !ok {
		return nil, ErrIPLocationUnsupported
	}
	return locator.LocateIP(ctx)
}

// Unwrap returns the decorated provider.
func (cp *CachedProvider) Unwrap() Provider { return cp.next }

// CacheKey builds the cache key for an address looked up through the named provider.
func CacheKey(provider, address string) string {
	return "geocode:" + provider + ":" + strings.TrimSpace(address)
}

// SupportsIPLocation reports whether p can serve the IP tier, looking through decorators.
func SupportsIPLocation(p Provider) bool {
	for p != nil {
		if cp, ok := p.(*CachedProvider); ok {
			p = cp.Unwrap()
			continue
		}
		_, ok := p.(IPLocator)
		return ok
	}
	return false
}
