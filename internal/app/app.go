// Package app wires the configured components into a runnable pipeline. Both binaries use it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/nearby/internal/config"
	"github.com/UnknownOlympus/nearby/internal/events"
	"github.com/UnknownOlympus/nearby/internal/geocoding"
	"github.com/UnknownOlympus/nearby/internal/handlers"
	"github.com/UnknownOlympus/nearby/internal/metrics"
	"github.com/UnknownOlympus/nearby/internal/repository"
	"github.com/UnknownOlympus/nearby/internal/service"
	"github.com/UnknownOlympus/nearby/internal/settings"
)

// App holds the long-lived components.
type App struct {
	Store       repository.Interface
	Settings    *settings.Resolver
	Batches     *service.BatchService
	NewProvider service.ProviderFactory
	Cache       *geocoding.RedisCache // Cache is nil when Redis is not configured or unreachable.

	closers []func() error
}

// HealthChecks lists the connections reported by /healthz.
func (a *App) HealthChecks() []handlers.HealthCheck {
	checks := []handlers.HealthCheck{{Name: "settings store", Checker: a.Store}}
	if a.Cache != nil {
		checks = append(checks, handlers.HealthCheck{Name: "geocode cache", Checker: a.Cache})
	}
	return checks
}

// New opens the settings store and the optional cache and broker connections.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, appMetrics *metrics.Metrics) (*App, error) {
	app := &App{}

	store, err := app.openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.Settings = settings.NewResolver(store, cfg.Defaults, log)

	var cache geocoding.Cache
	if cfg.Redis.Addr != "" {
		redisCache, errCache := geocoding.NewRedisCache(ctx, geocoding.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errCache != nil {
			log.WarnContext(ctx, "Geocode cache unavailable, continuing without it", "error", errCache)
		} else {
			cache = redisCache
			app.Cache = redisCache
			app.closers = append(app.closers, redisCache.Close)
			log.InfoContext(ctx, "Geocode cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
		}
	}

	var publisher service.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, errKafka := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if errKafka != nil {
			_ = app.Close()
			return nil, errKafka
		}
		publisher = kafkaPublisher
		app.closers = append(app.closers, kafkaPublisher.Close)
	}

	app.NewProvider = NewProviderFactory(cfg, cache, appMetrics, log)
	app.Batches = service.NewBatchService(
		log,
		app.Settings,
		app.NewProvider,
		cfg.Provider.Type,
		appMetrics,
		publisher,
		service.Options{
			AddressPrefix:   cfg.AddrPrefix,
			PositionOptions: cfg.PositionOptions(),
			Box:             cfg.Locator.Box,
			BoxMode:         cfg.Locator.BoxMode,
		},
	)

	return app, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Interface, error) {
	switch cfg.Store.Type {
	case config.StorePostgres:
		pool, err := repository.NewDatabase(
			ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		repo := repository.NewRepository(pool, log)
		if err = repo.EnsureSchema(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		return repo, nil
	default:
		repo, err := repository.OpenSQLite(ctx, cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings store: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		return repo, nil
	}
}

// Close releases every connection opened by New, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewProviderFactory builds one provider per run from the run's REST key. A non-nil cache wraps it.
func NewProviderFactory(
	cfg *config.Config,
	cache geocoding.Cache,
	observer geocoding.CacheObserver,
	log *slog.Logger,
) service.ProviderFactory {
	return func(snap settings.Snapshot) (geocoding.Provider, error) {
		provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
			Type:      geocoding.ProviderType(cfg.Provider.Type),
			APIKey:    snap.RESTAPIKey,
			RateLimit: cfg.Provider.RateLimit,
			Language:  cfg.Provider.Language,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		if cache == nil {
			return provider, nil
		}

		return geocoding.NewCachedProvider(provider, cache, cfg.Provider.Type, cfg.Redis.TTL, log).
			WithObserver(observer), nil
	}
}
