package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/nearby/internal/geo"
	"github.com/UnknownOlympus/nearby/internal/locator"
	"github.com/UnknownOlympus/nearby/internal/settings"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every NEARBY_* variable.
const EnvPrefix = "NEARBY"

// Store types.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds the configuration of the nearby service and CLI.
//
// Fields:
// - Env: The current environment (local, development, production).
// - Port: The port of the HTTP API.
// - Provider: Which geocoding provider to build per run and its client-side tuning.
// - Store: Where user settings are persisted.
// - Redis: Optional geocode cache. Empty Addr disables it.
// - Kafka: Optional batch event publishing. No brokers disables it.
// - Locator: Device position options.
// - AddrPrefix: Prepended to every address before geocoding.
// - Defaults: Per-deployment setting defaults, keyed by setting key.
type Config struct {
	Env        string
	Port       int
	Provider   ProviderConfig
	Store      StoreConfig
	Database   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Locator    LocatorConfig
	AddrPrefix string
	Defaults   map[string]string
}

// ProviderConfig selects the geocoding backend.
type ProviderConfig struct {
	Type      string // amap, google or nominatim
	RateLimit int    // requests per second, 0 means unlimited
	Language  string
}

// StoreConfig selects the settings store.
type StoreConfig struct {
	Type       string
	SQLitePath string
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// RedisConfig configures the geocode cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig configures batch event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LocatorConfig configures the device position strategy.
type LocatorConfig struct {
	Box        geo.Box
	BoxMode    locator.BoxMode
	Timeout    time.Duration
	MaximumAge time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("http.port", "8080")
	v.SetDefault("provider.type", "amap")
	v.SetDefault("provider.rate_limit", "3")
	v.SetDefault("provider.language", "")
	v.SetDefault("store.type", StoreSQLite)
	v.SetDefault("store.sqlite_path", "data/nearby.db")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", "0")
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "nearby.batches")
	v.SetDefault("locator.box", geo.DefaultBox.String())
	v.SetDefault("locator.box_mode", string(locator.BoxModeReject))
	v.SetDefault("locator.timeout", locator.DefaultPositionOptions.Timeout.String())
	v.SetDefault("locator.maximum_age", locator.DefaultPositionOptions.MaximumAge.String())
	v.SetDefault("address_prefix", "")

	// Database variables keep the names shared with the other services of the deployment.
	_ = v.BindEnv("postgres.host", "DB_HOST")
	_ = v.BindEnv("postgres.port", "DB_PORT")
	_ = v.BindEnv("postgres.user", "DB_USERNAME")
	_ = v.BindEnv("postgres.password", "DB_PASSWORD")
	_ = v.BindEnv("postgres.name", "DB_NAME")

	for _, key := range settings.Keys {
		_ = v.BindEnv("defaults." + key)
	}

	return v
}

// MustLoad reads .env (if present) and the environment, and panics on values that do not parse.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := newViper()

	port, err := strconv.Atoi(v.GetString("http.port"))
	if err != nil {
		panic("failed to parse port for http server from configuration")
	}

	rateLimit, err := strconv.Atoi(v.GetString("provider.rate_limit"))
	if err != nil || rateLimit < 0 {
		panic("failed to parse provider rate limit from configuration, must be a non-negative integer")
	}

	storeType := strings.ToLower(v.GetString("store.type"))
	if storeType != StoreSQLite && storeType != StorePostgres {
		panic("unsupported settings store type, must be sqlite or postgres")
	}

	redisDB, err := strconv.Atoi(v.GetString("redis.db"))
	if err != nil {
		panic("failed to parse redis db from configuration, must be an integer")
	}
	redisTTL, err := time.ParseDuration(v.GetString("redis.ttl"))
	if err != nil {
		panic("failed to parse redis ttl from configuration")
	}

	box, err := geo.ParseBox(v.GetString("locator.box"))
	if err != nil {
		panic("failed to parse locator box from configuration")
	}
	boxMode, err := locator.ParseBoxMode(v.GetString("locator.box_mode"))
	if err != nil {
		panic("failed to parse locator box mode from configuration")
	}
	timeout, err := time.ParseDuration(v.GetString("locator.timeout"))
	if err != nil {
		panic("failed to parse locator timeout from configuration")
	}
	maximumAge, err := time.ParseDuration(v.GetString("locator.maximum_age"))
	if err != nil {
		panic("failed to parse locator maximum age from configuration")
	}

	defaults := make(map[string]string, len(settings.Keys))
	for _, key := range settings.Keys {
		if value := v.GetString("defaults." + key); value != "" {
			defaults[key] = value
		}
	}

	return &Config{
		Env:  v.GetString("env"),
		Port: port,
		Provider: ProviderConfig{
			Type:      strings.ToLower(v.GetString("provider.type")),
			RateLimit: rateLimit,
			Language:  v.GetString("provider.language"),
		},
		Store: StoreConfig{
			Type:       storeType,
			SQLitePath: v.GetString("store.sqlite_path"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.name"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       redisDB,
			TTL:      redisTTL,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Locator: LocatorConfig{
			Box:        box,
			BoxMode:    boxMode,
			Timeout:    timeout,
			MaximumAge: maximumAge,
		},
		AddrPrefix: v.GetString("address_prefix"),
		Defaults:   defaults,
	}
}

// PositionOptions returns the device options derived from the locator settings.
func (c *Config) PositionOptions() locator.PositionOptions {
	return locator.PositionOptions{
		Timeout:      c.Locator.Timeout,
		HighAccuracy: true,
		MaximumAge:   c.Locator.MaximumAge,
	}
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
