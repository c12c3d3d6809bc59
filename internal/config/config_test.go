package config_test

import (
	"testing"
	"time"

	"github.com/UnknownOlympus/nearby/internal/config"
	"github.com/UnknownOlympus/nearby/internal/geo"
	"github.com/UnknownOlympus/nearby/internal/locator"
	"github.com/UnknownOlympus/nearby/internal/settings"
	"github.com/stretchr/testify/assert"
)

func Test_MustLoadFromEnv(t *testing.T) {
	t.Setenv("NEARBY_ENV", "local")
	t.Setenv("NEARBY_HTTP_PORT", "9090")
	t.Setenv("NEARBY_PROVIDER_TYPE", "Nominatim")
	t.Setenv("NEARBY_STORE_TYPE", "postgres")
	t.Setenv("DB_HOST", "testHost")
	t.Setenv("DB_PORT", "12345")
	t.Setenv("DB_USERNAME", "admin")
	t.Setenv("DB_PASSWORD", "adminpass")
	t.Setenv("DB_NAME", "testName")
	t.Setenv("NEARBY_REDIS_ADDR", "localhost:6379")
	t.Setenv("NEARBY_REDIS_TTL", "1h")
	t.Setenv("NEARBY_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("NEARBY_LOCATOR_BOX", "100,20,120,40")
	t.Setenv("NEARBY_LOCATOR_BOX_MODE", "warn")
	t.Setenv("NEARBY_ADDRESS_PREFIX", "北京市")
	t.Setenv("NEARBY_DEFAULTS_AMAP_REST_API_KEY", "deploy-key")
	t.Setenv("NEARBY_DEFAULTS_AMAP_REQUEST_LIMIT", "20")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "nominatim", cfg.Provider.Type)
	assert.Equal(t, config.StorePostgres, cfg.Store.Type)
	assert.Equal(t, "testHost", cfg.Database.Host)
	assert.Equal(t, "12345", cfg.Database.Port)
	assert.Equal(t, "admin", cfg.Database.User)
	assert.Equal(t, "adminpass", cfg.Database.Password)
	assert.Equal(t, "testName", cfg.Database.Name)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, geo.Box{MinLongitude: 100, MinLatitude: 20, MaxLongitude: 120, MaxLatitude: 40}, cfg.Locator.Box)
	assert.Equal(t, locator.BoxModeWarn, cfg.Locator.BoxMode)
	assert.Equal(t, "北京市", cfg.AddrPrefix)
	assert.Equal(t, map[string]string{
		settings.KeyRESTAPIKey:   "deploy-key",
		settings.KeyRequestLimit: "20",
	}, cfg.Defaults)
}

func TestMustLoad_Defaults(t *testing.T) {
	cfg := config.MustLoad()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "amap", cfg.Provider.Type)
	assert.Equal(t, 3, cfg.Provider.RateLimit)
	assert.Equal(t, config.StoreSQLite, cfg.Store.Type)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "nearby.batches", cfg.Kafka.Topic)
	assert.Equal(t, geo.DefaultBox, cfg.Locator.Box)
	assert.Equal(t, locator.BoxModeReject, cfg.Locator.BoxMode)
	assert.Equal(t, locator.DefaultPositionOptions, cfg.PositionOptions())
}

func TestMustLoad_Errors(t *testing.T) {
	tests := []struct {
		env   string
		value string
		panic string
	}{
		{"NEARBY_HTTP_PORT", "error_value", "failed to parse port for http server from configuration"},
		{"NEARBY_PROVIDER_RATE_LIMIT", "-1", "failed to parse provider rate limit from configuration, must be a non-negative integer"},
		{"NEARBY_STORE_TYPE", "mongo", "unsupported settings store type, must be sqlite or postgres"},
		{"NEARBY_REDIS_DB", "x", "failed to parse redis db from configuration, must be an integer"},
		{"NEARBY_REDIS_TTL", "forever", "failed to parse redis ttl from configuration"},
		{"NEARBY_LOCATOR_BOX", "1,2,3", "failed to parse locator box from configuration"},
		{"NEARBY_LOCATOR_BOX_MODE", "ignore", "failed to parse locator box mode from configuration"},
		{"NEARBY_LOCATOR_TIMEOUT", "soon", "failed to parse locator timeout from configuration"},
		{"NEARBY_LOCATOR_MAXIMUM_AGE", "old", "failed to parse locator maximum age from configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			assert.PanicsWithValue(t, tt.panic, func() {
				config.MustLoad()
			})
		})
	}
}
