package settings_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/internal/repository"
	"github.com/UnknownOlympus/nearby/internal/settings"
	"github.com/UnknownOlympus/nearby/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResolver_Get(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()

	t.Run("stored value wins", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, map[string]string{settings.KeyRequestLimit: "30"}, logger)

		store.On("Get", mock.Anything, settings.KeyRequestLimit).Return("10", nil).Once()

		entry, err := resolver.Get(ctx, settings.KeyRequestLimit)

		require.NoError(t, err)
		assert.Equal(t, settings.Entry{Key: settings.KeyRequestLimit, Value: "10", Source: settings.SourceStored}, entry)
	})

	t.Run("deployment default over builtin", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, map[string]string{settings.KeyRequestLimit: "30"}, logger)

		store.On("Get", mock.Anything, settings.KeyRequestLimit).Return("", repository.ErrNotFound).Once()

		entry, err := resolver.Get(ctx, settings.KeyRequestLimit)

		require.NoError(t, err)
		assert.Equal(t, "30", entry.Value)
		assert.Equal(t, settings.SourceDeployment, entry.Source)
	})

	t.Run("builtin default", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("Get", mock.Anything, settings.KeyRequestDelay).Return("", repository.ErrNotFound).Once()

		entry, err := resolver.Get(ctx, settings.KeyRequestDelay)

		require.NoError(t, err)
		assert.Equal(t, "1000", entry.Value)
		assert.Equal(t, settings.SourceBuiltin, entry.Source)
	})

	t.Run("unset key without default", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, map[string]string{settings.KeyManualLocation: "  "}, logger)

		store.On("Get", mock.Anything, settings.KeyManualLocation).Return("", repository.ErrNotFound).Once()

		entry, err := resolver.Get(ctx, settings.KeyManualLocation)

		require.NoError(t, err)
		assert.Empty(t, entry.Value)
		assert.Equal(t, settings.SourceUnset, entry.Source)
	})

	t.Run("store error", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("Get", mock.Anything, settings.KeyJSAPIKey).Return("", assert.AnError).Once()

		_, err := resolver.Get(ctx, settings.KeyJSAPIKey)

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("unknown key", func(t *testing.T) {
		resolver := settings.NewResolver(mocks.NewInterface(t), nil, logger)

		_, err := resolver.Get(ctx, "theme")

		require.ErrorIs(t, err, settings.ErrUnknownKey)
		assert.Equal(t, models.KindValidation, models.KindOf(err))
	})
}

func TestResolver_Set(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()

	t.Run("valid value is trimmed and stored", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("Set", mock.Anything, settings.KeyRESTAPIKey, "abc").Return(nil).Once()

		require.NoError(t, resolver.Set(ctx, settings.KeyRESTAPIKey, "  abc "))
	})

	t.Run("addresses keep their layout", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("Set", mock.Anything, settings.KeyAddresses, "北京市\n上海市\n").Return(nil).Once()

		require.NoError(t, resolver.Set(ctx, settings.KeyAddresses, "北京市\n上海市\n"))
	})

	t.Run("empty value deletes", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("Delete", mock.Anything, settings.KeyManualLocation).Return(nil).Once()

		require.NoError(t, resolver.Set(ctx, settings.KeyManualLocation, "   "))
	})

	invalid := map[string][2]string{
		"zero limit":       {settings.KeyRequestLimit, "0"},
		"negative limit":   {settings.KeyRequestLimit, "-5"},
		"non-numeric":      {settings.KeyRequestLimit, "many"},
		"negative delay":   {settings.KeyRequestDelay, "-1"},
		"fractional delay": {settings.KeyRequestDelay, "1.5"},
	}
	for name, kv := range invalid {
		t.Run("invalid - "+name, func(t *testing.T) {
			resolver := settings.NewResolver(mocks.NewInterface(t), nil, logger)

			err := resolver.Set(ctx, kv[0], kv[1])

			require.ErrorIs(t, err, settings.ErrInvalidValue)
			assert.Equal(t, models.KindConfiguration, models.KindOf(err))
		})
	}

	t.Run("zero delay is allowed", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("Set", mock.Anything, settings.KeyRequestDelay, "0").Return(nil).Once()

		require.NoError(t, resolver.Set(ctx, settings.KeyRequestDelay, "0"))
	})
}

func TestResolver_Snapshot(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()

	t.Run("layers merged", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, map[string]string{
			settings.KeyRESTAPIKey:   "deploy-key",
			settings.KeyRequestDelay: "200",
		}, logger)

		store.On("List", mock.Anything).Return(map[string]string{
			settings.KeyManualLocation: "北京市天安门",
			settings.KeyRequestLimit:   "3",
		}, nil).Once()

		snap, err := resolver.Snapshot(ctx)

		require.NoError(t, err)
		assert.Equal(t, settings.Snapshot{
			RESTAPIKey:     "deploy-key",
			ManualLocation: "北京市天安门",
			RequestLimit:   3,
			RequestDelay:   200 * time.Millisecond,
		}, snap)
		assert.True(t, snap.HasCredential())
	})

	t.Run("builtin defaults", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("List", mock.Anything).Return(map[string]string{}, nil).Once()

		snap, err := resolver.Snapshot(ctx)

		require.NoError(t, err)
		assert.Equal(t, settings.DefaultRequestLimit, snap.RequestLimit)
		assert.Equal(t, time.Second, snap.RequestDelay)
		assert.False(t, snap.HasCredential())
	})

	t.Run("corrupt stored value", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("List", mock.Anything).Return(map[string]string{settings.KeyRequestDelay: "soon"}, nil).Once()

		_, err := resolver.Snapshot(ctx)

		require.ErrorIs(t, err, settings.ErrInvalidValue)
	})

	t.Run("store error", func(t *testing.T) {
		store := mocks.NewInterface(t)
		resolver := settings.NewResolver(store, nil, logger)

		store.On("List", mock.Anything).Return(nil, assert.AnError).Once()

		_, err := resolver.Snapshot(ctx)

		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestResolver_All(t *testing.T) {
	store := mocks.NewInterface(t)
	resolver := settings.NewResolver(store, nil, slog.Default())

	store.On("List", mock.Anything).Return(map[string]string{settings.KeyJSAPIKey: "js", "stray": "x"}, nil).Once()

	entries, err := resolver.All(t.Context())

	require.NoError(t, err)
	require.Len(t, entries, len(settings.Keys))
	assert.Equal(t, settings.Entry{Key: settings.KeyJSAPIKey, Value: "js", Source: settings.SourceStored}, entries[0])
	assert.Equal(t, settings.SourceBuiltin, entries[4].Source)
}
