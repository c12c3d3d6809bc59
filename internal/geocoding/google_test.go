package geocoding_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/nearby/internal/geocoding"
	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleProvider_Geocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address)

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		require.ErrorIs(t, err, geocoding.ErrTransport)
		assert.Equal(t, models.KindTransport, models.KindOf(err))
		mockClient.AssertExpectations(t)
	})

	t.Run("network failure keeps its cause", func(t *testing.T) {
		address := "上海市浦东新区陆家嘴"
		req := &maps.GeocodingRequest{Address: address}
		dialErr := errors.New("dial tcp 142.250.72.10:443: connect: connection refused")

		mockClient.On("Geocode", ctx, req).Return(nil, dialErr).Once()

		_, err := provider.Geocode(ctx, address)

		require.ErrorIs(t, err, dialErr)
		assert.Equal(t, models.KindTransport, models.KindOf(err))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("api status is a provider error with its code", func(t *testing.T) {
		address := "北京市朝阳区三里屯"
		req := &maps.GeocodingRequest{Address: address}
		statusErr := errors.New("maps: REQUEST_DENIED - The provided API key is invalid.")

		mockClient.On("Geocode", ctx, req).Return(nil, statusErr).Once()

		_, err := provider.Geocode(ctx, address)

		var providerErr *geocoding.ProviderError
		require.ErrorAs(t, err, &providerErr)
		assert.Equal(t, "REQUEST_DENIED", providerErr.Code)
		assert.Equal(t, models.KindProvider, models.KindOf(err))
		assert.Contains(t, err.Error(), "REQUEST_DENIED")
		assert.Contains(t, err.Error(), "The provided API key is invalid.")
	})

	t.Run("zero results status means not found", func(t *testing.T) {
		address := "火星基地"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, errors.New("maps: ZERO_RESULTS - ")).Once()

		_, err := provider.Geocode(ctx, address)

		require.ErrorIs(t, err, geocoding.ErrAddressNotFound)
		assert.Contains(t, err.Error(), address)
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrAddressNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("successful geocoding", func(t *testing.T) {
		address := "北京市东城区王府井大街"
		req := &maps.GeocodingRequest{Address: address}
		mockResponse := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 39.9139, Lng: 116.4105}}},
		}

		mockClient.On("Geocode", ctx, req).Return(mockResponse, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.NotNil(t, coords)
		require.InEpsilon(t, 39.9139, coords.Latitude, 0.0001)
		require.InEpsilon(t, 116.4105, coords.Longitude, 0.0001)
		mockClient.AssertExpectations(t)
	})
}

func TestGoogleProvider_LocateIP(t *testing.T) {
	ctx := t.Context()
	req := &maps.GeolocationRequest{ConsiderIP: true}

	t.Run("located", func(t *testing.T) {
		mockClient := mocks.NewGoogleAPIClient(t)
		provider := geocoding.NewGoogleProvider(mockClient, slog.Default())

		mockClient.On("Geolocate", ctx, req).
			Return(&maps.GeolocationResult{Location: maps.LatLng{Lat: 31.23, Lng: 121.47}, Accuracy: 5000}, nil).
			Once()

		loc, err := provider.LocateIP(ctx)

		require.NoError(t, err)
		assert.InEpsilon(t, 121.47, loc.Position.Longitude, 1e-9)
		assert.InEpsilon(t, 31.23, loc.Position.Latitude, 1e-9)
	})

	t.Run("api returns error", func(t *testing.T) {
		mockClient := mocks.NewGoogleAPIClient(t)
		provider := geocoding.NewGoogleProvider(mockClient, slog.Default())

		mockClient.On("Geolocate", ctx, req).Return(nil, assert.AnError).Once()

		loc, err := provider.LocateIP(ctx)

		require.Nil(t, loc)
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, models.KindTransport, models.KindOf(err))
	})

	t.Run("api status error", func(t *testing.T) {
		mockClient := mocks.NewGoogleAPIClient(t)
		provider := geocoding.NewGoogleProvider(mockClient, slog.Default())

		mockClient.On("Geolocate", ctx, req).Return(nil, errors.New("maps: OVER_QUERY_LIMIT - quota")).Once()

		loc, err := provider.LocateIP(ctx)

		require.Nil(t, loc)
		assert.Equal(t, models.KindProvider, models.KindOf(err))
		assert.Contains(t, err.Error(), "OVER_QUERY_LIMIT")
	})

	t.Run("nil result", func(t *testing.T) {
		mockClient := mocks.NewGoogleAPIClient(t)
		provider := geocoding.NewGoogleProvider(mockClient, slog.Default())

		mockClient.On("Geolocate", ctx, req).Return(nil, nil).Once()

		loc, err := provider.LocateIP(ctx)

		require.Nil(t, loc)
		require.ErrorIs(t, err, geocoding.ErrNoRectangle)
	})
}
