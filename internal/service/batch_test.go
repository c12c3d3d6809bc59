package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/nearby/internal/geo"
	"github.com/UnknownOlympus/nearby/internal/geocoding"
	"github.com/UnknownOlympus/nearby/internal/locator"
	"github.com/UnknownOlympus/nearby/internal/metrics"
	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/internal/service"
	"github.com/UnknownOlympus/nearby/internal/settings"
	"github.com/UnknownOlympus/nearby/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticSettings struct {
	snap settings.Snapshot
	err  error
}

func (s staticSettings) Snapshot(context.Context) (settings.Snapshot, error) { return s.snap, s.err }

var reference = models.Coordinates{Longitude: 116.4, Latitude: 39.9}

func defaultSnapshot() settings.Snapshot {
	return settings.Snapshot{RESTAPIKey: "rest", RequestLimit: 50}
}

func newService(t *testing.T, snap settings.Snapshot, provider geocoding.Provider, publisher service.Publisher) *service.BatchService {
	t.Helper()
	factory := func(settings.Snapshot) (geocoding.Provider, error) { return provider, nil }
	return service.NewBatchService(
		slog.Default(),
		staticSettings{snap: snap},
		factory,
		"amap",
		metrics.NewMetrics(prometheus.NewRegistry()),
		publisher,
		service.Options{
			PositionOptions: locator.DefaultPositionOptions,
			Box:             geo.DefaultBox,
			BoxMode:         locator.BoxModeReject,
		},
	)
}

func staticDevice() locator.DeviceLocator { return locator.NewStaticLocator(reference) }

func TestProcess_ConcreteScenario(t *testing.T) {
	provider := mocks.NewProvider(t)
	svc := newService(t, defaultSnapshot(), provider, nil)

	provider.On("Geocode", mock.Anything, "北京市朝阳区三里屯").
		Return(&models.Coordinates{Longitude: 116.45, Latitude: 39.93}, nil).Once()
	provider.On("Geocode", mock.Anything, "上海市浦东新区陆家嘴").
		Return(&models.Coordinates{Longitude: 121.5, Latitude: 31.2}, nil).Once()

	result, err := svc.Process(t.Context(), service.BatchRequest{
		Text:    "北京市朝阳区三里屯\n上海市浦东新区陆家嘴",
		Locator: staticDevice(),
	})

	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	first, second := result.Results[0], result.Results[1]
	assert.Equal(t, "北京市朝阳区三里屯", first.Address)
	assert.Equal(t, "上海市浦东新区陆家嘴", second.Address)
	require.NotNil(t, first.Distance)
	require.NotNil(t, second.Distance)
	assert.Less(t, *first.Distance, *second.Distance)
	assert.Equal(t, reference, result.Reference)
	assert.Equal(t, locator.SourceDevice, result.ReferenceSource)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Succeeded())

	status := svc.Status()
	assert.Equal(t, models.StageDone, status.Stage)
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, 2, status.Total)
}

func TestProcess_LimitExceeded(t *testing.T) {
	provider := mocks.NewProvider(t)
	snap := defaultSnapshot()
	snap.RequestLimit = 2
	svc := newService(t, snap, provider, nil)

	result, err := svc.Process(t.Context(), service.BatchRequest{Text: "a\nb\n\nc", Locator: staticDevice()})

	require.Nil(t, result)
	var limitErr *service.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, limitErr.Limit)
	assert.Equal(t, 3, limitErr.Count)
	assert.Contains(t, err.Error(), "2")
	assert.Contains(t, err.Error(), "3")
	assert.Equal(t, models.KindLimitExceeded, models.KindOf(err))
	provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	assert.Equal(t, models.StageFailed, svc.Status().Stage)
}

func TestProcess_FailuresAreDowngradedAndSortedLast(t *testing.T) {
	provider := mocks.NewProvider(t)
	svc := newService(t, defaultSnapshot(), provider, nil)

	provider.On("Geocode", mock.Anything, "bad1").Return(nil, geocoding.ErrAddressNotFound).Once()
	provider.On("Geocode", mock.Anything, "far").
		Return(&models.Coordinates{Longitude: 121.5, Latitude: 31.2}, nil).Once()
	provider.On("Geocode", mock.Anything, "bad2").Return(nil, &geocoding.StatusError{StatusCode: 500}).Once()
	provider.On("Geocode", mock.Anything, "near").
		Return(&models.Coordinates{Longitude: 116.41, Latitude: 39.91}, nil).Once()

	result, err := svc.Process(t.Context(), service.BatchRequest{Text: "bad1\nfar\nbad2\nnear", Locator: staticDevice()})

	require.NoError(t, err)
	addresses := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		addresses = append(addresses, r.Address)
	}
	assert.Equal(t, []string{"near", "far", "bad1", "bad2"}, addresses)
	assert.Equal(t, models.KindProvider, result.Results[2].ErrorKind)
	assert.Equal(t, models.KindTransport, result.Results[3].ErrorKind)
	assert.Contains(t, result.Results[2].Error, "地址解析失败")
	assert.Nil(t, result.Results[2].Location)
	assert.Equal(t, 2, result.Failed())
}

func TestProcess_AddressPrefix(t *testing.T) {
	provider := mocks.NewProvider(t)
	svc := service.NewBatchService(
		slog.Default(),
		staticSettings{snap: defaultSnapshot()},
		func(settings.Snapshot) (geocoding.Provider, error) { return provider, nil },
		"amap",
		metrics.NewMetrics(prometheus.NewRegistry()),
		nil,
		service.Options{AddressPrefix: "北京市", Box: geo.DefaultBox},
	)

	provider.On("Geocode", mock.Anything, "北京市朝阳区").Return(&reference, nil).Once()

	result, err := svc.Process(t.Context(), service.BatchRequest{Text: "朝阳区", Locator: staticDevice()})

	require.NoError(t, err)
	assert.Equal(t, "朝阳区", result.Results[0].Address, "results keep the address as entered")
}

func TestProcess_RunLevelErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		svc := newService(t, defaultSnapshot(), mocks.NewProvider(t), nil)

		_, err := svc.Process(t.Context(), service.BatchRequest{Text: " \n\r\n\t", Locator: staticDevice()})

		require.ErrorIs(t, err, service.ErrNoAddresses)
		assert.Equal(t, models.KindValidation, models.KindOf(err))
	})

	t.Run("settings unreadable", func(t *testing.T) {
		svc := service.NewBatchService(slog.Default(), staticSettings{err: assert.AnError}, nil, "amap",
			metrics.NewMetrics(prometheus.NewRegistry()), nil, service.Options{})

		_, err := svc.Process(t.Context(), service.BatchRequest{Text: "a"})

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("missing credential", func(t *testing.T) {
		factory := func(snap settings.Snapshot) (geocoding.Provider, error) {
			return geocoding.NewProvider(geocoding.ProviderConfig{APIKey: snap.RESTAPIKey, Logger: slog.Default()})
		}
		svc := service.NewBatchService(slog.Default(), staticSettings{snap: settings.Snapshot{RequestLimit: 50}},
			factory, "amap", metrics.NewMetrics(prometheus.NewRegistry()), nil, service.Options{})

		_, err := svc.Process(t.Context(), service.BatchRequest{Text: "a"})

		require.ErrorIs(t, err, geocoding.ErrMissingCredential)
		assert.Equal(t, models.KindConfiguration, models.KindOf(err))
	})

	t.Run("reference unresolvable aborts without results", func(t *testing.T) {
		provider := mocks.NewIPProvider(t)
		snap := defaultSnapshot()
		snap.ManualLocation = "nowhere"
		svc := newService(t, snap, provider, nil)

		provider.On("Geocode", mock.Anything, "nowhere").Return(nil, geocoding.ErrAddressNotFound).Once()
		provider.On("LocateIP", mock.Anything).Return(nil, geocoding.ErrNoRectangle).Once()

		result, err := svc.Process(t.Context(), service.BatchRequest{
			Text:   "北京市",
			Device: &locator.Report{Error: "permission_denied"},
		})

		require.Nil(t, result)
		var resolveErr *locator.ResolveError
		require.ErrorAs(t, err, &resolveErr)
		assert.Len(t, resolveErr.Attempts, 3)
		assert.Equal(t, models.KindGeolocation, models.KindOf(err))
		provider.AssertNumberOfCalls(t, "Geocode", 1)
	})
}

func TestProcess_ReferenceFallbackUsesIP(t *testing.T) {
	provider := mocks.NewIPProvider(t)
	svc := newService(t, defaultSnapshot(), provider, nil)

	provider.On("LocateIP", mock.Anything).
		Return(&geocoding.IPLocation{Position: reference, City: "北京市"}, nil).Once()
	provider.On("Geocode", mock.Anything, "北京市").Return(&reference, nil).Once()

	result, err := svc.Process(t.Context(), service.BatchRequest{Text: "北京市"})

	require.NoError(t, err)
	assert.Equal(t, locator.SourceIP, result.ReferenceSource)
	require.NotNil(t, result.Results[0].Distance)
	assert.Zero(t, *result.Results[0].Distance)
}

func TestProcess_DelayBetweenRequests(t *testing.T) {
	provider := mocks.NewProvider(t)
	snap := defaultSnapshot()
	snap.RequestDelay = 50 * time.Millisecond
	svc := newService(t, snap, provider, nil)

	var calls []time.Time
	provider.On("Geocode", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls = append(calls, time.Now()) }).
		Return(&reference, nil).Times(3)

	start := time.Now()
	_, err := svc.Process(t.Context(), service.BatchRequest{Text: "a\nb\nc", Locator: staticDevice()})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), snap.RequestDelay)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), snap.RequestDelay)
	assert.Less(t, elapsed, 3*snap.RequestDelay, "no delay after the last request")
}

func TestProcess_Cancellation(t *testing.T) {
	provider := mocks.NewProvider(t)
	snap := defaultSnapshot()
	snap.RequestDelay = time.Hour
	svc := newService(t, snap, provider, nil)

	ctx, cancel := context.WithCancel(t.Context())
	provider.On("Geocode", mock.Anything, "a").Run(func(mock.Arguments) { cancel() }).Return(&reference, nil).Once()

	result, err := svc.Process(ctx, service.BatchRequest{Text: "a\nb", Locator: staticDevice()})

	require.Nil(t, result)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StageFailed, svc.Status().Stage)
}

func TestProcess_RejectsOverlappingRuns(t *testing.T) {
	provider := mocks.NewProvider(t)
	svc := newService(t, defaultSnapshot(), provider, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	provider.On("Geocode", mock.Anything, "slow").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&reference, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Process(context.Background(), service.BatchRequest{Text: "slow", Locator: staticDevice()})
		done <- err
	}()

	<-started
	assert.Equal(t, models.StageProcessingBatch, svc.Status().Stage)

	_, err := svc.Process(t.Context(), service.BatchRequest{Text: "other", Locator: staticDevice()})
	require.ErrorIs(t, err, service.ErrBatchInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestProcess_Publishes(t *testing.T) {
	t.Run("event sent", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		publisher := mocks.NewPublisher(t)
		svc := newService(t, defaultSnapshot(), provider, publisher)

		provider.On("Geocode", mock.Anything, "a").Return(&reference, nil).Once()
		publisher.On("PublishBatchCompleted", mock.Anything, mock.AnythingOfType("*models.BatchResult")).Return(nil).Once()

		_, err := svc.Process(t.Context(), service.BatchRequest{Text: "a", Locator: staticDevice()})

		require.NoError(t, err)
	})

	t.Run("publish errors are not fatal", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		publisher := mocks.NewPublisher(t)
		svc := newService(t, defaultSnapshot(), provider, publisher)

		provider.On("Geocode", mock.Anything, "a").Return(&reference, nil).Once()
		publisher.On("PublishBatchCompleted", mock.Anything, mock.Anything).Return(assert.AnError).Once()

		result, err := svc.Process(t.Context(), service.BatchRequest{Text: "a", Locator: staticDevice()})

		require.NoError(t, err)
		assert.Len(t, result.Results, 1)
	})
}

func TestSplitAddresses(t *testing.T) {
	assert.Equal(t, []string{"北京市", "上海市"}, service.SplitAddresses("  北京市\r\n\n\t\n上海市  \n"))
	assert.Empty(t, service.SplitAddresses(""))
	assert.Empty(t, service.SplitAddresses("\n \n"))
}

func TestSortResults(t *testing.T) {
	five, two := 5.0, 2.0
	results := []models.AddressResult{
		{Address: "nil1"},
		{Address: "five", Distance: &five},
		{Address: "nil2"},
		{Address: "two", Distance: &two},
	}

	service.SortResults(results)

	got := make([]string, 0, len(results))
	for _, r := range results {
		got = append(got, r.Address)
	}
	assert.Equal(t, []string{"two", "five", "nil1", "nil2"}, got)
}

func TestSortResults_StableTies(t *testing.T) {
	d := 7.0
	results := []models.AddressResult{
		{Address: "first", Distance: &d},
		{Address: "second", Distance: &d},
	}

	service.SortResults(results)

	assert.Equal(t, "first", results[0].Address)
	assert.Equal(t, "second", results[1].Address)
}
