package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/nearby/internal/geo"
	"github.com/UnknownOlympus/nearby/internal/geocoding"
	"github.com/UnknownOlympus/nearby/internal/locator"
	"github.com/UnknownOlympus/nearby/internal/metrics"
	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/internal/settings"
	"github.com/google/uuid"
)

var (
	// ErrBatchInProgress is returned when a run is requested while another one is still going.
	ErrBatchInProgress = errors.New("a batch is already being processed")
	// ErrNoAddresses is returned when the input holds no non-blank line.
	ErrNoAddresses = models.NewKindError(models.KindValidation, "请输入地址")
)

// LimitExceededError is returned when a batch holds more addresses than the configured limit.
type LimitExceededError struct {
	Limit int
	Count int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("地址数量超过限制！最多可处理 %d 个地址，当前输入了 %d 个地址。", e.Limit, e.Count)
}

// Kind implements models.Kinded.
func (e *LimitExceededError) Kind() models.ErrorKind { return models.KindLimitExceeded }

// SettingsSource hands out one configuration snapshot per run.
type SettingsSource interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// ProviderFactory builds the geocoding provider for a run from its settings snapshot.
type ProviderFactory func(snap settings.Snapshot) (geocoding.Provider, error)

// Publisher is notified of every completed batch.
type Publisher interface {
	PublishBatchCompleted(ctx context.Context, result *models.BatchResult) error
}

// BatchRequest is the input of one run.
type BatchRequest struct {
	Text   string          // Text holds one address per line.
	Device *locator.Report // Device is the fix reported by the client, if any.
	// Locator overrides Device for callers with their own position source.
	Locator locator.DeviceLocator
}

// Options tune the pipeline.
type Options struct {
	AddressPrefix   string // AddressPrefix is prepended to every address before geocoding.
	PositionOptions locator.PositionOptions
	Box             geo.Box
	BoxMode         locator.BoxMode
}

// BatchService runs the batch resolution pipeline. One run at a time per instance.
type BatchService struct {
	log          *slog.Logger
	settings     SettingsSource
	newProvider  ProviderFactory
	providerName string
	metrics      *metrics.Metrics
	publisher    Publisher
	opts         Options

	running  sync.Mutex
	statusMu sync.RWMutex
	status   models.RunStatus
}

// NewBatchService creates a BatchService. publisher may be nil.
func NewBatchService(
	log *slog.Logger,
	source SettingsSource,
	newProvider ProviderFactory,
	providerName string,
	metrics *metrics.Metrics,
	publisher Publisher,
	opts Options,
) *BatchService {
	return &BatchService{
		log:          log,
		settings:     source,
		newProvider:  newProvider,
		providerName: providerName,
		metrics:      metrics,
		publisher:    publisher,
		opts:         opts,
		status:       models.RunStatus{Stage: models.StageIdle},
	}
}

// Status returns the state of the current or last run.
func (bs *BatchService) Status() models.RunStatus {
	bs.statusMu.RLock()
	defer bs.statusMu.RUnlock()
	return bs.status
}

func (bs *BatchService) setStatus(update func(*models.RunStatus)) {
	bs.statusMu.Lock()
	update(&bs.status)
	bs.statusMu.Unlock()
}

func (bs *BatchService) setStage(stage models.Stage) {
	bs.setStatus(func(s *models.RunStatus) { s.Stage = stage })
}

// Process runs the whole pipeline for req. Run-level failures abort the run and return no result;
// per-address failures are recorded on the corresponding AddressResult.
func (bs *BatchService) Process(ctx context.Context, req BatchRequest) (*models.BatchResult, error) {
	if !bs.running.TryLock() {
		return nil, ErrBatchInProgress
	}
	defer bs.running.Unlock()

	bs.metrics.ActiveBatches.Inc()
	defer bs.metrics.ActiveBatches.Dec()

	runID := uuid.NewString()
	bs.setStatus(func(s *models.RunStatus) {
		*s = models.RunStatus{RunID: runID, Stage: models.StageResolvingReference}
	})

	result, err := bs.process(ctx, runID, req)
	if err != nil {
		bs.log.ErrorContext(ctx, "Batch failed", "run", runID, "error", err)
		bs.metrics.Batches.WithLabelValues("failed").Inc()
		bs.setStatus(func(s *models.RunStatus) {
			s.Stage = models.StageFailed
			s.Error = err.Error()
		})
		return nil, err
	}

	bs.metrics.Batches.WithLabelValues("done").Inc()
	bs.metrics.BatchSeconds.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	bs.setStage(models.StageDone)
	bs.publish(ctx, result)

	return result, nil
}

func (bs *BatchService) process(ctx context.Context, runID string, req BatchRequest) (*models.BatchResult, error) {
	started := time.Now()

	snap, err := bs.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := bs.newProvider(snap)
	if err != nil {
		return nil, err
	}

	addresses := SplitAddresses(req.Text)
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}

	fix, err := bs.referenceChain(snap, provider, req).Resolve(ctx)
	if err != nil {
		return nil, err
	}
	bs.metrics.ReferenceSources.WithLabelValues(fix.Source).Inc()

	if len(addresses) > snap.RequestLimit {
		return nil, &LimitExceededError{Limit: snap.RequestLimit, Count: len(addresses)}
	}

	bs.setStatus(func(s *models.RunStatus) {
		s.Stage = models.StageProcessingBatch
		s.Total = len(addresses)
	})
	bs.log.InfoContext(ctx, "Processing batch",
		"run", runID,
		"addresses", len(addresses),
		"reference_source", fix.Source,
		"delay", snap.RequestDelay)

	results := make([]models.AddressResult, 0, len(addresses))
	for i, address := range addresses {
		res, errCtx := bs.resolve(ctx, provider, fix.Position, address)
		if errCtx != nil {
			return nil, errCtx
		}
		results = append(results, res)
		bs.setStatus(func(s *models.RunStatus) { s.Processed = i + 1 })

		if i < len(addresses)-1 {
			if err = sleep(ctx, snap.RequestDelay); err != nil {
				return nil, err
			}
		}
	}

	bs.setStage(models.StageSorting)
	SortResults(results)

	return &models.BatchResult{
		RunID:           runID,
		Reference:       fix.Position,
		ReferenceSource: fix.Source,
		Results:         results,
		StartedAt:       started,
		FinishedAt:      time.Now(),
	}, nil
}

// resolve geocodes one address. The returned error is non-nil only when ctx was cancelled.
func (bs *BatchService) resolve(
	ctx context.Context,
	provider geocoding.Provider,
	reference models.Coordinates,
	address string,
) (models.AddressResult, error) {
	startTime := time.Now()
	coords, err := provider.Geocode(ctx, bs.opts.AddressPrefix+address)
	bs.metrics.RequestSeconds.WithLabelValues(bs.providerName).Observe(time.Since(startTime).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.AddressResult{}, ctxErr
		}
		bs.log.WarnContext(ctx, "Failed to geocode", "address", address, "error", err)
		bs.metrics.AddressesProcessed.WithLabelValues("failure").Inc()
		bs.metrics.APIErrors.WithLabelValues(string(models.KindOf(err))).Inc()
		return models.NewFailedResult(address, fmt.Errorf("地址解析失败: %w", err)), nil
	}

	bs.metrics.AddressesProcessed.WithLabelValues("success").Inc()
	distance := geo.Distance(reference, *coords)
	bs.log.DebugContext(ctx, "Address resolved", "address", address, "distance", distance)

	return models.NewResolvedResult(address, *coords, distance), nil
}

func (bs *BatchService) referenceChain(
	snap settings.Snapshot,
	provider geocoding.Provider,
	req BatchRequest,
) *locator.Chain {
	var ipLocator geocoding.IPLocator
	if snap.HasCredential() && geocoding.SupportsIPLocation(provider) {
		ipLocator, _ = provider.(geocoding.IPLocator)
	}

	device := req.Locator
	if device == nil {
		device = locator.NewReportedLocator(req.Device)
	}

	return locator.NewChain(bs.log,
		locator.NewManualStrategy(snap.ManualLocation, provider),
		locator.NewIPStrategy(ipLocator),
		locator.NewDeviceStrategy(device, bs.opts.PositionOptions, bs.opts.Box, bs.opts.BoxMode, bs.log),
	)
}

func (bs *BatchService) publish(ctx context.Context, result *models.BatchResult) {
	if bs.publisher == nil {
		return
	}
	if err := bs.publisher.PublishBatchCompleted(ctx, result); err != nil {
		bs.log.ErrorContext(ctx, "Failed to publish batch event", "run", result.RunID, "error", err)
		bs.metrics.EventsPublished.WithLabelValues("failure").Inc()
		return
	}
	bs.metrics.EventsPublished.WithLabelValues("success").Inc()
}

// SplitAddresses splits text into trimmed, non-blank lines in input order.
func SplitAddresses(text string) []string {
	lines := strings.Split(text, "\n")
	addresses := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			addresses = append(addresses, trimmed)
		}
	}
	return addresses
}

// SortResults orders results by ascending distance. Results without a distance go last and
// equal keys keep their input order.
func SortResults(results []models.AddressResult) {
	slices.SortStableFunc(results, func(a, b models.AddressResult) int {
		switch {
		case a.Distance == nil && b.Distance == nil:
			return 0
		case a.Distance == nil:
			return 1
		case b.Distance == nil:
			return -1
		default:
			return cmp.Compare(*a.Distance, *b.Distance)
		}
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
