package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AddressesProcessed *prometheus.CounterVec
	APIErrors          *prometheus.CounterVec
	RequestSeconds     *prometheus.HistogramVec
	ActiveBatches      prometheus.Gauge
	Batches            *prometheus.CounterVec
	BatchSeconds       prometheus.Histogram
	ReferenceSources   *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AddressesProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_addresses_processed_total",
			Help: "Total number of addresses processed in batches.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}, []string{"kind"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nearby_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveBatches: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "nearby_active_batches",
			Help: "Number of batches currently running.",
		}),
		Batches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_batches_total",
			Help: "Total number of batch runs by outcome.",
		}, []string{"outcome"}),
		BatchSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "nearby_batch_duration_seconds",
			Help:    "Wall time of completed batch runs, including request delays.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ReferenceSources: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_reference_resolutions_total",
			Help: "Reference positions resolved, by the strategy that produced them.",
		}, []string{"source"}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_geocode_cache_lookups_total",
			Help: "Geocode cache lookups by result.",
		}, []string{"result"}),
		EventsPublished: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nearby_events_published_total",
			Help: "Batch-completed events sent to the broker, by status.",
		}, []string{"status"}),
	}
}

// CacheHit records a geocode cache hit.
func (m *Metrics) CacheHit() { m.CacheLookups.WithLabelValues("hit").Inc() }

// CacheMiss records a geocode cache miss.
func (m *Metrics) CacheMiss() { m.CacheLookups.WithLabelValues("miss").Inc() }
