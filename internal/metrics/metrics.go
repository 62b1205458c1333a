package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	ItemsStoredTotal   *prometheus.CounterVec
	ItemsBlockedTotal  *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
	ChunksCreatedTotal prometheus.Counter

	// Search metrics
	SearchesTotal       *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	SearchResultsCount  prometheus.Histogram
	RefragCallsTotal    *prometheus.CounterVec
	RefragTokensSaved   prometheus.Counter
	EmbeddingCacheHits  prometheus.Counter
	EmbeddingCacheMiss  prometheus.Counter
	EmbeddingCallsTotal *prometheus.CounterVec

	// Job metrics
	JobsProcessedTotal *prometheus.CounterVec
	JobDuration        prometheus.Histogram
	JobsPending        prometheus.Gauge

	// Lifecycle metrics
	TierTransitionsTotal *prometheus.CounterVec
	BytesFreedTotal      prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ItemsStoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engram_items_stored_total",
				Help: "Total number of memory items stored",
			},
			[]string{"content_type"},
		),
		ItemsBlockedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engram_items_blocked_total",
				Help: "Total number of items rejected by the content safety precheck",
			},
			[]string{"reason"},
		),
		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engram_ingest_duration_seconds",
				Help:    "Duration of synchronous ingestion",
				Buckets: prometheus.DefBuckets,
			},
		),
		ChunksCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engram_chunks_created_total",
				Help: "Total number of chunks created by background workers",
			},
		),

		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engram_searches_total",
				Help: "Total number of retrieval searches",
			},
			[]string{"mode", "status"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engram_search_duration_seconds",
				Help:    "Duration of retrieval searches",
				Buckets: prometheus.DefBuckets,
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engram_search_results",
				Help:    "Number of results returned per search",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		RefragCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engram_refrag_calls_total",
				Help: "Total number of REFRAG retrievals",
			},
			[]string{"status"},
		),
		RefragTokensSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engram_refrag_tokens_saved_total",
				Help: "Total tokens withheld from downstream by compression",
			},
		),
		EmbeddingCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engram_embedding_cache_hits_total",
				Help: "Embedding cache hits",
			},
		),
		EmbeddingCacheMiss: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engram_embedding_cache_misses_total",
				Help: "Embedding cache misses",
			},
		),
		EmbeddingCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engram_embedding_calls_total",
				Help: "Total embedding provider calls",
			},
			[]string{"provider", "status"},
		),

		JobsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engram_jobs_processed_total",
				Help: "Total background jobs processed",
			},
			[]string{"status"},
		),
		JobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engram_job_duration_seconds",
				Help:    "Duration of background job execution",
				Buckets: prometheus.DefBuckets,
			},
		),
		JobsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engram_jobs_pending",
				Help: "Number of jobs currently pending",
			},
		),

		TierTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engram_tier_transitions_total",
				Help: "Total retention tier transitions",
			},
			[]string{"from", "to"},
		),
		BytesFreedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engram_bytes_freed_total",
				Help: "Bytes reclaimed by tier transitions",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ItemsStoredTotal)
	m.registry.MustRegister(m.ItemsBlockedTotal)
	m.registry.MustRegister(m.IngestDuration)
	m.registry.MustRegister(m.ChunksCreatedTotal)

	m.registry.MustRegister(m.SearchesTotal)
	m.registry.MustRegister(m.SearchDuration)
	m.registry.MustRegister(m.SearchResultsCount)
	m.registry.MustRegister(m.RefragCallsTotal)
	m.registry.MustRegister(m.RefragTokensSaved)
	m.registry.MustRegister(m.EmbeddingCacheHits)
	m.registry.MustRegister(m.EmbeddingCacheMiss)
	m.registry.MustRegister(m.EmbeddingCallsTotal)

	m.registry.MustRegister(m.JobsProcessedTotal)
	m.registry.MustRegister(m.JobDuration)
	m.registry.MustRegister(m.JobsPending)

	m.registry.MustRegister(m.TierTransitionsTotal)
	m.registry.MustRegister(m.BytesFreedTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
