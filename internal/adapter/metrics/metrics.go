// Package metrics holds the Prometheus collectors exported by the pipeline.
// All methods are safe on a nil *Metrics so callers never need to guard them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alsrag"

type Metrics struct {
	documents       *prometheus.CounterVec
	documentsActive prometheus.Gauge
	chunks          *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	apiRequests     *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	retrievals      *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	discovered      *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps repeated construction in tests from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents processed by the ingestion pipeline, by result",
		}, []string{"result"}),
		documentsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_in_flight",
			Help:      "Documents currently admitted by the document limiter",
		}),
		chunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunk inserts, by result",
		}, []string{"result"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "fallbacks_total",
			Help:      "Sentinel values substituted for failed enrichment calls",
		}, []string{"kind"}),
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Outbound model API calls, by api and result",
		}, []string{"api", "result"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of outbound model API calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"api"}),
		retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieve",
			Name:      "requests_total",
			Help:      "Retrieval tool calls, by result",
		}, []string{"result"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Embedding cache lookups, by result",
		}, []string{"result"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
		discovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "urls_discovered_total",
			Help:      "URLs returned by discovery strategies",
		}, []string{"strategy"}),
	}
}

func (m *Metrics) DocumentDone(result string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(result).Inc()
}

func (m *Metrics) DocumentStarted() {
	if m == nil {
		return
	}
	m.documentsActive.Inc()
}

func (m *Metrics) DocumentFinished() {
	if m == nil {
		return
	}
	m.documentsActive.Dec()
}

func (m *Metrics) ChunkInserted(ok bool) {
	if m == nil {
		return
	}
	result := "inserted"
	if !ok {
		result = "failed"
	}
	m.chunks.WithLabelValues(result).Inc()
}

// Fallback records a sentinel substitution; kind is "title" or "embedding".
func (m *Metrics) Fallback(kind string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(kind).Inc()
}

func (m *Metrics) APICall(api string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.apiRequests.WithLabelValues(api, result).Inc()
	m.apiLatency.WithLabelValues(api).Observe(d.Seconds())
}

func (m *Metrics) Retrieval(result string) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) Discovered(strategy string, n int) {
	if m == nil {
		return
	}
	m.discovered.WithLabelValues(strategy).Add(float64(n))
}
