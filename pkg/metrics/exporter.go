package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter mirrors orchestration events into Prometheus collectors.
//
// Metrics:
//   - <ns>_provider_requests_total{provider,outcome}: attempts per provider
//   - <ns>_provider_latency_seconds{provider}: attempt latency
//   - <ns>_cache_hits_total / <ns>_cache_misses_total: cache lookups
//   - <ns>_metrics_resets_total: explicit metric resets
type Exporter struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	resets      prometheus.Counter
}

// LatencyBuckets are tuned for LLM call latencies (100ms to 60s).
var LatencyBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0}

// NewExporter creates and registers the collectors. A nil registry gets a
// fresh one.
func NewExporter(namespace string, registry *prometheus.Registry) *Exporter {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "polyinfer"
	}

	e := &Exporter{
		registry: registry,

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Provider attempt latency in seconds",
				Buckets:   LatencyBuckets,
			},
			[]string{"provider"},
		),

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits",
		}),

		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses",
		}),

		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_resets_total",
			Help:      "Total number of explicit metric resets",
		}),
	}

	registry.MustRegister(e.requests, e.latency, e.cacheHits, e.cacheMisses, e.resets)

	return e
}

// ObserveAttempt records one provider attempt.
func (e *Exporter) ObserveAttempt(provider string, outcome Outcome, latency time.Duration) {
	e.requests.WithLabelValues(provider, string(outcome)).Inc()
	e.latency.WithLabelValues(provider).Observe(latency.Seconds())
}

// ObserveCacheHit records a cache hit.
func (e *Exporter) ObserveCacheHit() {
	e.cacheHits.Inc()
}

// ObserveCacheMiss records a cache miss.
func (e *Exporter) ObserveCacheMiss() {
	e.cacheMisses.Inc()
}

// ObserveReset records an explicit metric reset.
func (e *Exporter) ObserveReset() {
	e.resets.Inc()
}

// Registry returns the registry the collectors are registered with.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
