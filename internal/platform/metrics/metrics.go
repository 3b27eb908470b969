package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the ingest server.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	commentsDecodedTotal  prometheus.Counter
	commentsRejectedTotal prometheus.Counter
	matchFailuresTotal    prometheus.Counter
	cachedMedia           prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	commentsDecodedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_comments_decoded_total",
		Help: "Total number of comment records decoded into events",
	})
	commentsRejectedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_comments_rejected_total",
		Help: "Total number of malformed comment records skipped",
	})
	matchFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_match_failures_total",
		Help: "Total number of match responses that reported an upstream failure",
	})
	cachedMedia := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "danmaku_cached_media",
		Help: "Number of cached media in the registry",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		commentsDecodedTotal,
		commentsRejectedTotal,
		matchFailuresTotal,
		cachedMedia,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		commentsDecodedTotal:  commentsDecodedTotal,
		commentsRejectedTotal: commentsRejectedTotal,
		matchFailuresTotal:    matchFailuresTotal,
		cachedMedia:           cachedMedia,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// AddComments records the outcome of decoding one comment batch.
func (m *Metrics) AddComments(decoded, rejected int) {
	m.commentsDecodedTotal.Add(float64(decoded))
	m.commentsRejectedTotal.Add(float64(rejected))
}

// IncMatchFailures increments the upstream match failure counter.
func (m *Metrics) IncMatchFailures() {
	m.matchFailuresTotal.Inc()
}

// SetCachedMedia sets the cached media gauge.
func (m *Metrics) SetCachedMedia(n int) {
	m.cachedMedia.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
