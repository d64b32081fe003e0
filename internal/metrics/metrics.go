// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface handlers and services record through.
type Recorder interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordTokenIssued(class string)
	RecordAuthFailure()
	RecordAssetUploaded(kind string)
}

// Collector implements Recorder on Prometheus metrics.
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   prometheus.Histogram
	tokensIssued  *prometheus.CounterVec
	authFailures  prometheus.Counter
	assetsUploads *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics with the registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewtube_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewtube_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewtube_tokens_issued_total",
			Help: "Signed tokens by class.",
		}, []string{"class"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "viewtube_auth_failures_total",
			Help: "Rejected credential and token checks.",
		}),
		assetsUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewtube_asset_uploads_total",
			Help: "Media uploads by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.tokensIssued,
		c.authFailures,
		c.assetsUploads,
	)

	return c
}

// RecordHTTPRequest counts a completed request and observes its latency.
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordTokenIssued counts one signed token of the given class.
func (c *Collector) RecordTokenIssued(class string) {
	c.tokensIssued.WithLabelValues(class).Inc()
}

// RecordAuthFailure counts one rejected authentication attempt.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Inc()
}

// RecordAssetUploaded counts one stored media asset.
func (c *Collector) RecordAssetUploaded(kind string) {
	c.assetsUploads.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus scrape handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ Recorder = (*Collector)(nil)
