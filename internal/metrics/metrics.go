// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request outcomes and external provider calls.
type Collector struct {
	registry      *prometheus.Registry
	httpStatus    *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	proxyLatency  *prometheus.HistogramVec
}

// NewCollector builds a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicard_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicard_provider_calls_total",
			Help: "External provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		proxyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexicard_proxy_latency_seconds",
			Help:    "Latency of proxied provider requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	registry.MustRegister(c.httpStatus, c.providerCalls, c.proxyLatency)
	return c
}

// RecordHTTPStatus counts a response status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordProviderCall counts a provider call outcome.
func (c *Collector) RecordProviderCall(provider string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.providerCalls.WithLabelValues(provider, outcome).Inc()
}

// RecordProxyLatency records how long a proxied provider request took.
func (c *Collector) RecordProxyLatency(provider string, duration time.Duration) {
	c.proxyLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
