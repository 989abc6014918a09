// Package metrics records per-operation counters and latencies for the
// keyfs facade and exposes them in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks filesystem operation metrics. A nil *Collector is a
// valid no-op recorder, so callers never need to guard their calls.
type Collector struct {
	registry          *prometheus.Registry
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorCounter      *prometheus.CounterVec
}

// NewCollector creates a collector registering under the given namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "keyfs"
	}

	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		operationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total filesystem operations by type",
		}, []string{"operation"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Filesystem operation latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"operation"}),
		errorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total filesystem operation errors by type",
		}, []string{"operation"}),
	}

	registry.MustRegister(c.operationCounter, c.operationDuration, c.errorCounter)
	return c
}

// Observe records one completed operation.
func (c *Collector) Observe(operation string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.operationCounter.WithLabelValues(operation).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		c.errorCounter.WithLabelValues(operation).Inc()
	}
}

// Handler returns an HTTP handler serving the metrics in Prometheus text
// format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
