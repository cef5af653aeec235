// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package worker

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "mtls_binding_worker"

// Collector is a prometheus.Collector for fetches made by the handler.
type Collector struct {
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fetch_total",
				Help:      "Upstream fetches by binding and outcome.",
			}, []string{"binding", "code"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time to receive upstream response headers.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			}, []string{"binding"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.fetchTotal.Describe(ch)
	c.fetchDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.fetchTotal.Collect(ch)
	c.fetchDuration.Collect(ch)
}

// outcome labels for requests that never produced an upstream status.
const (
	outcomeUnbound = "unbound"
	outcomeError   = "error"
)

func (c *Collector) observe(binding, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.fetchTotal.WithLabelValues(binding, outcome).Inc()
	if outcome != outcomeUnbound {
		c.fetchDuration.WithLabelValues(binding).Observe(elapsed.Seconds())
	}
}

func statusOutcome(code int) string { return strconv.Itoa(code) }
