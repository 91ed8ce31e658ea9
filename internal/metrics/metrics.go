// Package metrics exposes Prometheus instrumentation for document operations.
package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector records operation counts and latencies per table.
type Collector struct {
	registry   prometheus.Registerer
	gatherer   prometheus.Gatherer
	namespace  string
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	mu     sync.Mutex
	depths map[string]bool
}

// New registers the collector's metrics on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "docshelf"
	}
	factory := promauto.With(reg)

	return &Collector{
		registry:  reg,
		gatherer:  reg,
		namespace: namespace,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of document operations",
			},
			[]string{"table", "operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Document operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"table", "operation"},
		),
		depths: make(map[string]bool),
	}
}

// Observe records one finished operation.
func (c *Collector) Observe(table, operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.operations.WithLabelValues(table, operation, outcome).Inc()
	c.duration.WithLabelValues(table, operation).Observe(time.Since(start).Seconds())
}

// TrackQueue exports the size of a change queue as a gauge. Tracking the same
// table twice is a no-op.
func (c *Collector) TrackQueue(table string, queue core.ChangeQueue) error {
	if c == nil || queue == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depths[table] {
		return nil
	}

	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   c.namespace,
			Name:        "changefeed_queue_depth",
			Help:        "Number of change events waiting to be relayed",
			ConstLabels: prometheus.Labels{"table": table},
		},
		func() float64 { return float64(queue.Size()) },
	)
	if err := c.registry.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
	}
	c.depths[table] = true
	return nil
}

// Gatherer returns the registry backing the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
