// Package prometheus exports blobio metrics through client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/blobio"
)

// Collector implements blobio.MetricsCollector on Prometheus vectors.
type Collector struct {
	latency *prometheus.HistogramVec
	bytes   *prometheus.CounterVec
	ops     *prometheus.CounterVec
	items   *prometheus.CounterVec
	pages   prometheus.Counter
	retries *prometheus.CounterVec
}

var _ blobio.MetricsCollector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*config)

type config struct {
	namespace string
	buckets   []float64
}

// WithNamespace prefixes every metric name. Defaults to "blobio".
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// WithBuckets sets the latency histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(c *config) { c.buckets = b }
}

// New creates a Collector and registers it on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, optFns ...Option) (*Collector, error) {
	cfg := config{namespace: "blobio", buckets: prometheus.DefBuckets}
	for _, fn := range optFns {
		fn(&cfg)
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of storage operations",
			Buckets:   cfg.buckets,
		}, []string{"op", "status"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "transferred_bytes_total",
			Help:      "Bytes read or staged",
		}, []string{"direction"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "operations_total",
			Help:      "Storage operations by outcome",
		}, []string{"op", "status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "batch_items_total",
			Help:      "Batch items by outcome",
		}, []string{"op", "status"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "list_pages_total",
			Help:      "Listing pages fetched",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "retries_total",
			Help:      "Retried transient failures",
		}, []string{"op", "kind"}),
	}

	for _, col := range []prometheus.Collector{c.latency, c.bytes, c.ops, c.items, c.pages, c.retries} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.latency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordRangeRead implements blobio.MetricsCollector.
func (c *Collector) RecordRangeRead(n int, d time.Duration, cached bool, err error) {
	op := "range_read"
	if cached {
		op = "range_read_cached"
	}
	c.observe(op, d, err)
	if err == nil {
		c.bytes.WithLabelValues("read").Add(float64(n))
	}
}

// RecordBlockUpload implements blobio.MetricsCollector.
func (c *Collector) RecordBlockUpload(n int, d time.Duration, err error) {
	c.observe("stage_block", d, err)
	if err == nil {
		c.bytes.WithLabelValues("write").Add(float64(n))
	}
}

// RecordCommit implements blobio.MetricsCollector.
func (c *Collector) RecordCommit(_ int, d time.Duration, err error) {
	c.observe("commit", d, err)
}

// RecordBatch implements blobio.MetricsCollector.
func (c *Collector) RecordBatch(op string, count, failed int, d time.Duration) {
	c.latency.WithLabelValues("batch_"+op, "success").Observe(d.Seconds())
	c.ops.WithLabelValues("batch_"+op, "success").Inc()
	c.items.WithLabelValues(op, "success").Add(float64(count - failed))
	c.items.WithLabelValues(op, "error").Add(float64(failed))
}

// RecordList implements blobio.MetricsCollector.
func (c *Collector) RecordList(_, pages int, d time.Duration, err error) {
	c.observe("list", d, err)
	c.pages.Add(float64(pages))
}

// RecordRetry implements blobio.MetricsCollector.
func (c *Collector) RecordRetry(op string, err error) {
	c.retries.WithLabelValues(op, blobio.Classify(err).String()).Inc()
}
