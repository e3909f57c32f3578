// Package metrics holds the Prometheus collectors for queries, ingestion
// and the embedder. Every method is safe on a nil *Metrics so services
// can run without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chunk outcome labels for IngestChunksTotal.
const (
	StatusUpserted = "upserted"
	StatusFailed   = "failed"
	StatusRemoved  = "removed"
)

// Metrics holds Prometheus metrics for sibila.
//
// Metrics:
//   - sibila_query_total{kind} - queries by outcome kind ("ok" on success)
//   - sibila_query_duration_seconds - query latency
//   - sibila_ingest_chunks_total{status} - chunks upserted, failed or removed
//   - sibila_embedding_retries_total - retried embedding batches
//   - sibila_index_entries - entries in the vector index
type Metrics struct {
	registry *prometheus.Registry

	QueryTotal       *prometheus.CounterVec
	QueryDuration    prometheus.Histogram
	IngestChunks     *prometheus.CounterVec
	EmbeddingRetries prometheus.Counter
	IndexEntries     prometheus.Gauge
}

// New creates the collectors on a private registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sibila_query_total",
				Help: "Total number of queries by outcome kind",
			},
			[]string{"kind"},
		),
		QueryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sibila_query_duration_seconds",
				Help:    "Duration of queries in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),
		IngestChunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sibila_ingest_chunks_total",
				Help: "Total number of chunks processed by ingestion",
			},
			[]string{"status"},
		),
		EmbeddingRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sibila_embedding_retries_total",
				Help: "Total number of retried embedding requests",
			},
		),
		IndexEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sibila_index_entries",
				Help: "Current number of entries in the vector index",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordQuery records a finished query. kind is "ok" or an error kind.
func (m *Metrics) RecordQuery(kind string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.QueryTotal.WithLabelValues(kind).Inc()
	m.QueryDuration.Observe(durationSeconds)
}

// RecordChunks adds n chunks with the given status.
func (m *Metrics) RecordChunks(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestChunks.WithLabelValues(status).Add(float64(n))
}

// RecordRetry records one retried embedding request.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.EmbeddingRetries.Inc()
}

// SetIndexEntries updates the index size gauge.
func (m *Metrics) SetIndexEntries(n int) {
	if m == nil {
		return
	}
	m.IndexEntries.Set(float64(n))
}
