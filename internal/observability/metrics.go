package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storeDuration   prometheus.Histogram
	recallDuration  prometheus.Histogram
	recallTotal     *prometheus.CounterVec
	reindexDuration prometheus.Histogram
	entriesTotal    prometheus.Gauge

	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheRecords prometheus.Gauge

	embedTotal    *prometheus.CounterVec
	embedDuration *prometheus.HistogramVec
	embedBatch    prometheus.Histogram

	rpcTotal           *prometheus.CounterVec
	rpcDuration        *prometheus.HistogramVec
	gatewayConnections prometheus.Gauge

	ingestFiles  prometheus.Counter
	ingestChunks prometheus.Counter
	distillTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storeDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_store_duration_seconds",
					Help:    "Memory store duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			recallDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_recall_duration_seconds",
					Help:    "Memory recall duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			recallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_recall_total",
					Help: "Total recall operations by ranking tier.",
				},
				[]string{"tier"},
			),
			reindexDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_reindex_duration_seconds",
					Help:    "Reindex duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			entriesTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_entries_total",
					Help: "Total memory entries stored.",
				},
			),
			cacheHits: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "embedding_cache_hits_total",
					Help: "Total embedding cache hits.",
				},
			),
			cacheMisses: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "embedding_cache_misses_total",
					Help: "Total embedding cache misses.",
				},
			),
			cacheRecords: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "embedding_cache_records",
					Help: "Current embedding cache record count.",
				},
			),
			embedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedding_requests_total",
					Help: "Total embedding provider requests by provider and status.",
				},
				[]string{"provider", "status"},
			),
			embedDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "embedding_request_duration_seconds",
					Help:    "Embedding provider request duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			embedBatch: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "embedding_batch_size",
					Help:    "Distinct texts per flushed embedding batch.",
					Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
				},
			),
			rpcTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rpc_requests_total",
					Help: "Total RPC requests by method and status.",
				},
				[]string{"method", "status"},
			),
			rpcDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "rpc_request_duration_seconds",
					Help:    "RPC request duration in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			gatewayConnections: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_connections",
					Help: "Current WebSocket client count.",
				},
			),
			ingestFiles: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "ingest_files_total",
					Help: "Total files ingested.",
				},
			),
			ingestChunks: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "ingest_chunks_total",
					Help: "Total chunks stored by ingestion.",
				},
			),
			distillTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "distill_runs_total",
					Help: "Total distillation runs by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.storeDuration,
			m.recallDuration,
			m.recallTotal,
			m.reindexDuration,
			m.entriesTotal,
			m.cacheHits,
			m.cacheMisses,
			m.cacheRecords,
			m.embedTotal,
			m.embedDuration,
			m.embedBatch,
			m.rpcTotal,
			m.rpcDuration,
			m.gatewayConnections,
			m.ingestFiles,
			m.ingestChunks,
			m.distillTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordMemoryStore(duration time.Duration) {
	m := getMetrics()
	m.storeDuration.Observe(duration.Seconds())
}

func RecordMemoryRecall(duration time.Duration, tier string) {
	m := getMetrics()
	m.recallDuration.Observe(duration.Seconds())
	m.recallTotal.WithLabelValues(tier).Inc()
}

func RecordMemoryReindex(duration time.Duration) {
	m := getMetrics()
	m.reindexDuration.Observe(duration.Seconds())
}

func SetMemoryEntries(total int) {
	m := getMetrics()
	m.entriesTotal.Set(float64(total))
}

func RecordCacheHit() {
	getMetrics().cacheHits.Inc()
}

func RecordCacheMiss() {
	getMetrics().cacheMisses.Inc()
}

func SetCacheRecords(total int) {
	m := getMetrics()
	m.cacheRecords.Set(float64(total))
}

func RecordEmbedding(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.embedTotal.WithLabelValues(provider, status).Inc()
	m.embedDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordEmbeddingBatch(size int) {
	getMetrics().embedBatch.Observe(float64(size))
}

func RecordRPCRequest(method string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.rpcTotal.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func SetGatewayConnections(count int) {
	m := getMetrics()
	m.gatewayConnections.Set(float64(count))
}

func RecordIngestFile(chunks int) {
	m := getMetrics()
	m.ingestFiles.Inc()
	m.ingestChunks.Add(float64(chunks))
}

func RecordDistill(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().distillTotal.WithLabelValues(status).Inc()
}
