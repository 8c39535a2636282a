package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	progressUpdates     *prometheus.CounterVec
	batchFanoutStudents *prometheus.CounterVec
	batchAggregateCache *prometheus.CounterVec
	batchStreamClients  prometheus.Gauge
	uploadRequestsTotal *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	uploadLatency       prometheus.Histogram
	syncRunsTotal       *prometheus.CounterVec
	syncRecordsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		progressUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_updates_total",
			Help: "Section completion updates grouped by source and result.",
		}, []string{"source", "result"})

		batchFanoutStudents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_fanout_students_total",
			Help: "Per-student updates issued by batch section toggles.",
		}, []string{"result"})

		batchAggregateCache = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_aggregate_cache_total",
			Help: "Batch aggregate cache lookups grouped by result.",
		}, []string{"result"})

		batchStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batch_stream_clients_active",
			Help: "Number of websocket clients watching batch progress.",
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Accepted section uploads grouped by material kind and whether storage was skipped.",
		}, []string{"kind", "deduplicated"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Rejected uploads grouped by reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Time spent validating and storing uploads.",
			Buckets: prometheus.DefBuckets,
		})

		syncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "External directory sync runs grouped by resource and result.",
		}, []string{"resource", "result"})

		syncRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Records upserted by external directory syncs.",
		}, []string{"resource"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			progressUpdates, batchFanoutStudents, batchAggregateCache, batchStreamClients,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatency,
			syncRunsTotal, syncRecordsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ProgressUpdates counts section toggles by source (student, batch) and result.
func ProgressUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return progressUpdates
}

// BatchFanoutStudents counts per-student outcomes of batch toggles.
func BatchFanoutStudents() *prometheus.CounterVec {
	RegisterMetrics()
	return batchFanoutStudents
}

// BatchAggregateCache counts aggregate cache hits and misses.
func BatchAggregateCache() *prometheus.CounterVec {
	RegisterMetrics()
	return batchAggregateCache
}

// BatchStreamClients tracks live websocket watchers.
func BatchStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return batchStreamClients
}

// UploadRequests counts stored uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// SyncRuns counts directory sync runs.
func SyncRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return syncRunsTotal
}

// SyncRecords counts records written by directory syncs.
func SyncRecords() *prometheus.CounterVec {
	RegisterMetrics()
	return syncRecordsTotal
}

// MetricsHandler serves the Prometheus scrape endpoint through fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
