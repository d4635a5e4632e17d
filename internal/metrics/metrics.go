package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_uploader_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_uploader_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_uploader_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_uploader_uploads_total",
			Help: "Total number of upload requests by action and outcome",
		},
		[]string{"action", "status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_uploader_upload_bytes_total",
			Help: "Total number of payload bytes written to disk",
		},
	)

	UploadSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_uploader_upload_sessions_active",
			Help: "Number of tracked chunked upload sessions",
		},
	)
)

// Transcode metrics
var (
	TranscodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_uploader_transcode_jobs_total",
			Help: "Total number of transcode jobs by terminal status",
		},
		[]string{"status"}, // "completed", "not_a_video", "error", "rejected"
	)

	TranscodeJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_uploader_transcode_jobs_in_flight",
			Help: "Number of transcode jobs currently running",
		},
	)

	TranscodeQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_uploader_transcode_queue_depth",
			Help: "Number of transcode jobs waiting for a worker",
		},
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "file_uploader_transcode_duration_seconds",
			Help:    "Wall time of transcode jobs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
	)

	JobStoreEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_uploader_job_store_entries",
			Help: "Number of entries held in the transcode job store",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_uploader_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_uploader_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Filesystem metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_uploader_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors returned by the storage volume",
		},
		[]string{"operation"},
	)

	FilesystemRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_uploader_filesystem_retries_total",
			Help: "Filesystem operations that needed a retry, by final outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Runtime metrics
var (
	GoMemLimitBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_uploader_go_memory_limit_bytes",
			Help: "Soft memory limit applied to the Go runtime (0 when unset)",
		},
	)
)

// App info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "file_uploader_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
