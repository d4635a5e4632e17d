// Package metrics declares the Prometheus metrics exported by the uploader.
//
// Metric families:
//
//   - file_uploader_http_*: request counts, latency and in-flight requests
//   - file_uploader_uploads_*: upload actions and bytes received
//   - file_uploader_transcode_*: transcode job outcomes, durations and queue
//   - file_uploader_job_store_entries / file_uploader_upload_sessions_active:
//     sizes of the in-memory stores, refreshed by the Collector
//   - file_uploader_db_*: upload history database operations
//
// All metrics are registered with the default registry through promauto and
// served by promhttp on the metrics port.
package metrics
