package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, action := range []string{"single", "nuke", "append", "done"} {
		for _, status := range []string{"success", "error", "unauthorized", "invalid_path", "busy"} {
			UploadsTotal.WithLabelValues(action, status)
		}
	}

	for _, status := range []string{"completed", "not_a_video", "error", "rejected"} {
		TranscodeJobsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "record_upload", "update_upload", "set_upload_job", "recent_uploads"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetries.WithLabelValues(op, "success")
		FilesystemRetries.WithLabelValues(op, "failure")
	}
}
