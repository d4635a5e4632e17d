package handlers

import (
	"net/http"
	"runtime"
	"time"

	"file-uploader/internal/startup"
)

const (
	statusHealthy      = "healthy"
	statusShuttingDown = "shutting_down"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// In-memory state
	ActiveSessions int  `json:"activeSessions"`
	TrackedJobs    int  `json:"trackedJobs"`
	QueuedJobs     int  `json:"queuedJobs"`
	HistoryEnabled bool `json:"historyEnabled"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready := !h.shuttingDown.Load()

	response := HealthResponse{
		Status:         statusHealthy,
		Ready:          ready,
		Version:        startup.Version,
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		HistoryEnabled: h.history != nil,
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}
	if h.stats != nil {
		stats := h.stats.GetStats()
		response.ActiveSessions = stats.ActiveSessions
		response.TrackedJobs = stats.JobStoreEntries
		response.QueuedJobs = stats.QueuedJobs
	}

	status := http.StatusOK
	if !ready {
		response.Status = statusShuttingDown
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 until shutdown begins
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.shuttingDown.Load() {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}
