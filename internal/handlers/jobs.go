package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// GetJob handles GET /job/{id}. Polling needs no secret: job IDs are
// unguessable and reveal only a status and a filename.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, ok := h.jobs.Get(id)
	if !ok {
		writeJSONError(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatus(w, http.StatusOK, job)
}
