package handlers

import (
	"net/http"
	"strconv"

	"file-uploader/internal/database"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ListUploads handles GET /api/uploads?limit=N. It needs the same secret as
// uploads.
func (h *Handlers) ListUploads(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Check(r.FormValue("password")); err != nil {
		writeError(w, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	list := []database.Upload{}
	if h.history != nil {
		recent, err := h.history.RecentUploads(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		list = append(list, recent...)
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, list)
}
