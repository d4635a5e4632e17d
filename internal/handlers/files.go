package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"file-uploader/internal/logging"
	"file-uploader/internal/safepath"
)

// ServeFiles handles GET /files/{path}, serving uploaded files with range
// support. Directories are never listed.
func (h *Handlers) ServeFiles(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]

	full, err := safepath.Resolve(h.uploadDir, rel)
	if err != nil || full == filepath.Clean(h.uploadDir) {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}
	if strings.HasSuffix(full, ".partial") {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	f, err := h.files.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSONError(w, "File not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to open %s: %v", full, err)
		writeJSONError(w, "Failed to open file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", "inline; filename=\""+strings.ReplaceAll(info.Name(), "\"", "")+"\"")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
