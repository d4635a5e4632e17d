package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"file-uploader/internal/auth"
	"file-uploader/internal/jobs"
	"file-uploader/internal/logging"
	"file-uploader/internal/safepath"
	"file-uploader/internal/transcoder"
	"file-uploader/internal/uploads"
)

// errMissingFile is returned when an upload that needs a payload has none.
var errMissingFile = errors.New("no file provided")

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v as JSON with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// writeError maps err to a status code and writes it.
func writeError(w http.ResponseWriter, err error) {
	status, message := statusForError(err)
	if status == http.StatusInternalServerError {
		logging.Error("Request failed: %v", err)
	}
	writeJSONError(w, message, status)
}

// statusForError is the single place errors become HTTP statuses.
func statusForError(err error) (int, string) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, safepath.ErrInvalidPath):
		return http.StatusBadRequest, "Invalid folder or filename"
	case errors.Is(err, uploads.ErrInvalidAction):
		return http.StatusBadRequest, "Invalid action"
	case errors.Is(err, errMissingFile):
		return http.StatusBadRequest, "No file provided"
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "Upload exceeds " + strconv.FormatInt(maxBytes.Limit, 10) + " bytes"
	case errors.Is(err, uploads.ErrSessionBusy):
		return http.StatusConflict, "Another request is writing this file"
	case errors.Is(err, uploads.ErrNoUpload):
		return http.StatusConflict, "Nothing was uploaded for this file"
	case errors.Is(err, jobs.ErrQueueFull):
		return http.StatusServiceUnavailable, "Transcode queue is full, retry later"
	case errors.Is(err, jobs.ErrShuttingDown):
		return http.StatusServiceUnavailable, "Server is shutting down"
	case errors.Is(err, transcoder.ErrTranscodeFailed), errors.Is(err, transcoder.ErrProbeFailed):
		// Details name scratch paths and ffmpeg output; they stay in the log.
		return http.StatusInternalServerError, "Transcode failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// formBool reads a boolean form or query value. Anything unparsable is
// false.
func formBool(r *http.Request, keys ...string) bool {
	for _, key := range keys {
		if v, err := strconv.ParseBool(r.FormValue(key)); err == nil && v {
			return true
		}
	}
	return false
}
