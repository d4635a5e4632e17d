package handlers

import (
	"errors"
	"net/http"
	"strings"

	"file-uploader/internal/auth"
	"file-uploader/internal/logging"
	"file-uploader/internal/metrics"
	"file-uploader/internal/uploads"
)

// Upload handles POST /upload.
//
// Form fields: file, action (single|nuke|append|done, default single),
// folder, password, filename (overrides the file part's name). Query or form
// flags: transcode (alias makeDiscordFriendly), wait, randomizeFilename. The
// password may also be given as a query parameter, in which case it is
// checked before the body is parsed.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		writeError(w, &http.MaxBytesError{Limit: h.maxUploadBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	// A secret in the query is checked before the body is read, so a wrong
	// one never makes the server spool the form to disk.
	query := r.URL.Query()
	authorized := false
	if query.Has("password") {
		if err := h.auth.Check(query.Get("password")); err != nil {
			rejectUnauthorized(w, query.Get("action"))
			return
		}
		authorized = true
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, maxBytes)
			return
		}
		writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Warn("Failed to remove multipart temp files: %v", err)
		}
	}()

	if !authorized {
		if err := h.auth.Check(r.FormValue("password")); err != nil {
			rejectUnauthorized(w, r.FormValue("action"))
			return
		}
	}

	action, actionErr := uploads.ParseAction(r.FormValue("action"))
	if actionErr != nil {
		writeError(w, actionErr)
		return
	}

	req := uploads.Request{
		Action:            action,
		Folder:            r.FormValue("folder"),
		Filename:          strings.TrimSpace(r.FormValue("filename")),
		Transcode:         formBool(r, "transcode", "makeDiscordFriendly"),
		Wait:              formBool(r, "wait"),
		RandomizeFilename: formBool(r, "randomizeFilename"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		req.Body = file
		if req.Filename == "" {
			req.Filename = header.Filename
		}
	case errors.Is(err, http.ErrMissingFile):
		// nuke and done carry no payload.
		if action == uploads.ActionSingle || action == uploads.ActionAppend {
			writeError(w, errMissingFile)
			return
		}
		req.Body = http.NoBody
	default:
		writeJSONError(w, "Invalid file part", http.StatusBadRequest)
		return
	}

	res, err := h.uploader.Handle(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, res)
}

func rejectUnauthorized(w http.ResponseWriter, rawAction string) {
	if action, err := uploads.ParseAction(rawAction); err == nil {
		metrics.UploadsTotal.WithLabelValues(string(action), "unauthorized").Inc()
	}
	writeError(w, auth.ErrUnauthorized)
}
