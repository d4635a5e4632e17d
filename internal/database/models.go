package database

import "time"

// Upload status values stored in the history.
const (
	UploadStatusStored      = "stored"
	UploadStatusTranscoding = "transcoding"
	UploadStatusCompleted   = "completed"
	UploadStatusError       = "error"
)

// Upload is one finalized upload.
type Upload struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Folder     string    `json:"folder"`
	Path       string    `json:"-"`
	SizeBytes  int64     `json:"sizeBytes"`
	MimeType   string    `json:"mimeType,omitempty"`
	Transcoded bool      `json:"transcoded"`
	JobID      string    `json:"jobId,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
