package jobs

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusTranscoding Status = "transcoding"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

var (
	// ErrNotFound is returned for unknown or evicted job IDs.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyTerminal is returned when a finished job is written again.
	ErrAlreadyTerminal = errors.New("job already finished")
	// ErrQueueFull is returned when no worker slot or queue space is left.
	ErrQueueFull = errors.New("transcode queue is full")
	// ErrShuttingDown is returned by Submit after Shutdown has begun.
	ErrShuttingDown = errors.New("job manager is shutting down")
)

// Job is the client-visible state of one transcode.
type Job struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Filename     string    `json:"filename,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the job has finished.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}
