package uploads

import (
	"errors"
	"io"
	"strings"
)

// Action selects what a request does to its target file.
type Action string

const (
	ActionSingle Action = "single"
	ActionNuke   Action = "nuke"
	ActionAppend Action = "append"
	ActionDone   Action = "done"
)

// Response status strings.
const (
	StatusUploaded           = "File uploaded successfully"
	StatusNuked              = "nuked"
	StatusAppended           = "appended"
	StatusTranscodingStarted = "Transcoding started"
)

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrSessionBusy   = errors.New("another request is writing this file")
	ErrNoUpload      = errors.New("no uploaded data for this file")
)

// ParseAction maps the form value to an Action. An empty value means single.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActionSingle, nil
	case ActionSingle, ActionNuke, ActionAppend, ActionDone:
		return a, nil
	default:
		return "", ErrInvalidAction
	}
}

// Request is one upload call.
type Request struct {
	Action   Action
	Folder   string
	Filename string
	// Body is the payload. It is ignored by nuke and done.
	Body io.Reader

	Transcode bool
	// Wait runs the transcode inside the request instead of as a job.
	Wait bool
	// RandomizeFilename replaces the name with a UUID keeping the
	// extension. Only single uploads honor it; chunked clients must pick
	// their own name up front.
	RandomizeFilename bool
}

// Result is the outcome of a request.
type Result struct {
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	JobID    string `json:"jobId,omitempty"`

	// BytesWritten counts payload bytes this request put on disk.
	BytesWritten int64 `json:"-"`
}
