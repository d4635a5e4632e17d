package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"file-uploader/internal/database"
	"file-uploader/internal/jobs"
	"file-uploader/internal/metrics"
	"file-uploader/internal/uploads"
)

const (
	defaultMaxUploadBytes = 64 << 20
	// Multipart parts above this size spill to temporary files.
	multipartMemory = 8 << 20
)

// Uploader executes upload requests.
type Uploader interface {
	Handle(ctx context.Context, req uploads.Request) (uploads.Result, error)
}

// JobLookup reads transcode jobs.
type JobLookup interface {
	Get(id string) (jobs.Job, bool)
}

// History lists recent uploads.
type History interface {
	RecentUploads(ctx context.Context, limit int) ([]database.Upload, error)
}

// Authorizer checks upload secrets.
type Authorizer interface {
	Check(secret string) error
}

// Config wires the handlers to the rest of the application. History and
// Stats may be nil.
type Config struct {
	Uploader Uploader
	Jobs     JobLookup
	History  History
	Auth     Authorizer
	Stats    metrics.StatsProvider

	// Files serves downloads; UploadDir is its root.
	Files     afero.Fs
	UploadDir string
	// MaxUploadBytes bounds a whole upload request body.
	MaxUploadBytes int64
}

type Handlers struct {
	uploader       Uploader
	jobs           JobLookup
	history        History
	auth           Authorizer
	stats          metrics.StatsProvider
	files          afero.Fs
	uploadDir      string
	maxUploadBytes int64

	startTime    time.Time
	shuttingDown atomic.Bool
}

func New(cfg Config) *Handlers {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Files == nil {
		cfg.Files = afero.NewOsFs()
	}
	return &Handlers{
		uploader:       cfg.Uploader,
		jobs:           cfg.Jobs,
		history:        cfg.History,
		auth:           cfg.Auth,
		stats:          cfg.Stats,
		files:          cfg.Files,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		startTime:      time.Now(),
	}
}

// SetShuttingDown makes the readiness probe fail so load balancers stop
// sending new uploads while in-flight work drains.
func (h *Handlers) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// Root answers GET / with a greeting.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello from Simple File Uploader!"))
}
