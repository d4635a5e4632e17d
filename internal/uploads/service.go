package uploads

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"file-uploader/internal/database"
	"file-uploader/internal/jobs"
	"file-uploader/internal/logging"
	"file-uploader/internal/metrics"
	"file-uploader/internal/safepath"
	"file-uploader/internal/transcoder"
)

const (
	defaultSessionTTL = time.Hour
	defaultURLPrefix  = "/files"
	sniffLen          = 3072
)

// Transcoder converts a finalized file to the web-friendly output format.
type Transcoder interface {
	Transcode(ctx context.Context, opts transcoder.Options) error
}

// JobRunner runs a task in the background and reports it as a job.
type JobRunner interface {
	Submit(task jobs.Task) (jobs.Job, error)
}

// History records finalized uploads. It is optional.
type History interface {
	RecordUpload(ctx context.Context, u database.Upload) (int64, error)
	UpdateUpload(ctx context.Context, id int64, status, filename string) error
	SetUploadJob(ctx context.Context, id int64, jobID string) error
}

// Config configures a Service.
type Config struct {
	// UploadDir is the root every target must stay under.
	UploadDir string
	// WorkDir holds per-job scratch directories for transcoding.
	WorkDir string
	// HardwareAcceleration is passed through to the transcoder.
	HardwareAcceleration bool
	// SessionTTL is how long an idle chunked upload is remembered.
	SessionTTL time.Duration
	// URLPrefix is prepended to the relative path in Result.URL.
	URLPrefix string
	// Clock replaces time.Now, for tests.
	Clock func() time.Time
}

// Service executes upload requests against a filesystem. Transcoding runs
// external processes on real paths, so it needs an OS-backed afero.Fs.
type Service struct {
	fs         afero.Fs
	cfg        Config
	transcoder Transcoder
	jobs       JobRunner
	history    History
	sessions   *sessionRegistry
}

// NewService creates a Service. history may be nil.
func NewService(fs afero.Fs, cfg Config, trans Transcoder, runner JobRunner, history History) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = defaultURLPrefix
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "file-uploader")
	}
	cfg.UploadDir = filepath.Clean(cfg.UploadDir)

	return &Service{
		fs:         fs,
		cfg:        cfg,
		transcoder: trans,
		jobs:       runner,
		history:    history,
		sessions:   newSessionRegistry(cfg.SessionTTL, cfg.Clock),
	}
}

// ActiveSessions returns the number of tracked target paths.
func (s *Service) ActiveSessions() int {
	return s.sessions.len()
}

// Close stops the session sweeper.
func (s *Service) Close() {
	s.sessions.stop()
}

// target is a resolved request destination.
type target struct {
	folder string
	dir    string
	name   string
	path   string
}

func (s *Service) resolve(req Request) (target, error) {
	name, err := safepath.FileName(req.Filename)
	if err != nil {
		return target{}, err
	}
	if req.RandomizeFilename && req.Action == ActionSingle {
		name = randomName(name)
	}

	dir, err := safepath.Resolve(s.cfg.UploadDir, req.Folder)
	if err != nil {
		return target{}, err
	}

	rel, err := filepath.Rel(s.cfg.UploadDir, dir)
	if err != nil {
		return target{}, safepath.ErrInvalidPath
	}
	if rel == "." {
		rel = ""
	}

	return target{
		folder: filepath.ToSlash(rel),
		dir:    dir,
		name:   name,
		path:   filepath.Join(dir, name),
	}, nil
}

func randomName(name string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String() + strings.ToLower(filepath.Ext(name))
}

// Handle executes req. Errors wrap ErrInvalidAction, safepath.ErrInvalidPath,
// ErrSessionBusy, ErrNoUpload, jobs.ErrQueueFull, jobs.ErrShuttingDown or
// transcoder errors so callers can classify them.
func (s *Service) Handle(ctx context.Context, req Request) (res Result, err error) {
	switch req.Action {
	case ActionSingle, ActionNuke, ActionAppend, ActionDone:
	default:
		return Result{}, ErrInvalidAction
	}

	defer func() {
		metrics.UploadsTotal.WithLabelValues(string(req.Action), outcomeLabel(err)).Inc()
	}()

	t, err := s.resolve(req)
	if err != nil {
		logging.Warn("Rejected %s upload for folder %q file %q: %v", req.Action, req.Folder, req.Filename, err)
		return Result{}, err
	}

	sess, err := s.sessions.acquire(t.path)
	if err != nil {
		logging.Warn("Upload %s for %s rejected: %v", req.Action, t.path, err)
		return Result{}, err
	}
	// A queued transcode takes the path over and releases it when it settles.
	finished, handedOff := false, false
	defer func() {
		if !handedOff {
			s.sessions.release(t.path, sess, finished)
		}
	}()

	switch req.Action {
	case ActionNuke:
		if err := s.remove(t.path); err != nil {
			return Result{}, err
		}
		sess = session{startedAt: s.cfg.Clock()}
		logging.Debug("Nuked %s", t.path)
		return Result{Status: StatusNuked, Filename: t.name}, nil

	case ActionAppend:
		n, mime, err := s.write(t, req.Body, os.O_APPEND|os.O_CREATE|os.O_WRONLY)
		sess.bytes += n
		if err != nil {
			return Result{BytesWritten: n}, err
		}
		sess.chunks++
		if sess.mimeType == "" {
			sess.mimeType = mime
		}
		logging.Debug("Appended %s to %s (chunk %d, total %s)",
			humanize.Bytes(uint64(n)), t.path, sess.chunks, humanize.Bytes(uint64(sess.bytes)))
		return Result{Status: StatusAppended, Filename: t.name, BytesWritten: n}, nil

	case ActionSingle:
		if err := s.remove(t.path); err != nil {
			return Result{}, err
		}
		n, mime, err := s.write(t, req.Body, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
		if err != nil {
			return Result{BytesWritten: n}, err
		}
		sess = session{bytes: n, chunks: 1, mimeType: mime, startedAt: sess.startedAt}
		finished = true
		out, owned, err := s.finalize(ctx, t, req, sess)
		handedOff = owned
		out.BytesWritten = n
		return out, err

	default: // ActionDone
		if _, err := s.fs.Stat(t.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Result{}, ErrNoUpload
			}
			return Result{}, fmt.Errorf("failed to stat %s: %w", t.path, err)
		}
		finished = true
		out, owned, err := s.finalize(ctx, t, req, sess)
		handedOff = owned
		return out, err
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, safepath.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, ErrSessionBusy):
		return "busy"
	default:
		return "error"
	}
}

func (s *Service) remove(p string) error {
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return nil
}

// write copies body into t.path opened with flag and syncs it. It returns
// the bytes written and the MIME type sniffed from the first bytes.
func (s *Service) write(t target, body io.Reader, flag int) (int64, string, error) {
	if body == nil {
		body = strings.NewReader("")
	}

	if err := s.fs.MkdirAll(t.dir, 0o755); err != nil {
		return 0, "", fmt.Errorf("failed to create folder %s: %w", t.dir, err)
	}

	f, err := s.fs.OpenFile(t.path, flag, 0o644)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open %s: %w", t.path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(body, sniffLen)
	head, _ := br.Peek(sniffLen)
	mime := ""
	if len(head) > 0 {
		mime = mimetype.Detect(head).String()
	}

	n, err := io.Copy(f, br)
	metrics.UploadBytesTotal.Add(float64(n))
	if err != nil {
		return n, mime, fmt.Errorf("failed to write %s: %w", t.path, err)
	}
	if err := f.Sync(); err != nil {
		return n, mime, fmt.Errorf("failed to sync %s: %w", t.path, err)
	}
	return n, mime, nil
}

// fileURL builds the public URL for a file under the upload root.
func (s *Service) fileURL(folder, name string) string {
	parts := []string{s.cfg.URLPrefix}
	for _, seg := range strings.Split(folder, "/") {
		if seg != "" {
			parts = append(parts, url.PathEscape(seg))
		}
	}
	parts = append(parts, url.PathEscape(name))
	return path.Join(parts...)
}
