package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"file-uploader/internal/database"
	"file-uploader/internal/jobs"
	"file-uploader/internal/logging"
	"file-uploader/internal/transcoder"
)

// work describes one transcode: the input moved into its own scratch
// directory and where results go.
type work struct {
	dir    string
	input  string
	output string
	target target
}

// finalize completes a file whose bytes are all on disk. owned reports
// that a queued transcode now holds t.path and will release it.
func (s *Service) finalize(ctx context.Context, t target, req Request, sess session) (Result, bool, error) {
	info, err := s.fs.Stat(t.path)
	if err != nil {
		return Result{}, false, fmt.Errorf("failed to stat %s: %w", t.path, err)
	}
	if sess.mimeType == "" {
		sess.mimeType = s.sniffFile(t.path)
	}

	upload := database.Upload{
		Filename:   t.name,
		Folder:     t.folder,
		Path:       t.path,
		SizeBytes:  info.Size(),
		MimeType:   sess.mimeType,
		Transcoded: req.Transcode,
		Status:     database.UploadStatusStored,
	}

	if !req.Transcode {
		s.record(ctx, upload)
		logging.Info("Stored %s (%s, %s)", t.path, humanize.Bytes(uint64(info.Size())), displayMime(sess.mimeType))
		return s.uploaded(t.folder, t.name), false, nil
	}

	w, err := s.prepare(t)
	if err != nil {
		return Result{}, false, err
	}

	if req.Wait {
		res, err := s.process(context.WithoutCancel(ctx), w)
		if err != nil {
			upload.Status = database.UploadStatusError
			s.record(ctx, upload)
			return Result{}, false, err
		}
		upload.Status = database.UploadStatusCompleted
		upload.Filename = res.Filename
		s.record(ctx, upload)
		return s.uploaded(t.folder, res.Filename), false, nil
	}

	upload.Status = database.UploadStatusTranscoding
	rowID := s.record(ctx, upload)

	// The job restores or replaces the file at t.path, so nothing else may
	// touch that path until it settles.
	s.sessions.handOff(t.path)
	job, err := s.jobs.Submit(func(ctx context.Context) (jobs.Result, error) {
		defer s.sessions.release(t.path, session{}, true)
		res, err := s.process(ctx, w)
		s.finishRecord(rowID, res, err)
		return res, err
	})
	if err != nil {
		// Nothing will pick the file up; put it back where the client left it.
		if restoreErr := s.move(w.input, t.path); restoreErr != nil {
			logging.Error("Failed to restore %s after rejected job: %v", t.path, restoreErr)
		}
		s.removeWorkDir(w.dir)
		s.finishRecord(rowID, jobs.Result{}, err)
		return Result{}, false, fmt.Errorf("failed to queue transcode for %s: %w", t.name, err)
	}

	if s.history != nil && rowID != 0 {
		if err := s.history.SetUploadJob(ctx, rowID, job.ID); err != nil {
			logging.Warn("Failed to attach job %s to upload %d: %v", job.ID, rowID, err)
		}
	}

	logging.Info("Queued transcode job %s for %s (%s)", job.ID, t.path, humanize.Bytes(uint64(info.Size())))
	return Result{Status: StatusTranscodingStarted, JobID: job.ID}, true, nil
}

func (s *Service) uploaded(folder, name string) Result {
	return Result{Status: StatusUploaded, Filename: name, URL: s.fileURL(folder, name)}
}

// prepare moves the target into a fresh scratch directory.
func (s *Service) prepare(t target) (work, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	dir := filepath.Join(s.cfg.WorkDir, id.String())
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return work{}, fmt.Errorf("failed to create work directory: %w", err)
	}

	w := work{
		dir:    dir,
		input:  filepath.Join(dir, t.name),
		output: filepath.Join(dir, transcoder.OutputName(t.name)),
		target: t,
	}
	if err := s.move(t.path, w.input); err != nil {
		s.removeWorkDir(dir)
		return work{}, err
	}
	return w, nil
}

// process transcodes w and publishes the result into the target folder. The
// scratch directory is always removed. A file without a video stream is
// published unchanged and reported as degraded; on failure the original is
// put back.
func (s *Service) process(ctx context.Context, w work) (jobs.Result, error) {
	defer s.removeWorkDir(w.dir)

	err := s.transcoder.Transcode(ctx, transcoder.Options{
		InputPath:            w.input,
		OutputPath:           w.output,
		HardwareAcceleration: s.cfg.HardwareAcceleration,
	})

	switch {
	case err == nil:
		name := filepath.Base(w.output)
		if err := s.copy(w.output, filepath.Join(w.target.dir, name)); err != nil {
			return jobs.Result{}, err
		}
		logging.Info("Transcoded %s to %s", w.target.path, name)
		return jobs.Result{Filename: name}, nil

	case errors.Is(err, transcoder.ErrNotAVideo):
		if err := s.copy(w.input, w.target.path); err != nil {
			return jobs.Result{}, err
		}
		logging.Info("%s has no video stream, stored without transcoding", w.target.path)
		return jobs.Result{Filename: w.target.name, Degraded: true}, nil

	default:
		// Leave the upload where the client put it so it can be retried.
		if restoreErr := s.copy(w.input, w.target.path); restoreErr != nil {
			logging.Error("Failed to restore %s after failed transcode: %v", w.target.path, restoreErr)
		}
		return jobs.Result{}, fmt.Errorf("transcode %s: %w", w.target.name, err)
	}
}

// record stores u in the history and returns its row ID, or 0 when there is
// no history or the write failed.
func (s *Service) record(ctx context.Context, u database.Upload) int64 {
	if s.history == nil {
		return 0
	}
	id, err := s.history.RecordUpload(ctx, u)
	if err != nil {
		logging.Warn("Failed to record upload %s: %v", u.Path, err)
		return 0
	}
	return id
}

func (s *Service) finishRecord(id int64, res jobs.Result, err error) {
	if s.history == nil || id == 0 {
		return
	}
	status := database.UploadStatusCompleted
	if err != nil {
		status = database.UploadStatusError
	}
	if updateErr := s.history.UpdateUpload(context.Background(), id, status, res.Filename); updateErr != nil {
		logging.Warn("Failed to update upload %d: %v", id, updateErr)
	}
}

func (s *Service) sniffFile(p string) string {
	f, err := s.fs.Open(p)
	if err != nil {
		return ""
	}
	defer f.Close()

	m, err := mimetype.DetectReader(f)
	if err != nil {
		return ""
	}
	return m.String()
}

func displayMime(m string) string {
	if m == "" {
		return "unknown type"
	}
	return m
}

// move renames src to dst, copying when the rename crosses devices.
func (s *Service) move(src, dst string) error {
	if err := s.fs.Rename(src, dst); err == nil {
		return nil
	}
	if err := s.copy(src, dst); err != nil {
		return err
	}
	if err := s.fs.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

// copy writes src to dst through a temporary sibling so a reader never sees
// a partial file at dst.
func (s *Service) copy(src, dst string) (err error) {
	in, err := s.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", dst, err)
	}

	tmp := dst + ".partial"
	out, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err = out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err = s.fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to publish %s: %w", dst, err)
	}
	return nil
}

func (s *Service) removeWorkDir(dir string) {
	if err := s.fs.RemoveAll(dir); err != nil {
		logging.Warn("Failed to remove work directory %s: %v", dir, err)
	}
}

// ClearWorkDir removes scratch directories left behind by a previous run and
// returns the bytes freed. Jobs do not survive a restart, so nothing in the
// work directory is reachable at startup.
func (s *Service) ClearWorkDir() (int64, error) {
	entries, err := afero.ReadDir(s.fs, s.cfg.WorkDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read work directory: %w", err)
	}

	var freed int64
	for _, e := range entries {
		p := filepath.Join(s.cfg.WorkDir, e.Name())
		_ = afero.Walk(s.fs, p, func(_ string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				freed += info.Size()
			}
			return nil
		})
		if err := s.fs.RemoveAll(p); err != nil {
			return freed, fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	if len(entries) > 0 {
		logging.Info("Cleared %d stale work directories (%s)", len(entries), humanize.Bytes(uint64(freed)))
	}
	return freed, nil
}
