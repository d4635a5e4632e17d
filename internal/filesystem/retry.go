package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"file-uploader/internal/logging"
	"file-uploader/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// sleep is replaced in tests.
	sleep func(time.Duration)
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// RetryFs is an afero.Fs whose lookups retry on stale NFS file handles.
// Operations it does not override go straight to the wrapped Fs.
type RetryFs struct {
	afero.Fs
	config RetryConfig
}

// NewRetryFs wraps base. A config with MaxRetries <= 0 disables retries.
func NewRetryFs(base afero.Fs, config RetryConfig) *RetryFs {
	if config.sleep == nil {
		config.sleep = time.Sleep
	}
	return &RetryFs{Fs: base, config: config}
}

func (fs *RetryFs) Name() string {
	return "RetryFs(" + fs.Fs.Name() + ")"
}

func (fs *RetryFs) Stat(name string) (os.FileInfo, error) {
	return retry(fs.config, "stat", name, func() (os.FileInfo, error) {
		return fs.Fs.Stat(name)
	})
}

func (fs *RetryFs) Open(name string) (afero.File, error) {
	return retry(fs.config, "open", name, func() (afero.File, error) {
		return fs.Fs.Open(name)
	})
}

func (fs *RetryFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	return retry(fs.config, "open", name, func() (afero.File, error) {
		return fs.Fs.OpenFile(name, flag, perm)
	})
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

func retry[T any](config RetryConfig, op, path string, fn func() (T, error)) (T, error) {
	backoff := config.InitialBackoff

	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
				metrics.FilesystemRetries.WithLabelValues(op, "success").Inc()
			}
			return v, nil
		}
		if !isNFSStaleError(err) {
			return v, err
		}

		metrics.FilesystemStaleErrors.WithLabelValues(op).Inc()
		if attempt >= config.MaxRetries {
			logging.Warn("NFS %s failed after %d retries for %s: %v", op, attempt, path, err)
			if attempt > 0 {
				metrics.FilesystemRetries.WithLabelValues(op, "failure").Inc()
			}
			return v, err
		}

		logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
			op, path, backoff, attempt+1, config.MaxRetries)
		config.sleep(backoff)

		backoff *= 2
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}
