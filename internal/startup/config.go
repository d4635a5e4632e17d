package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"file-uploader/internal/logging"
	"file-uploader/internal/workers"
)

const (
	defaultMaxChunkBytes = 64 << 20
	maxTranscodeWorkers  = 4
)

// Config holds all application configuration
type Config struct {
	AllowedPasswords string
	UploadDir        string
	WorkDir          string
	DatabaseDir      string
	Port             string
	MetricsPort      string
	MetricsEnabled   bool
	CORSOrigin       string

	HardwareAcceleration bool
	TranscodeWorkers     int
	JobTTL               time.Duration
	SessionTTL           time.Duration
	MaxChunkBytes        int64

	LogStaticFiles  bool
	LogHealthChecks bool

	// Derived paths
	DatabasePath string

	// HistoryEnabled is false when the database directory is unusable.
	HistoryEnabled bool
}

// LoadConfig loads and validates configuration from the environment,
// seeded from .env when present.
func LoadConfig() (*Config, error) {
	envFileErr := loadEnvFile(".env")

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	switch {
	case envFileErr == nil:
		logging.Info("  Loaded .env")
	case !errors.Is(envFileErr, fs.ErrNotExist):
		logging.Warn("  Ignoring unreadable .env: %v", envFileErr)
	}

	config := &Config{
		AllowedPasswords:     os.Getenv("ALLOWED_PASSWORDS"),
		UploadDir:            getEnv("UPLOAD_DIR", "./uploads"),
		WorkDir:              getEnv("WORK_DIR", filepath.Join(os.TempDir(), "file-uploader")),
		DatabaseDir:          getEnv("DATABASE_DIR", "./data"),
		Port:                 getEnv("PORT", "3461"),
		MetricsPort:          getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
		CORSOrigin:           getEnv("CORS_ORIGIN", "*"),
		HardwareAcceleration: getEnvBool("NVIDIA_HARDWARE_ACCELERATION", false),
		TranscodeWorkers:     workers.ForCPU(maxTranscodeWorkers),
		JobTTL:               getEnvDuration("JOB_TTL", time.Hour),
		SessionTTL:           getEnvDuration("SESSION_TTL", time.Hour),
		MaxChunkBytes:        getEnvBytes("MAX_CHUNK_BYTES", defaultMaxChunkBytes),
		LogStaticFiles:       getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks:      getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	logging.Info("  UPLOAD_DIR:                    %s", config.UploadDir)
	logging.Info("  WORK_DIR:                      %s", config.WorkDir)
	logging.Info("  DATABASE_DIR:                  %s", config.DatabaseDir)
	logging.Info("  PORT:                          %s", config.Port)
	logging.Info("  METRICS_PORT:                  %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:               %v", config.MetricsEnabled)
	logging.Info("  CORS_ORIGIN:                   %s", config.CORSOrigin)
	logging.Info("  NVIDIA_HARDWARE_ACCELERATION:  %v", config.HardwareAcceleration)
	logging.Info("  TRANSCODE_WORKERS:             %d", config.TranscodeWorkers)
	logging.Info("  JOB_TTL:                       %s", config.JobTTL)
	logging.Info("  SESSION_TTL:                   %s", config.SessionTTL)
	logging.Info("  MAX_CHUNK_BYTES:               %s", humanize.IBytes(uint64(config.MaxChunkBytes)))
	logging.Info("  LOG_STATIC_FILES:              %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:             %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                     %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	for _, dir := range []struct {
		name string
		path *string
	}{
		{"upload", &config.UploadDir},
		{"work", &config.WorkDir},
		{"database", &config.DatabaseDir},
	} {
		if *dir.path, err = filepath.Abs(*dir.path); err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", dir.name, err)
		}
		logging.Info("  %s directory (absolute): %s", dir.name, *dir.path)
	}
	config.DatabasePath = filepath.Join(config.DatabaseDir, "uploads.db")

	// Uploads and transcode scratch space are required.
	for _, dir := range []struct{ name, path string }{
		{"upload", config.UploadDir},
		{"work", config.WorkDir},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable", dir.name)
	}

	// History is optional.
	config.HistoryEnabled = true
	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		logging.Warn("  Database directory issue: %v", err)
		config.HistoryEnabled = false
	} else if err := testWriteAccess(config.DatabaseDir); err != nil {
		logging.Warn("  Database directory is not writable: %v", err)
		config.HistoryEnabled = false
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Upload history: %s", enabledString(config.HistoryEnabled))
	logging.Info("    Metrics:        %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return godotenv.Load(path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvBytes accepts plain byte counts and humanized sizes like "64MiB".
func getEnvBytes(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := humanize.ParseBytes(value)
	if err != nil || parsed == 0 || parsed > 1<<62 {
		logging.Warn("Invalid size for %s: %q, using default: %s", key, value, humanize.IBytes(uint64(defaultValue)))
		return defaultValue
	}
	return int64(parsed)
}
