// Package startup handles configuration loading and startup/shutdown
// logging for the uploader.
//
// # Configuration
//
// Configuration comes from environment variables via [LoadConfig]. A .env
// file in the working directory is read first; variables already set in the
// environment win. Supported variables:
//
//   - ALLOWED_PASSWORDS: comma-separated secrets or bcrypt hashes, or "open"
//   - UPLOAD_DIR: upload root (default: ./uploads)
//   - WORK_DIR: scratch space for transcoding (default: <tmp>/file-uploader)
//   - DATABASE_DIR: upload history database directory (default: ./data)
//   - PORT: HTTP server port (default: 3461)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: enable the metrics server (default: true)
//   - CORS_ORIGIN: allowed browser origin (default: *)
//   - NVIDIA_HARDWARE_ACCELERATION: encode with NVENC (default: false)
//   - JOB_TTL: how long job results stay pollable (default: 1h)
//   - SESSION_TTL: how long an idle chunked upload is tracked (default: 1h)
//   - TRANSCODE_WORKERS: concurrent transcodes (default: one per CPU, max 4)
//   - MAX_CHUNK_BYTES: largest accepted request body, e.g. 64MiB (default: 64MiB)
//   - MEMORY_LIMIT, MEMORY_RATIO: see package memory
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: log /files requests (default: false)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
