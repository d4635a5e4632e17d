// Package logging provides the leveled logger used across the uploader.
//
// Levels, lowest to highest:
//   - DEBUG: per-request and per-process detail
//   - INFO: lifecycle and upload events
//   - WARN: recoverable problems
//   - ERROR: failed operations
//   - FATAL: terminates the process
//
// The level comes from DEBUG=true or LOG_LEVEL and can be changed at runtime
// with SetLevel.
package logging
