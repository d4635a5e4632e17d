// Package main provides the entry point for Simple File Uploader.
//
// Simple File Uploader accepts files over HTTP, either whole or in ordered
// chunks, stores them under an upload root and can re-encode videos to a
// widely playable H.264/AAC MP4 with FFmpeg.
//
// # Application Lifecycle
//
//  1. Configuration Loading: reads .env and environment variables, prepares
//     the upload, work and database directories
//  2. Component Initialization:
//     - Authorization gate from ALLOWED_PASSWORDS
//     - Upload history database (optional)
//     - Transcoder and the transcode job manager
//     - Upload service with its session registry
//     - Metrics collector
//  3. HTTP Server Setup: routes, middleware, and the metrics server
//  4. Graceful Shutdown: on SIGINT/SIGTERM the server stops accepting
//     requests, running transcodes get time to finish, then remaining FFmpeg
//     processes are killed
//
// Transcode jobs live in memory only. Jobs still queued or running when the
// process exits are lost, and clients polling them will see 404.
package main
