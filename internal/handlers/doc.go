// Package handlers provides HTTP request handlers for the uploader API.
//
// It includes handlers for:
//   - Uploads (single, chunked, with optional transcoding)
//   - Transcode job polling
//   - Downloading uploaded files
//   - Upload history
//   - Health checks and build information
package handlers
