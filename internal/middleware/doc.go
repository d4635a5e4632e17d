// Package middleware provides HTTP middleware for the uploader.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with secrets redacted
//   - Prometheus request metrics
//   - CORS for the browser upload client
package middleware
