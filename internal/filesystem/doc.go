/*
Package filesystem wraps an afero.Fs so that lookups on network storage
survive transient NFS failures.

Uploads frequently land on an NFS export. When the server side changes
underneath a client (failover, export reload, a file replaced by another
node) the kernel can return ESTALE for a path that is perfectly valid a
moment later. RetryFs retries Stat, Open and OpenFile on ESTALE with capped
exponential backoff. Every other error is returned immediately.

# Usage

	fs := filesystem.NewRetryFs(afero.NewOsFs(), filesystem.DefaultRetryConfig())
	svc := uploads.NewService(fs, cfg, trans, manager, history)

# Metrics

	file_uploader_filesystem_stale_errors_total{operation}
	file_uploader_filesystem_retries_total{operation,outcome}
*/
package filesystem
