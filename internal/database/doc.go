// Package database keeps the upload history in SQLite.
//
// Every finalized upload is recorded with its folder, size, detected MIME
// type and, for transcoded uploads, the job ID and final status. The history
// is informational: the upload flow keeps working if the database is
// unavailable.
//
// The database runs in WAL mode and creates its schema on open.
package database
