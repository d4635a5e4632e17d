package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"file-uploader/internal/logging"
	"file-uploader/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when no history row matches.
var ErrNotFound = errors.New("upload not found")

// Database stores upload history.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (creating if needed) the database file at dbPath. The parent
// directory must already exist.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		folder TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		transcoded INTEGER NOT NULL DEFAULT 0,
		job_id TEXT,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_uploads_job ON uploads(job_id) WHERE job_id IS NOT NULL;
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// RecordUpload inserts a history row and returns its ID.
func (d *Database) RecordUpload(ctx context.Context, u Upload) (id int64, err error) {
	start := time.Now()
	defer func() { recordQuery("record_upload", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}

	var jobID sql.NullString
	if u.JobID != "" {
		jobID = sql.NullString{String: u.JobID, Valid: true}
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO uploads (filename, folder, path, size_bytes, mime_type, transcoded, job_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Filename, u.Folder, u.Path, u.SizeBytes, u.MimeType, u.Transcoded, jobID, u.Status,
		u.CreatedAt.UnixMilli(), u.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record upload: %w", err)
	}
	return res.LastInsertId()
}

// UpdateUpload sets the status of a history row and, when filename is not
// empty, its final filename.
func (d *Database) UpdateUpload(ctx context.Context, id int64, status, filename string) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_upload", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE uploads
		SET status = ?, filename = CASE WHEN ? = '' THEN filename ELSE ? END, updated_at = ?
		WHERE id = ?`,
		status, filename, filename, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update upload %d: %w", id, err)
	}
	return requireRow(res)
}

// SetUploadJob attaches a transcode job ID to a history row.
func (d *Database) SetUploadJob(ctx context.Context, id int64, jobID string) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_upload_job", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `UPDATE uploads SET job_id = ?, transcoded = 1 WHERE id = ?`, jobID, id)
	if err != nil {
		return fmt.Errorf("failed to set job for upload %d: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentUploads returns up to limit uploads, newest first.
func (d *Database) RecentUploads(ctx context.Context, limit int) (uploads []Upload, err error) {
	start := time.Now()
	defer func() { recordQuery("recent_uploads", start, err) }()

	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, filename, folder, path, size_bytes, mime_type, transcoded, COALESCE(job_id, ''), status, created_at, updated_at
		FROM uploads
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close rows: %v", closeErr)
		}
	}()

	uploads = []Upload{}
	for rows.Next() {
		var (
			u                Upload
			created, updated int64
		)
		if err := rows.Scan(&u.ID, &u.Filename, &u.Folder, &u.Path, &u.SizeBytes, &u.MimeType,
			&u.Transcoded, &u.JobID, &u.Status, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		u.CreatedAt = time.UnixMilli(created)
		u.UpdatedAt = time.UnixMilli(updated)
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// recordQuery records query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
