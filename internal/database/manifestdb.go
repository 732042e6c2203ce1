package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// DBFileName is the manifest file name inside the database directory.
const DBFileName = "wikiexport.db"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Page status values stored in the pages table.
const (
	PageStatusExported = "exported"
	PageStatusFailed   = "failed"
)

// ManifestDB stores the history of export runs.
type ManifestDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ManifestDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the manifest in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// wrapping os.ErrNotExist is returned.
func Open(dbDir string, opts Options) (*ManifestDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	var dsn string
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("manifest database %s: %w", dbPath, err)
		}
		dsn = dbPath + "?mode=rw"
	}
	// Pragmas in the DSN apply to every pooled connection.
	dsn += "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &ManifestDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := mdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return mdb, nil
}

// Close closes the database connection.
func (mdb *ManifestDB) Close() error {
	return mdb.db.Close()
}

// Path returns the database file path.
func (mdb *ManifestDB) Path() string {
	return mdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (mdb *ManifestDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_title TEXT NOT NULL,
		host TEXT NOT NULL DEFAULT '',
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		pages_exported INTEGER NOT NULL DEFAULT 0,
		pages_failed INTEGER NOT NULL DEFAULT 0,
		files_saved INTEGER NOT NULL DEFAULT 0,
		files_failed INTEGER NOT NULL DEFAULT 0,
		bytes_written INTEGER NOT NULL DEFAULT 0,
		dirs_failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per page of the tree, plus one per failed fetch
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		parent TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		link_count INTEGER NOT NULL DEFAULT 0,
		file_count INTEGER NOT NULL DEFAULT 0,
		child_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_title ON pages(title);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		page TEXT NOT NULL,
		url TEXT NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		digest TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
	CREATE INDEX IF NOT EXISTS idx_files_url ON files(url);
	`

	_, err := mdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID         int64
	RootTitle  string
	Host       string
	OutputDir  string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    model.Summary
}

// PageRecord is a stored page outcome.
type PageRecord struct {
	RunID      int64
	Title      string
	Parent     string
	Status     string
	Error      string
	LinkCount  int
	FileCount  int
	ChildCount int
}

// FileRecord is a stored download outcome.
type FileRecord struct {
	RunID  int64
	Page   string
	URL    string
	Name   string
	Path   string
	Size   int64
	Digest string
	Status model.FileStatus
	Error  string
}

// SaveRun stores run with all its pages and files in one transaction and
// returns the new run id.
func (mdb *ManifestDB) SaveRun(ctx context.Context, run *model.Run, host string) (id int64, err error) {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // already failing
		}
	}()

	s := run.Summary()
	finished := ""
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC().Format(timeLayout)
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (root_title, host, output_dir, started_at, finished_at,
		pages_exported, pages_failed, files_saved, files_failed, bytes_written, dirs_failed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RootTitle,
		host,
		run.OutputDir,
		run.StartedAt.UTC().Format(timeLayout),
		finished,
		s.PagesExported,
		s.PagesFailed,
		s.FilesSaved,
		s.FilesFailed,
		s.BytesWritten,
		s.DirsFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	if err = insertPages(ctx, tx, id, run); err != nil {
		return 0, err
	}
	if err = insertFiles(ctx, tx, id, run.Files); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

func insertPages(ctx context.Context, tx *sql.Tx, runID int64, run *model.Run) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, title, parent, status, error, link_count, file_count, child_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	var insertErr error
	run.Root.Walk(func(page, parent *model.Page) bool {
		parentTitle := ""
		if parent != nil {
			parentTitle = parent.Title
		}
		_, insertErr = stmt.ExecContext(ctx, runID, page.Title, parentTitle, PageStatusExported, "",
			len(page.Links), len(page.Files), page.Children.Len())
		return insertErr == nil
	})
	if insertErr != nil {
		return fmt.Errorf("failed to insert page: %w", insertErr)
	}

	for _, f := range run.PageFailures {
		if _, err := stmt.ExecContext(ctx, runID, f.Title, f.Parent, PageStatusFailed, f.Error, 0, 0, 0); err != nil {
			return fmt.Errorf("failed to insert page failure: %w", err)
		}
	}
	return nil
}

func insertFiles(ctx context.Context, tx *sql.Tx, runID int64, files []model.FileResult) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO files (run_id, page, url, name, path, size, digest, status, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, runID, f.Page, f.URL, f.Name, f.Path, f.Size, f.Digest, string(f.Status), f.Error); err != nil {
			return fmt.Errorf("failed to insert file: %w", err)
		}
	}
	return nil
}

const runColumns = `id, root_title, host, output_dir, started_at, finished_at,
	pages_exported, pages_failed, files_saved, files_failed, bytes_written, dirs_failed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec               RunRecord
		started, finished string
	)
	err := row.Scan(
		&rec.ID,
		&rec.RootTitle,
		&rec.Host,
		&rec.OutputDir,
		&started,
		&finished,
		&rec.Summary.PagesExported,
		&rec.Summary.PagesFailed,
		&rec.Summary.FilesSaved,
		&rec.Summary.FilesFailed,
		&rec.Summary.BytesWritten,
		&rec.Summary.DirsFailed,
	)
	if err != nil {
		return rec, err
	}
	rec.StartedAt = parseTimestamp(started)
	rec.FinishedAt = parseTimestamp(finished)
	return rec, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (mdb *ManifestDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id DESC"
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := mdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by id. It returns nil, nil when no run matches.
func (mdb *ManifestDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	rec, err := scanRun(mdb.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &rec, nil
}

// ListPages returns the pages stored for runID in insertion order.
func (mdb *ManifestDB) ListPages(ctx context.Context, runID int64) ([]PageRecord, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT run_id, title, parent, status, error, link_count, file_count, child_count
	FROM pages WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := make([]PageRecord, 0)
	for rows.Next() {
		var p PageRecord
		if err := rows.Scan(&p.RunID, &p.Title, &p.Parent, &p.Status, &p.Error, &p.LinkCount, &p.FileCount, &p.ChildCount); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ListFiles returns the files stored for runID in insertion order.
func (mdb *ManifestDB) ListFiles(ctx context.Context, runID int64) ([]FileRecord, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT run_id, page, url, name, path, size, digest, status, error
	FROM files WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := make([]FileRecord, 0)
	for rows.Next() {
		var (
			f      FileRecord
			status string
		)
		if err := rows.Scan(&f.RunID, &f.Page, &f.URL, &f.Name, &f.Path, &f.Size, &f.Digest, &status, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Status = model.FileStatus(status)
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteRunsBefore removes runs started before t, with their pages and
// files, and returns how many runs were removed.
func (mdb *ManifestDB) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := mdb.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", t.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return result.RowsAffected()
}

// timestampFormats contains the timestamp formats that may be stored.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with each known format and returns the zero time
// when none matches.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
