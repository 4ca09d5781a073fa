package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/metascan/metascan/pkg/types"
)

var (
	// ErrNotFound is returned when a requested scan doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteCatalog implements the Catalog interface using SQLite
type SQLiteCatalog struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteCatalog creates a new SQLite catalog instance
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

// Close closes the database connection
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// BeginTx starts a new transaction
func (c *SQLiteCatalog) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, catalog: c}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	catalog *SQLiteCatalog
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (c *SQLiteCatalog) querier() querier {
	return c.db
}

// Scan operations

func createScanWithQuerier(ctx context.Context, q querier, scan *Scan) error {
	query := `
		INSERT INTO scans (root_path, recursive, started_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	if scan.StartedAt.IsZero() {
		scan.StartedAt = now
	}
	result, err := q.ExecContext(ctx, query,
		scan.RootPath, scan.Recursive, scan.StartedAt, now)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	scan.ID = id
	scan.CreatedAt = now
	return nil
}

func (c *SQLiteCatalog) CreateScan(ctx context.Context, scan *Scan) error {
	return createScanWithQuerier(ctx, c.querier(), scan)
}

func (t *sqliteTx) CreateScan(ctx context.Context, scan *Scan) error {
	return createScanWithQuerier(ctx, t.querier(), scan)
}

func finishScanWithQuerier(ctx context.Context, q querier, scan *Scan) error {
	query := `
		UPDATE scans
		SET finished_at = ?, total_files = ?, successful_scans = ?,
		    failed_scans = ?, total_size_bytes = ?
		WHERE id = ?
	`
	if scan.FinishedAt.IsZero() {
		scan.FinishedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		scan.FinishedAt, scan.TotalFiles, scan.SuccessfulScans,
		scan.FailedScans, scan.TotalSizeBytes, scan.ID)
	if err != nil {
		return fmt.Errorf("failed to finish scan: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) FinishScan(ctx context.Context, scan *Scan) error {
	return finishScanWithQuerier(ctx, c.querier(), scan)
}

func (t *sqliteTx) FinishScan(ctx context.Context, scan *Scan) error {
	return finishScanWithQuerier(ctx, t.querier(), scan)
}

func getScanWithQuerier(ctx context.Context, q querier, scanID int64) (*Scan, error) {
	query := `
		SELECT id, root_path, recursive, started_at, finished_at,
		       total_files, successful_scans, failed_scans, total_size_bytes, created_at
		FROM scans
		WHERE id = ?
	`
	var scan Scan
	var finishedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, scanID).Scan(
		&scan.ID, &scan.RootPath, &scan.Recursive, &scan.StartedAt, &finishedAt,
		&scan.TotalFiles, &scan.SuccessfulScans, &scan.FailedScans,
		&scan.TotalSizeBytes, &scan.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		scan.FinishedAt = finishedAt.Time
	}
	return &scan, nil
}

func (c *SQLiteCatalog) GetScan(ctx context.Context, scanID int64) (*Scan, error) {
	return getScanWithQuerier(ctx, c.querier(), scanID)
}

func (t *sqliteTx) GetScan(ctx context.Context, scanID int64) (*Scan, error) {
	return getScanWithQuerier(ctx, t.querier(), scanID)
}

func listScansWithQuerier(ctx context.Context, q querier, limit int) ([]*Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, root_path, recursive, started_at, finished_at,
		       total_files, successful_scans, failed_scans, total_size_bytes, created_at
		FROM scans
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scans []*Scan
	for rows.Next() {
		var scan Scan
		var finishedAt sql.NullTime
		if err := rows.Scan(
			&scan.ID, &scan.RootPath, &scan.Recursive, &scan.StartedAt, &finishedAt,
			&scan.TotalFiles, &scan.SuccessfulScans, &scan.FailedScans,
			&scan.TotalSizeBytes, &scan.CreatedAt,
		); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			scan.FinishedAt = finishedAt.Time
		}
		scans = append(scans, &scan)
	}
	return scans, rows.Err()
}

func (c *SQLiteCatalog) ListScans(ctx context.Context, limit int) ([]*Scan, error) {
	return listScansWithQuerier(ctx, c.querier(), limit)
}

func (t *sqliteTx) ListScans(ctx context.Context, limit int) ([]*Scan, error) {
	return listScansWithQuerier(ctx, t.querier(), limit)
}

func deleteScanWithQuerier(ctx context.Context, q querier, scanID int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM scans WHERE id = ?", scanID)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *SQLiteCatalog) DeleteScan(ctx context.Context, scanID int64) error {
	return deleteScanWithQuerier(ctx, c.querier(), scanID)
}

func (t *sqliteTx) DeleteScan(ctx context.Context, scanID int64) error {
	return deleteScanWithQuerier(ctx, t.querier(), scanID)
}

// Result operations

func insertResultWithQuerier(ctx context.Context, q querier, res *Result) error {
	query := `
		INSERT INTO scan_results (scan_id, path, category, fields_json,
		                          error_kind, error_message, from_cache, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	fields := res.FieldsJSON
	if fields == "" {
		fields = "{}"
	}
	result, err := q.ExecContext(ctx, query,
		res.ScanID, res.Path, string(res.Category), fields,
		res.ErrorKind, res.ErrorMessage, res.FromCache, res.Attempts, now)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = id
	res.CreatedAt = now
	return nil
}

func (c *SQLiteCatalog) InsertResult(ctx context.Context, res *Result) error {
	return insertResultWithQuerier(ctx, c.querier(), res)
}

func (t *sqliteTx) InsertResult(ctx context.Context, res *Result) error {
	return insertResultWithQuerier(ctx, t.querier(), res)
}

func listResultsByScanWithQuerier(ctx context.Context, q querier, scanID int64) ([]*Result, error) {
	query := `
		SELECT id, scan_id, path, category, fields_json,
		       error_kind, error_message, from_cache, attempts, created_at
		FROM scan_results
		WHERE scan_id = ?
		ORDER BY path
	`
	rows, err := q.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Result
	for rows.Next() {
		var res Result
		var category string
		var errKind, errMsg sql.NullString
		if err := rows.Scan(
			&res.ID, &res.ScanID, &res.Path, &category, &res.FieldsJSON,
			&errKind, &errMsg, &res.FromCache, &res.Attempts, &res.CreatedAt,
		); err != nil {
			return nil, err
		}
		res.Category = types.Category(category)
		res.ErrorKind = errKind.String
		res.ErrorMessage = errMsg.String
		results = append(results, &res)
	}
	return results, rows.Err()
}

func (c *SQLiteCatalog) ListResultsByScan(ctx context.Context, scanID int64) ([]*Result, error) {
	return listResultsByScanWithQuerier(ctx, c.querier(), scanID)
}

func (t *sqliteTx) ListResultsByScan(ctx context.Context, scanID int64) ([]*Result, error) {
	return listResultsByScanWithQuerier(ctx, t.querier(), scanID)
}

// Transactions must not nest.
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("already in a transaction")
}

func (t *sqliteTx) Close() error {
	return t.tx.Rollback()
}
