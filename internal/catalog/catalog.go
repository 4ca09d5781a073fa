package catalog

import (
	"context"
	"time"

	"github.com/metascan/metascan/pkg/types"
)

// Catalog defines the interface for persisting and querying scan history.
type Catalog interface {
	// Scan operations
	CreateScan(ctx context.Context, scan *Scan) error
	FinishScan(ctx context.Context, scan *Scan) error
	GetScan(ctx context.Context, scanID int64) (*Scan, error)
	ListScans(ctx context.Context, limit int) ([]*Scan, error)
	DeleteScan(ctx context.Context, scanID int64) error

	// Result operations
	InsertResult(ctx context.Context, result *Result) error
	ListResultsByScan(ctx context.Context, scanID int64) ([]*Result, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a catalog transaction. Results for one scan are inserted inside a
// transaction so a crashed scan never leaves a half-written report.
type Tx interface {
	Commit() error
	Rollback() error
	Catalog
}

// Scan is one recorded scan run.
type Scan struct {
	ID              int64
	RootPath        string
	Recursive       bool
	StartedAt       time.Time
	FinishedAt      time.Time
	TotalFiles      int
	SuccessfulScans int
	FailedScans     int
	TotalSizeBytes  int64
	CreatedAt       time.Time
}

// Result is one file's outcome within a scan. Extraction fields are kept
// as a JSON document; the catalog does not interpret them.
type Result struct {
	ID           int64
	ScanID       int64
	Path         string
	Category     types.Category
	FieldsJSON   string
	ErrorKind    string
	ErrorMessage string
	FromCache    bool
	Attempts     int
	CreatedAt    time.Time
}
