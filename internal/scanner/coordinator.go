package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/metascan/metascan/internal/catalog"
	"github.com/metascan/metascan/internal/extractor"
	"github.com/metascan/metascan/internal/memory"
	"github.com/metascan/metascan/pkg/types"
)

// ScanLock provides non-blocking lock semantics using atomic operations,
// enforcing at-most-one active scan per coordinator.
type ScanLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *ScanLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *ScanLock) Release() {
	l.state.Store(0)
}

// ErrScanInProgress is returned when a scan is requested while another is
// still running. New requests are rejected, not queued.
var ErrScanInProgress = errors.New("a scan is already in progress")

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Scanner *Scanner
	// Monitor is sampled before the scan and reclaimed under pressure.
	// Optional.
	Monitor *memory.Monitor
	// Catalog persists completed scans when set. Optional.
	Catalog catalog.Catalog
	Logger  *zap.Logger
}

// Report is the outcome of one coordinated scan.
type Report struct {
	Results    []types.ScanResult
	Statistics types.Statistics
	// ScanID is the catalog row for this scan, zero when no catalog is
	// configured or persistence failed.
	ScanID int64
}

// Coordinator orchestrates scans: it owns the cancellation signal and the
// progress callback, guarantees at-most-one active scan, and persists
// completed scans to the catalog when one is configured.
type Coordinator struct {
	scanner *Scanner
	monitor *memory.Monitor
	catalog catalog.Catalog
	logger  *zap.Logger

	lock   ScanLock
	cancel atomic.Value // context.CancelFunc
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{
		scanner: cfg.Scanner,
		monitor: cfg.Monitor,
		catalog: cfg.Catalog,
		logger:  cfg.Logger,
	}
}

// Run executes one scan. A second Run while one is in flight returns
// ErrScanInProgress. Stop from another goroutine cancels the running scan.
func (c *Coordinator) Run(ctx context.Context, root string, opts Options, onProgress extractor.ProgressFunc) (*Report, error) {
	if !c.lock.TryAcquire() {
		return nil, ErrScanInProgress
	}
	defer c.lock.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel.Store(cancel)

	if c.monitor != nil && c.monitor.ShouldReclaim() {
		c.monitor.Reclaim(c.monitor.CriticalPressure())
	}

	c.scanner.SetProgress(onProgress)
	defer c.scanner.SetProgress(nil)

	results, err := c.scanner.ScanDirectory(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Results:    results,
		Statistics: FileStatistics(results),
	}

	if c.catalog != nil {
		if id, err := c.persist(ctx, root, opts, report); err != nil {
			// Persistence failures degrade: the scan results are still
			// returned to the caller.
			c.logger.Warn("failed to persist scan", zap.Error(err))
		} else {
			report.ScanID = id
		}
	}

	c.logger.Info("scan finished",
		zap.String("root", root),
		zap.String("state", c.scanner.State().String()),
		zap.Int("total", report.Statistics.TotalFiles),
		zap.Int("failed", report.Statistics.FailedScans))

	return report, nil
}

// Stop halts the in-flight scan from another goroutine. Safe to call when
// no scan is running.
func (c *Coordinator) Stop() {
	c.scanner.Stop()
	if fn, ok := c.cancel.Load().(context.CancelFunc); ok && fn != nil {
		fn()
	}
}

// persist records the completed scan and its results in one transaction.
func (c *Coordinator) persist(ctx context.Context, root string, opts Options, report *Report) (int64, error) {
	tx, err := c.catalog.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	scan := &catalog.Scan{
		RootPath:  root,
		Recursive: opts.Recursive,
	}
	if err := tx.CreateScan(ctx, scan); err != nil {
		return 0, err
	}

	for i := range report.Results {
		rec, err := toCatalogResult(scan.ID, &report.Results[i])
		if err != nil {
			return 0, err
		}
		if err := tx.InsertResult(ctx, rec); err != nil {
			return 0, err
		}
	}

	scan.TotalFiles = report.Statistics.TotalFiles
	scan.SuccessfulScans = report.Statistics.SuccessfulScans
	scan.FailedScans = report.Statistics.FailedScans
	scan.TotalSizeBytes = report.Statistics.TotalSizeBytes
	if err := tx.FinishScan(ctx, scan); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return scan.ID, nil
}

func toCatalogResult(scanID int64, r *types.ScanResult) (*catalog.Result, error) {
	rec := &catalog.Result{
		ScanID:   scanID,
		Path:     r.Path,
		Category: types.CategoryUnknown,
	}
	if r.Result != nil {
		rec.Category = r.Result.Category
		rec.FromCache = r.Result.FromCache
		rec.Attempts = r.Result.Attempts
		if len(r.Result.Fields) > 0 {
			data, err := json.Marshal(r.Result.Fields)
			if err != nil {
				return nil, err
			}
			rec.FieldsJSON = string(data)
		}
	}
	if r.Err != nil {
		rec.ErrorKind = string(r.Err.Kind)
		rec.ErrorMessage = r.Err.Message
	}
	return rec, nil
}
