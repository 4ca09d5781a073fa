package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/metascan/metascan/internal/cache"
	"github.com/metascan/metascan/internal/memory"
	"github.com/metascan/metascan/pkg/types"
)

// Defaults applied when Config fields are zero.
const (
	// MaxPoolWorkers caps the shared worker pool regardless of
	// configuration, bounding concurrent file handles and decoder
	// invocations.
	MaxPoolWorkers = 4

	DefaultMaxRetries     = 2
	DefaultPerFileTimeout = 30 * time.Second
	DefaultBackoffBase    = 100 * time.Millisecond
)

// Config configures an Extractor.
type Config struct {
	// Cache is the shared result cache. Optional; without it every
	// extraction runs fresh.
	Cache *cache.ResultCache
	// Monitor is the shared memory monitor, sampled periodically during
	// batches. Optional.
	Monitor *memory.Monitor
	// Capabilities is the per-category extraction table. Defaults to a
	// registry of unavailable sentinels.
	Capabilities Registry

	// MaxWorkers requests a pool size; the effective size is
	// min(MaxWorkers, MaxPoolWorkers).
	MaxWorkers     int
	MaxRetries     int
	PerFileTimeout time.Duration
	BackoffBase    time.Duration

	Logger *zap.Logger
}

// Extractor extracts categorized metadata from files. One Extractor owns
// one bounded worker pool shared across all its batch calls; create it
// once and share it.
type Extractor struct {
	cache   *cache.ResultCache
	monitor *memory.Monitor
	caps    Registry
	logger  *zap.Logger

	maxRetries     int
	perFileTimeout time.Duration
	backoffBase    time.Duration
	sem            chan struct{}

	// statFn is injectable for failure-path tests.
	statFn func(string) (os.FileInfo, error)
}

// New creates an Extractor, applying defaults for zero config fields.
func New(cfg Config) *Extractor {
	if cfg.Capabilities == nil {
		cfg.Capabilities = NewRegistry()
	}
	if cfg.MaxWorkers <= 0 || cfg.MaxWorkers > MaxPoolWorkers {
		cfg.MaxWorkers = MaxPoolWorkers
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PerFileTimeout <= 0 {
		cfg.PerFileTimeout = DefaultPerFileTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Extractor{
		cache:          cfg.Cache,
		monitor:        cfg.Monitor,
		caps:           cfg.Capabilities,
		logger:         cfg.Logger,
		maxRetries:     cfg.MaxRetries,
		perFileTimeout: cfg.PerFileTimeout,
		backoffBase:    cfg.BackoffBase,
		sem:            make(chan struct{}, cfg.MaxWorkers),
		statFn:         os.Stat,
	}
}

// CacheKey computes the fingerprint for path from (absolute path, mtime,
// size). A changed file never collides with its previous key.
func (e *Extractor) CacheKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := e.statFn(abs)
	if err != nil {
		return "", err
	}
	return fingerprint(abs, info.ModTime(), info.Size()), nil
}

func fingerprint(abs string, mtime time.Time, size int64) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%d:%d", abs, mtime.UnixNano(), size))
	return hex.EncodeToString(h[:])
}

// Extract extracts metadata for one file. It never panics and never
// returns nil: failures are classified and carried on the result.
func (e *Extractor) Extract(ctx context.Context, path string) (res *types.ExtractionResult) {
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return e.failureResult(path, Classify(err), 0)
	}

	// Path validation: missing or irregular paths fail immediately with
	// no retry. Transient stat failures fall through to the retry loop.
	var key string
	info, err := e.statFn(abs)
	if err != nil {
		if xerr := Classify(err); xerr.Kind == types.ErrFileAccess {
			return e.failureResult(abs, xerr, 0)
		}
	} else {
		if !info.Mode().IsRegular() {
			return e.failureResult(abs, Classify(fmt.Errorf("%s: %w", abs, types.ErrNotRegularFile)), 0)
		}
		key = fingerprint(abs, info.ModTime(), info.Size())
		if e.cache != nil {
			if cached, ok := e.cache.Get(key); ok {
				cached.FromCache = true
				return cached
			}
		}
	}

	var lastErr *types.ExtractError
	for attempt := 1; attempt <= e.maxRetries+1; attempt++ {
		res, xerr := e.extractOnce(ctx, abs)
		if xerr == nil {
			res.Attempts = attempt
			if key == "" {
				key, _ = e.CacheKey(abs)
			}
			e.writeThrough(key, res)
			return res
		}

		lastErr = xerr
		lastErr.Attempts = attempt
		if xerr.Kind == types.ErrMemory && e.monitor != nil {
			// A memory error abandons the file and reclaims aggressively,
			// clearing the shared cache.
			e.monitor.Reclaim(true)
		}
		if !xerr.RetryRecommended || attempt > e.maxRetries {
			break
		}
		if !e.backoff(ctx, attempt) {
			// Cancelled: skip remaining backoff and return immediately.
			break
		}
	}

	// Retries exhausted; degrade to whatever partial fields are still
	// obtainable rather than failing outright.
	return e.recoveryResult(abs, lastErr)
}

// extractOnce runs a single extraction attempt: basic info first, then
// the category capability. A capability failure is a soft per-category
// error; only a basic-info failure makes the attempt fail.
func (e *Extractor) extractOnce(ctx context.Context, abs string) (*types.ExtractionResult, *types.ExtractError) {
	basic, berr := e.ExtractBasic(abs)
	if berr != nil {
		return nil, berr
	}

	res := &types.ExtractionResult{
		Path:        abs,
		Category:    basic.Category,
		Fields:      basic.FieldsMap(),
		ExtractedAt: time.Now(),
	}

	capFn, ok := e.caps[basic.Category]
	if !ok {
		return res, nil
	}

	fields, err := e.invokeCapability(ctx, capFn, abs)
	if err != nil {
		cerr := Classify(err)
		res.CategoryErrors = map[types.Category]*types.ExtractError{basic.Category: cerr}
		if cerr.Kind == types.ErrCorruptedFile {
			res.RecoveryMethod = types.RecoveryPartialCorrupted
		} else {
			res.RecoveryMethod = types.RecoveryBasicOnly
		}
		e.logger.Debug("category extraction degraded",
			zap.String("path", abs),
			zap.String("category", string(basic.Category)),
			zap.String("kind", string(cerr.Kind)))
		return res, nil
	}

	if len(fields) > 0 {
		res.Fields[string(basic.Category)] = fields
	}
	return res, nil
}

// invokeCapability shields the pipeline from panicking decoders.
func (e *Extractor) invokeCapability(ctx context.Context, fn CapabilityFunc, abs string) (fields map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields = nil
			err = fmt.Errorf("capability panic: %v: %w", r, types.ErrCorrupted)
		}
	}()
	return fn(ctx, abs)
}

// backoff sleeps for a linearly increasing delay. It returns false when
// the context was cancelled during the wait.
func (e *Extractor) backoff(ctx context.Context, attempt int) bool {
	select {
	case <-time.After(time.Duration(attempt) * e.backoffBase):
		return true
	case <-ctx.Done():
		return false
	}
}

// writeThrough stores a successful result in the cache. Cache failures
// degrade gracefully and never fail the extraction.
func (e *Extractor) writeThrough(key string, res *types.ExtractionResult) {
	if e.cache == nil || key == "" || res.Err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("cache write failed", zap.String("path", res.Path), zap.Any("panic", r))
		}
	}()
	e.cache.Set(key, res)
}

func (e *Extractor) failureResult(path string, xerr *types.ExtractError, attempts int) *types.ExtractionResult {
	xerr.Attempts = attempts
	return &types.ExtractionResult{
		Path:        path,
		Category:    types.CategoryForPath(path),
		Fields:      map[string]any{"filepath": path},
		Err:         xerr,
		ExtractedAt: time.Now(),
		Attempts:    attempts,
	}
}

// recoveryResult builds the degraded result returned when basic info
// could not be extracted after all retries. The recovery tag follows the
// exhausted error: only corruption is partial_corrupted.
func (e *Extractor) recoveryResult(abs string, lastErr *types.ExtractError) *types.ExtractionResult {
	method := types.RecoveryBasicOnly
	if lastErr.Kind == types.ErrCorruptedFile {
		method = types.RecoveryPartialCorrupted
	}
	return &types.ExtractionResult{
		Path:     abs,
		Category: types.CategoryForPath(abs),
		Fields: map[string]any{
			"filename": filepath.Base(abs),
			"filepath": abs,
		},
		Err:            lastErr,
		ExtractedAt:    time.Now(),
		Attempts:       lastErr.Attempts,
		RecoveryMethod: method,
	}
}

// CacheStats reports the shared cache state for operational inspection.
func (e *Extractor) CacheStats() types.CacheStats {
	if e.cache == nil {
		return types.CacheStats{}
	}
	return e.cache.Stats()
}

// ClearCache purges the shared cache.
func (e *Extractor) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}
