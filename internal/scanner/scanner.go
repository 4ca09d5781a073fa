package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/metascan/metascan/internal/extractor"
	"github.com/metascan/metascan/pkg/types"
)

// State is the scanner lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateWalking
	StateStopped
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWalking:
		return "walking"
	case StateStopped:
		return "stopped"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ErrRootNotFound is returned when the scan root does not exist or is not
// readable. A root that exists but matches no files is not an error.
var ErrRootNotFound = errors.New("scan root not found")

// defaultExcludedDirs are directory names never descended into.
var defaultExcludedDirs = []string{
	".git", "node_modules", "__pycache__", "vendor", ".cache", "build", "dist",
}

// MetadataExtractor is the extraction surface the scanner depends on.
// *extractor.Extractor satisfies it; tests substitute failure-injecting
// implementations.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) *types.ExtractionResult
	ExtractBatch(ctx context.Context, paths []string, onProgress extractor.ProgressFunc) (map[string]*types.ExtractionResult, error)
}

// Options controls one scan.
type Options struct {
	// Recursive descends into subdirectories. Excluded directories are
	// pruned before descent either way.
	Recursive bool
	// Extensions restricts discovery to these extensions (with or without
	// a leading dot, case-insensitive). Empty means all files.
	Extensions []string
	IncludeHidden bool
	// MinSize/MaxSize bound file size in bytes; zero means unbounded.
	MinSize int64
	MaxSize int64
	// ExtractMetadata runs full extraction. When false, results carry
	// stat-derived fields only and the cache is never consulted.
	ExtractMetadata bool
}

// Config configures a Scanner.
type Config struct {
	Extractor MetadataExtractor
	// ExcludedDirs overrides the default directory-name exclusions.
	ExcludedDirs []string
	Logger       *zap.Logger
}

// Scanner enumerates files and produces scan results. One Scanner runs
// one scan at a time; the Coordinator enforces this across goroutines.
type Scanner struct {
	extractor MetadataExtractor
	excluded  map[string]struct{}
	logger    *zap.Logger

	state    atomic.Int32
	stopFlag atomic.Bool
	progress extractor.ProgressFunc
}

// New creates a Scanner, applying defaults for zero config fields.
func New(cfg Config) *Scanner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	dirs := cfg.ExcludedDirs
	if dirs == nil {
		dirs = defaultExcludedDirs
	}
	excluded := make(map[string]struct{}, len(dirs))
	for _, d := range dirs {
		excluded[d] = struct{}{}
	}
	return &Scanner{
		extractor: cfg.Extractor,
		excluded:  excluded,
		logger:    cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (s *Scanner) State() State {
	return State(s.state.Load())
}

// SetProgress installs the progress sink invoked per completed file.
// The Coordinator owns the callback; calling this mid-scan races.
func (s *Scanner) SetProgress(fn extractor.ProgressFunc) {
	s.progress = fn
}

// Stop requests cooperative cancellation of the in-flight scan. The flag
// is checked at every directory entry and before each file is processed.
func (s *Scanner) Stop() {
	s.stopFlag.Store(true)
}

func (s *Scanner) stopping(ctx context.Context) bool {
	return s.stopFlag.Load() || ctx.Err() != nil
}

// ScanDirectory enumerates files under root matching opts and scans them.
// A missing root is a scan-level error with no partial results; a root
// matching zero files returns empty results and no error.
func (s *Scanner) ScanDirectory(ctx context.Context, root string, opts Options) ([]types.ScanResult, error) {
	s.stopFlag.Store(false)
	s.state.Store(int32(StateWalking))

	files, err := s.FindFiles(ctx, root, opts)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return nil, err
	}

	results := s.ScanFiles(ctx, files, opts)

	if s.stopping(ctx) {
		s.state.Store(int32(StateStopped))
	} else {
		s.state.Store(int32(StateCompleted))
	}
	return results, nil
}

// FindFiles enumerates candidate paths under root matching opts. The
// returned slice is materialized and sorted; discovery is not restartable.
func (s *Scanner) FindFiles(ctx context.Context, root string, opts Options) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	exts := normalizeExtensions(opts.Extensions)

	// A file root short-circuits discovery.
	if info.Mode().IsRegular() {
		if s.matchFile(abs, exts, opts) {
			return []string{abs}, nil
		}
		return nil, nil
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	var files []string
	if !opts.Recursive && len(exts) > 0 {
		// Per-extension pattern enumeration is cheaper than filtering
		// every directory entry.
		files, err = s.globExtensions(ctx, abs, exts, opts)
	} else {
		files, err = s.walk(ctx, abs, exts, opts)
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (s *Scanner) globExtensions(ctx context.Context, root string, exts map[string]struct{}, opts Options) ([]string, error) {
	var files []string
	for ext := range exts {
		matches, err := filepath.Glob(filepath.Join(root, "*"+ext))
		if err != nil {
			// Only malformed patterns error; extensions cannot produce one.
			continue
		}
		for _, m := range matches {
			if s.stopping(ctx) {
				return files, nil
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if s.includeByAttrs(filepath.Base(m), info.Size(), opts) {
				files = append(files, m)
			}
		}
	}
	return files, nil
}

func (s *Scanner) walk(ctx context.Context, root string, exts map[string]struct{}, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if s.stopping(ctx) {
			return fs.SkipAll
		}
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			s.logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, ok := s.excluded[name]; ok {
				return fs.SkipDir
			}
			if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			if !opts.Recursive {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if len(exts) > 0 {
			if _, ok := exts[strings.ToLower(filepath.Ext(name))]; !ok {
				return nil
			}
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if s.includeByAttrs(name, info.Size(), opts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Scanner) matchFile(path string, exts map[string]struct{}, opts Options) bool {
	name := filepath.Base(path)
	if len(exts) > 0 {
		if _, ok := exts[strings.ToLower(filepath.Ext(name))]; !ok {
			return false
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return s.includeByAttrs(name, info.Size(), opts)
}

func (s *Scanner) includeByAttrs(name string, size int64, opts Options) bool {
	if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return false
	}
	if opts.MinSize > 0 && size < opts.MinSize {
		return false
	}
	if opts.MaxSize > 0 && size > opts.MaxSize {
		return false
	}
	return true
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}

// ScanFiles scans an explicit file list. With ExtractMetadata false it
// produces stat-only results without touching the extractor or cache.
// A catastrophic batch submission failure degrades to sequential
// per-file extraction instead of losing the scan.
func (s *Scanner) ScanFiles(ctx context.Context, files []string, opts Options) []types.ScanResult {
	if len(files) == 0 {
		return nil
	}

	if !opts.ExtractMetadata {
		return s.statOnly(ctx, files)
	}

	batch, err := s.extractor.ExtractBatch(ctx, files, s.progress)
	if err != nil {
		s.logger.Warn("batch submission failed, falling back to sequential extraction", zap.Error(err))
		return s.sequential(ctx, files)
	}

	results := make([]types.ScanResult, 0, len(batch))
	for path, res := range batch {
		results = append(results, types.ScanResult{
			Path:    path,
			Result:  res,
			Elapsed: res.Elapsed,
			Err:     res.Err,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results
}

// statOnly builds lightweight results from stat data.
func (s *Scanner) statOnly(ctx context.Context, files []string) []types.ScanResult {
	results := make([]types.ScanResult, 0, len(files))
	for i, path := range files {
		if s.stopping(ctx) {
			break
		}
		start := time.Now()
		res := statResult(path)
		results = append(results, types.ScanResult{
			Path:    res.Path,
			Result:  res,
			Elapsed: time.Since(start),
			Err:     res.Err,
		})
		s.report(i+1, len(files))
	}
	return results
}

func statResult(path string) *types.ExtractionResult {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	info, err := os.Stat(abs)
	if err != nil {
		return &types.ExtractionResult{
			Path:        abs,
			Category:    types.CategoryForPath(abs),
			Fields:      map[string]any{"filepath": abs},
			Err:         extractor.Classify(err),
			ExtractedAt: time.Now(),
		}
	}
	name := info.Name()
	ext := strings.ToLower(filepath.Ext(name))
	return &types.ExtractionResult{
		Path:     abs,
		Category: types.CategoryForPath(name),
		Fields: map[string]any{
			"filename":   name,
			"filepath":   abs,
			"size":       info.Size(),
			"size_human": types.HumanSize(info.Size()),
			"extension":  ext,
		},
		ExtractedAt: time.Now(),
	}
}

// sequential is the degraded path taken when the pool cannot accept work.
func (s *Scanner) sequential(ctx context.Context, files []string) []types.ScanResult {
	results := make([]types.ScanResult, 0, len(files))
	for i, path := range files {
		if s.stopping(ctx) {
			break
		}
		start := time.Now()
		res := s.extractor.Extract(ctx, path)
		results = append(results, types.ScanResult{
			Path:    res.Path,
			Result:  res,
			Elapsed: time.Since(start),
			Err:     res.Err,
		})
		s.report(i+1, len(files))
	}
	return results
}

// report invokes the progress sink, swallowing panics.
func (s *Scanner) report(completed, total int) {
	if s.progress == nil {
		return
	}
	defer func() { _ = recover() }()
	s.progress(completed, total)
}
