package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metascan/metascan/internal/extractor"
	"github.com/metascan/metascan/pkg/types"
)

// fakeExtractor lets tests fail batch submission or observe calls.
type fakeExtractor struct {
	batchErr     error
	batchCalls   atomic.Int32
	extractCalls atomic.Int32
	block        chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) *types.ExtractionResult {
	f.extractCalls.Add(1)
	return &types.ExtractionResult{
		Path:        path,
		Category:    types.CategoryForPath(path),
		Fields:      map[string]any{"filepath": path, "size": int64(1), "extension": filepath.Ext(path)},
		ExtractedAt: time.Now(),
	}
}

func (f *fakeExtractor) ExtractBatch(ctx context.Context, paths []string, onProgress extractor.ProgressFunc) (map[string]*types.ExtractionResult, error) {
	f.batchCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]*types.ExtractionResult, len(paths))
	for i, p := range paths {
		out[p] = f.Extract(ctx, p)
		if onProgress != nil {
			onProgress(i+1, len(paths))
		}
	}
	return out, nil
}

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string][]byte{
		"a.jpg":                []byte("aaaa"),
		"b.txt":                []byte("bb"),
		".hidden.jpg":          []byte("h"),
		"sub/c.png":            []byte("cccccc"),
		"sub/deep/d.mp3":       []byte("dddd"),
		".git/objects/x.jpg":   []byte("vcs"),
		"node_modules/e.jpg":   []byte("dep"),
		"__pycache__/f.pyc":    []byte("pyc"),
		"vendor/g.jpg":         []byte("vendored"),
		"build/artifact.jpg":   []byte("built"),
		"sub/.hiddendir/h.jpg": []byte("hh"),
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, content, 0o644))
	}
	return root
}

func names(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f)
	}
	return out
}

func TestFindFilesRecursivePrunesExcludedDirs(t *testing.T) {
	root := writeTree(t)
	s := New(Config{})

	files, err := s.FindFiles(context.Background(), root, Options{Recursive: true})
	require.NoError(t, err)

	got := names(files)
	assert.ElementsMatch(t, []string{"a.jpg", "b.txt", "c.png", "d.mp3"}, got)
}

func TestFindFilesNonRecursive(t *testing.T) {
	root := writeTree(t)
	s := New(Config{})

	files, err := s.FindFiles(context.Background(), root, Options{Recursive: false})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.txt"}, names(files))
}

func TestFindFilesExtensionFilter(t *testing.T) {
	root := writeTree(t)
	s := New(Config{})

	// Extensions normalize with or without the leading dot.
	files, err := s.FindFiles(context.Background(), root, Options{
		Recursive:  true,
		Extensions: []string{"jpg", ".PNG"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "c.png"}, names(files))
}

func TestFindFilesNonRecursiveExtensionGlob(t *testing.T) {
	root := writeTree(t)
	s := New(Config{})

	files, err := s.FindFiles(context.Background(), root, Options{
		Recursive:  false,
		Extensions: []string{".jpg"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg"}, names(files))
}

func TestFindFilesIncludeHidden(t *testing.T) {
	root := writeTree(t)
	s := New(Config{})

	files, err := s.FindFiles(context.Background(), root, Options{
		Recursive:     false,
		IncludeHidden: true,
	})
	require.NoError(t, err)
	assert.Contains(t, names(files), ".hidden.jpg")
}

func TestFindFilesSizeFilters(t *testing.T) {
	root := writeTree(t)
	s := New(Config{})

	files, err := s.FindFiles(context.Background(), root, Options{
		Recursive: true,
		MinSize:   3,
		MaxSize:   4,
	})
	require.NoError(t, err)
	// a.jpg (4) and d.mp3 (4) fit; b.txt (2) is too small, c.png (6) too big.
	assert.ElementsMatch(t, []string{"a.jpg", "d.mp3"}, names(files))
}

func TestFindFilesMissingRoot(t *testing.T) {
	s := New(Config{})
	_, err := s.FindFiles(context.Background(), "/does/not/exist", Options{})
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestFindFilesFileRoot(t *testing.T) {
	root := writeTree(t)
	s := New(Config{})

	target := filepath.Join(root, "a.jpg")
	files, err := s.FindFiles(context.Background(), target, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{target}, files)

	files, err = s.FindFiles(context.Background(), target, Options{Extensions: []string{".png"}})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanDirectoryZeroMatchesIsNotAnError(t *testing.T) {
	root := t.TempDir()
	s := New(Config{Extractor: &fakeExtractor{}})

	results, err := s.ScanDirectory(context.Background(), root, Options{Recursive: true, ExtractMetadata: true})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, StateCompleted, s.State())
}

func TestScanDirectoryEndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("img"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("text"), 0o644))

	s := New(Config{Extractor: extractor.New(extractor.Config{})})
	results, err := s.ScanDirectory(context.Background(), root, Options{ExtractMetadata: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StateCompleted, s.State())

	byName := map[string]types.ScanResult{}
	for _, r := range results {
		byName[filepath.Base(r.Path)] = r
	}
	assert.Equal(t, types.CategoryImage, byName["a.jpg"].Result.Category)
	assert.Equal(t, types.CategoryDocument, byName["b.txt"].Result.Category)
	assert.False(t, byName["a.jpg"].Failed())
	for _, r := range results {
		assert.Positive(t, r.Elapsed, "pooled extraction must record per-file elapsed time")
	}
}

func TestScanFilesStatOnlySkipsExtractor(t *testing.T) {
	root := writeTree(t)
	fake := &fakeExtractor{}
	s := New(Config{Extractor: fake})

	files := []string{filepath.Join(root, "a.jpg"), filepath.Join(root, "b.txt")}
	results := s.ScanFiles(context.Background(), files, Options{ExtractMetadata: false})
	require.Len(t, results, 2)

	assert.Zero(t, fake.batchCalls.Load())
	assert.Zero(t, fake.extractCalls.Load())
	assert.Equal(t, int64(4), results[0].Result.Fields["size"])
	assert.Equal(t, ".jpg", results[0].Result.Fields["extension"])
}

func TestScanFilesStatOnlyReportsMissingFile(t *testing.T) {
	root := writeTree(t)
	s := New(Config{Extractor: &fakeExtractor{}})

	files := []string{filepath.Join(root, "gone.jpg")}
	results := s.ScanFiles(context.Background(), files, Options{ExtractMetadata: false})
	require.Len(t, results, 1)
	require.True(t, results[0].Failed())
	assert.Equal(t, types.ErrFileAccess, results[0].Err.Kind)
}

func TestScanFilesSequentialFallback(t *testing.T) {
	root := writeTree(t)
	fake := &fakeExtractor{batchErr: errors.New("no pool")}
	s := New(Config{Extractor: fake})

	files := []string{filepath.Join(root, "a.jpg"), filepath.Join(root, "b.txt")}
	results := s.ScanFiles(context.Background(), files, Options{ExtractMetadata: true})
	require.Len(t, results, 2)

	assert.Equal(t, int32(1), fake.batchCalls.Load())
	assert.Equal(t, int32(2), fake.extractCalls.Load(), "fallback extracts each file sequentially")
}

func TestScanFilesStopHaltsProcessing(t *testing.T) {
	root := writeTree(t)
	s := New(Config{Extractor: &fakeExtractor{}})
	s.Stop()

	files := []string{filepath.Join(root, "a.jpg")}
	results := s.ScanFiles(context.Background(), files, Options{ExtractMetadata: false})
	assert.Empty(t, results)
}

func TestFileStatistics(t *testing.T) {
	results := []types.ScanResult{
		{
			Path: "/x/big.jpg",
			Result: &types.ExtractionResult{
				Category: types.CategoryImage,
				Fields:   map[string]any{"size": int64(1000), "size_human": "1000 B", "extension": ".jpg"},
			},
		},
		{
			Path: "/x/small.txt",
			Result: &types.ExtractionResult{
				Category: types.CategoryDocument,
				Fields:   map[string]any{"size": int64(10), "size_human": "10 B", "extension": ".txt"},
			},
		},
		{
			Path: "/x/other.jpg",
			Result: &types.ExtractionResult{
				Category: types.CategoryImage,
				Fields:   map[string]any{"size": int64(500), "size_human": "500 B", "extension": ".jpg"},
			},
		},
		{
			Path: "/x/gone.jpg",
			Err:  types.NewExtractError(types.ErrFileAccess, "no such file"),
		},
	}

	stats := FileStatistics(results)
	assert.Equal(t, 4, stats.TotalFiles)
	assert.Equal(t, 3, stats.SuccessfulScans)
	assert.Equal(t, 1, stats.FailedScans)
	assert.Equal(t, int64(1510), stats.TotalSizeBytes)
	assert.Equal(t, 2, stats.ByFileType[types.CategoryImage])
	assert.Equal(t, 1, stats.ByFileType[types.CategoryDocument])
	assert.Equal(t, 2, stats.ByExtension[".jpg"])
	require.NotNil(t, stats.LargestFile)
	assert.Equal(t, "/x/big.jpg", stats.LargestFile.Path)
	require.NotNil(t, stats.SmallestFile)
	assert.Equal(t, "/x/small.txt", stats.SmallestFile.Path)
}

func TestFileStatisticsEmpty(t *testing.T) {
	stats := FileStatistics(nil)
	assert.Equal(t, 0, stats.TotalFiles)
	assert.Nil(t, stats.LargestFile)
	assert.Nil(t, stats.SmallestFile)
	assert.Equal(t, "0 B", stats.TotalSizeHuman)
}
