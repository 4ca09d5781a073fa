package extractor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metascan/metascan/internal/cache"
	"github.com/metascan/metascan/internal/memory"
	"github.com/metascan/metascan/pkg/types"
)

func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestExtractBasicFields(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "photo.JPG", []byte("not really a jpeg"))

	e := New(Config{})
	info, xerr := e.ExtractBasic(path)
	require.Nil(t, xerr)

	assert.Equal(t, "photo.JPG", info.Name)
	assert.Equal(t, "photo", info.Stem)
	assert.Equal(t, ".jpg", info.Extension)
	assert.Equal(t, types.CategoryImage, info.Category)
	assert.Equal(t, int64(17), info.SizeBytes)
	assert.Equal(t, "644", info.Permissions)
	assert.False(t, info.Hidden)
	assert.True(t, filepath.IsAbs(info.Path))
	assert.Equal(t, dir, info.Dir)
}

func TestExtractBasicHiddenFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, ".env", []byte("SECRET=1"))

	e := New(Config{})
	info, xerr := e.ExtractBasic(path)
	require.Nil(t, xerr)
	assert.True(t, info.Hidden)
	assert.Equal(t, types.CategoryUnknown, info.Category)
}

func TestExtractMissingFileFailsWithoutRetry(t *testing.T) {
	calls := 0
	e := New(Config{MaxRetries: 3})
	e.statFn = func(path string) (os.FileInfo, error) {
		calls++
		return nil, &fs.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}

	res := e.Extract(context.Background(), "/nope/missing.jpg")
	require.NotNil(t, res)
	require.True(t, res.Failed())
	assert.Equal(t, types.ErrFileAccess, res.Err.Kind)
	assert.False(t, res.Err.RetryRecommended)
	assert.Equal(t, 1, calls, "file_access failures must not be retried")
}

func TestExtractDirectoryIsNotRegularFile(t *testing.T) {
	dir := t.TempDir()

	e := New(Config{})
	res := e.Extract(context.Background(), dir)
	require.True(t, res.Failed())
	assert.Equal(t, types.ErrFileAccess, res.Err.Kind)
}

func TestExtractRetriesTransientIOExactlyMaxRetriesPlusOne(t *testing.T) {
	const maxRetries = 2

	attempts := 0
	e := New(Config{MaxRetries: maxRetries, BackoffBase: time.Millisecond})
	e.statFn = func(path string) (os.FileInfo, error) {
		attempts++
		return nil, &fs.PathError{Op: "read", Path: path, Err: syscall.EIO}
	}

	res := e.Extract(context.Background(), "/flaky/file.mp3")
	require.True(t, res.Failed())
	assert.Equal(t, types.ErrIO, res.Err.Kind)
	assert.Equal(t, maxRetries+1, res.Attempts)
	assert.Equal(t, maxRetries+1, res.Err.Attempts)
	// One stat for path validation plus one per attempt.
	assert.Equal(t, maxRetries+2, attempts)
	assert.Equal(t, types.RecoveryBasicOnly, res.RecoveryMethod)
	assert.Equal(t, "file.mp3", res.Fields["filename"])
}

func TestExtractExhaustedCorruptionIsPartialCorrupted(t *testing.T) {
	e := New(Config{BackoffBase: time.Millisecond})
	e.statFn = func(path string) (os.FileInfo, error) {
		return nil, fmt.Errorf("%s: bad header: %w", path, types.ErrCorrupted)
	}

	res := e.Extract(context.Background(), "/media/bad.avi")
	require.True(t, res.Failed())
	assert.Equal(t, types.ErrCorruptedFile, res.Err.Kind)
	assert.Equal(t, types.RecoveryPartialCorrupted, res.RecoveryMethod)
}

func TestExtractMemoryErrorReclaimsAggressively(t *testing.T) {
	dir := t.TempDir()
	good := writeTestFile(t, dir, "ok.mp3", []byte("audio"))

	c := cache.New(cache.Config{})
	mon := memory.NewMonitor(memory.Config{Cache: c})
	e := New(Config{Cache: c, Monitor: mon, MaxRetries: 2, BackoffBase: time.Millisecond})

	res := e.Extract(context.Background(), good)
	require.False(t, res.Failed())
	require.Equal(t, 1, c.Size())

	e.statFn = func(path string) (os.FileInfo, error) {
		return nil, &fs.PathError{Op: "read", Path: path, Err: syscall.ENOMEM}
	}

	res = e.Extract(context.Background(), "/huge/movie.mkv")
	require.True(t, res.Failed())
	assert.Equal(t, types.ErrMemory, res.Err.Kind)
	assert.Equal(t, 1, res.Attempts, "memory errors abandon the file, no retry")
	assert.Equal(t, 0, c.Size(), "aggressive reclamation clears the cache")
}

func TestExtractSetsElapsed(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "clip.mp4", []byte("video"))

	c := cache.New(cache.Config{})
	e := New(Config{Cache: c})

	res := e.Extract(context.Background(), path)
	require.False(t, res.Failed())
	assert.Positive(t, res.Elapsed)

	hit := e.Extract(context.Background(), path)
	require.True(t, hit.FromCache)
	assert.Positive(t, hit.Elapsed, "cache hits carry the lookup time")
}

func TestExtractBackoffSkippedOnCancel(t *testing.T) {
	e := New(Config{MaxRetries: 5, BackoffBase: time.Hour})
	e.statFn = func(path string) (os.FileInfo, error) {
		return nil, &fs.PathError{Op: "read", Path: path, Err: syscall.EIO}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := e.Extract(ctx, "/flaky/file.mp3")
	require.True(t, res.Failed())
	assert.Equal(t, 1, res.Attempts)
	assert.Less(t, time.Since(start), time.Second, "cancelled backoff must not sleep")
}

func TestExtractCacheHit(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "track.mp3", []byte("audio bytes"))

	c := cache.New(cache.Config{})
	e := New(Config{Cache: c})

	first := e.Extract(context.Background(), path)
	require.False(t, first.Failed())
	assert.False(t, first.FromCache)

	second := e.Extract(context.Background(), path)
	require.False(t, second.Failed())
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Fields, second.Fields)

	stats := e.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestExtractFailureIsNotCached(t *testing.T) {
	c := cache.New(cache.Config{})
	e := New(Config{Cache: c, MaxRetries: 0})
	e.statFn = func(path string) (os.FileInfo, error) {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}

	res := e.Extract(context.Background(), "/nope/gone.png")
	require.True(t, res.Failed())
	assert.Equal(t, 0, c.Size())
}

func TestCacheKeyStableForUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.pdf", []byte("%PDF-1.4"))

	e := New(Config{})
	k1, err := e.CacheKey(path)
	require.NoError(t, err)
	k2, err := e.CacheKey(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestCacheKeyChangesWithModification(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.pdf", []byte("%PDF-1.4"))

	e := New(Config{})
	before, err := e.CacheKey(path)
	require.NoError(t, err)

	older := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, older, older))

	after, err := e.CacheKey(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestExtractDefaultRegistryDegradesToBasicOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "shot.png", []byte("png-ish"))

	e := New(Config{})
	res := e.Extract(context.Background(), path)
	require.False(t, res.Failed(), "missing decoder must not fail the file")

	assert.Equal(t, types.RecoveryBasicOnly, res.RecoveryMethod)
	require.Contains(t, res.CategoryErrors, types.CategoryImage)
	assert.Equal(t, types.ErrDependencyMissing, res.CategoryErrors[types.CategoryImage].Kind)
	assert.Equal(t, "shot.png", res.Fields["filename"])
}

func TestExtractCorruptedCapabilityKeepsBasicInfo(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "broken.flac", []byte("garbage"))

	reg := NewRegistry()
	reg.Register(types.CategoryAudio, func(ctx context.Context, p string) (map[string]any, error) {
		return nil, fmt.Errorf("truncated stream: %w", types.ErrCorrupted)
	})

	e := New(Config{Capabilities: reg})
	res := e.Extract(context.Background(), path)
	require.False(t, res.Failed())

	assert.Equal(t, types.RecoveryPartialCorrupted, res.RecoveryMethod)
	require.Contains(t, res.CategoryErrors, types.CategoryAudio)
	assert.Equal(t, types.ErrCorruptedFile, res.CategoryErrors[types.CategoryAudio].Kind)
	assert.Equal(t, "broken.flac", res.Fields["filename"])
}

func TestExtractCapabilityPanicIsRecovered(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "evil.mkv", []byte("boom"))

	reg := NewRegistry()
	reg.Register(types.CategoryVideo, func(ctx context.Context, p string) (map[string]any, error) {
		panic("decoder exploded")
	})

	e := New(Config{Capabilities: reg})

	var res *types.ExtractionResult
	require.NotPanics(t, func() {
		res = e.Extract(context.Background(), path)
	})
	require.False(t, res.Failed())
	require.Contains(t, res.CategoryErrors, types.CategoryVideo)
	assert.Equal(t, types.ErrCorruptedFile, res.CategoryErrors[types.CategoryVideo].Kind)
}

func TestExtractCapabilityFieldsNestedUnderCategory(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "song.ogg", []byte("vorbis"))

	reg := NewRegistry()
	reg.Register(types.CategoryAudio, func(ctx context.Context, p string) (map[string]any, error) {
		return map[string]any{"duration_seconds": 212, "bitrate": 192000}, nil
	})

	e := New(Config{Capabilities: reg})
	res := e.Extract(context.Background(), path)
	require.False(t, res.Failed())
	assert.Empty(t, res.RecoveryMethod)

	audio, ok := res.Fields["audio"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 212, audio["duration_seconds"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind types.ErrorKind
	}{
		{"not exist", os.ErrNotExist, types.ErrFileAccess},
		{"permission", os.ErrPermission, types.ErrFileAccess},
		{"not regular", types.ErrNotRegularFile, types.ErrFileAccess},
		{"capability", types.ErrCapabilityUnavailable, types.ErrDependencyMissing},
		{"corrupted", types.ErrCorrupted, types.ErrCorruptedFile},
		{"deadline", context.DeadlineExceeded, types.ErrProcessingFailed},
		{"enomem", syscall.ENOMEM, types.ErrMemory},
		{"eio", &fs.PathError{Op: "read", Path: "x", Err: syscall.EIO}, types.ErrIO},
		{"other", fmt.Errorf("something odd"), types.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xerr := Classify(tt.err)
			require.NotNil(t, xerr)
			assert.Equal(t, tt.kind, xerr.Kind)
		})
	}
	assert.Nil(t, Classify(nil))
}
