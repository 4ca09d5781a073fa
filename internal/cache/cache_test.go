package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metascan/metascan/pkg/types"
)

func makeResult(path string, padding int) *types.ExtractionResult {
	return &types.ExtractionResult{
		Path:     path,
		Category: types.CategoryImage,
		Fields: map[string]any{
			"filepath": path,
			"pad":      strings.Repeat("x", padding),
		},
		ExtractedAt: time.Now(),
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	stats := c.Stats()
	assert.Equal(t, DefaultMaxEntries, stats.MaxEntries)
	assert.Equal(t, DefaultMaxBytes, stats.MaxBytes)
	assert.Equal(t, DefaultTTL, stats.TTL)
	assert.Zero(t, stats.Entries)
}

func TestGet_Miss(t *testing.T) {
	c := New(Config{})
	res, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestSetGet_ReturnsDeepCopy(t *testing.T) {
	c := New(Config{})
	c.Set("k", makeResult("/a.jpg", 0))

	first, ok := c.Get("k")
	require.True(t, ok)
	first.Fields["filepath"] = "mutated"
	first.Fields["nested"] = map[string]any{"x": 1}

	second, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "/a.jpg", second.Fields["filepath"])
	assert.NotContains(t, second.Fields, "nested")
}

func TestSet_MutatingOriginalDoesNotCorruptCache(t *testing.T) {
	c := New(Config{})
	res := makeResult("/a.jpg", 0)
	c.Set("k", res)
	res.Fields["filepath"] = "mutated"

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "/a.jpg", got.Fields["filepath"])
}

func TestSet_EntryCountBoundHolds(t *testing.T) {
	c := New(Config{MaxEntries: 3})
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), makeResult(fmt.Sprintf("/f%d", i), 0))
		assert.LessOrEqual(t, c.Size(), 3)
	}
	assert.Equal(t, 3, c.Size())
}

func TestSet_ByteBudgetHolds(t *testing.T) {
	probe := makeResult("/probe", 1024).EstimateBytes()
	budget := probe*2 + probe/2 // room for two entries, not three

	c := New(Config{MaxEntries: 100, MaxBytes: budget})
	for i := 0; i < 6; i++ {
		c.Set(fmt.Sprintf("k%d", i), makeResult(fmt.Sprintf("/f%d", i), 1024))
		assert.LessOrEqual(t, c.MemoryBytes(), budget)
	}
	assert.Equal(t, 2, c.Size())
	assert.Positive(t, c.Stats().Evictions)
}

func TestSet_OversizedResultNotCached(t *testing.T) {
	c := New(Config{MaxEntries: 10, MaxBytes: 256})
	c.Set("big", makeResult("/big", 4096))
	assert.Zero(t, c.Size())
	assert.Zero(t, c.MemoryBytes())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(Config{MaxEntries: 3})
	c.Set("a", makeResult("/a", 0))
	c.Set("b", makeResult("/b", 0))
	c.Set("c", makeResult("/c", 0))

	// Touch "a" so "b" becomes the oldest.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", makeResult("/d", 0))

	_, ok = c.Get("b")
	assert.False(t, ok, "least-recently-used entry should be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "entry %q should survive", key)
	}
}

func TestTTL_ExpiredEntryIsPurgedOnRead(t *testing.T) {
	c := New(Config{TTL: time.Minute})

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", makeResult("/a", 0))
	require.Equal(t, 1, c.Size())
	bytesBefore := c.MemoryBytes()
	require.Positive(t, bytesBefore)

	current = current.Add(2 * time.Minute)

	res, ok := c.Get("k")
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Zero(t, c.Size(), "expired entry should be purged, not ignored")
	assert.Zero(t, c.MemoryBytes())
	assert.Equal(t, uint64(1), c.Stats().Expirations)
}

func TestTTL_FreshEntryStillServed(t *testing.T) {
	c := New(Config{TTL: time.Minute})
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", makeResult("/a", 0))
	current = current.Add(30 * time.Second)

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestSet_ReplacingKeyAdjustsBytes(t *testing.T) {
	c := New(Config{})
	c.Set("k", makeResult("/a", 2048))
	big := c.MemoryBytes()
	c.Set("k", makeResult("/a", 16))
	assert.Less(t, c.MemoryBytes(), big)
	assert.Equal(t, 1, c.Size())
}

func TestClear(t *testing.T) {
	c := New(Config{})
	c.Set("a", makeResult("/a", 0))
	c.Set("b", makeResult("/b", 0))
	c.Clear()
	assert.Zero(t, c.Size())
	assert.Zero(t, c.MemoryBytes())
}

func TestStats_CountsHitsAndMisses(t *testing.T) {
	c := New(Config{})
	c.Set("a", makeResult("/a", 0))
	c.Get("a")
	c.Get("a")
	c.Get("nope")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}
