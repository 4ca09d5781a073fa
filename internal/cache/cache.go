package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/metascan/metascan/pkg/types"
)

// Defaults applied when Config fields are zero.
const (
	DefaultMaxEntries = 500
	DefaultMaxBytes   = 100 * 1024 * 1024
	DefaultTTL        = time.Hour
)

// Config configures a ResultCache.
type Config struct {
	MaxEntries int
	MaxBytes   int
	TTL        time.Duration
	Logger     *zap.Logger
}

// entry is the cached value together with its bookkeeping.
type entry struct {
	result     *types.ExtractionResult
	insertedAt time.Time
	bytes      int
}

// ResultCache is a thread-safe LRU cache for extraction results, bounded
// by entry count and estimated byte size, with TTL expiry on read.
type ResultCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *entry]

	maxEntries int
	maxBytes   int
	ttl        time.Duration
	curBytes   int

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	logger *zap.Logger
	now    func() time.Time
}

// New creates a ResultCache, applying defaults for zero config fields.
func New(cfg Config) *ResultCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	// golang-lru supplies the O(1) recency list; eviction is driven
	// explicitly from Set so the byte budget is enforced too.
	l, err := lru.New[string, *entry](cfg.MaxEntries)
	if err != nil {
		// Only reachable with a non-positive size, which the defaults
		// above rule out.
		l, _ = lru.New[string, *entry](DefaultMaxEntries)
	}

	return &ResultCache{
		lru:        l,
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		ttl:        cfg.TTL,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Get returns a deep copy of the cached result for key. An entry older
// than the TTL is purged and treated as a miss.
func (c *ResultCache) Get(key string) (*types.ExtractionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}

	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.lru.Remove(key)
		c.curBytes -= e.bytes
		c.expirations++
		c.misses++
		return nil, false
	}

	c.hits++
	return e.result.Clone(), true
}

// Set stores a defensive copy of res under key, evicting least-recently
// used entries until both the entry count and byte budget hold.
func (c *ResultCache) Set(key string, res *types.ExtractionResult) {
	if res == nil {
		return
	}

	snapshot := res.Clone()
	e := &entry{
		result:     snapshot,
		insertedAt: c.now(),
		bytes:      snapshot.EstimateBytes(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e.bytes > c.maxBytes {
		// A single oversized result would evict everything and still
		// not fit; refuse it rather than thrash.
		c.logger.Debug("result exceeds cache byte budget, not cached",
			zap.String("key", key), zap.Int("bytes", e.bytes))
		return
	}

	if old, ok := c.lru.Peek(key); ok {
		c.lru.Remove(key)
		c.curBytes -= old.bytes
	}

	for c.lru.Len() >= c.maxEntries || c.curBytes+e.bytes > c.maxBytes {
		_, oldest, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.curBytes -= oldest.bytes
		c.evictions++
	}

	c.lru.Add(key, e)
	c.curBytes += e.bytes
}

// Clear removes all entries.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.curBytes = 0
}

// Size returns the current entry count.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// MemoryBytes returns the estimated bytes held by cached entries.
func (c *ResultCache) MemoryBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Stats returns an operational snapshot.
func (c *ResultCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.CacheStats{
		Entries:     c.lru.Len(),
		MemoryBytes: c.curBytes,
		MaxEntries:  c.maxEntries,
		MaxBytes:    c.maxBytes,
		TTL:         c.ttl,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}
