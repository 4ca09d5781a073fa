// Package cache provides the shared, bounded result cache for extraction
// results.
//
// The cache is bounded by both entry count and an estimated byte budget,
// evicts least-recently-used entries synchronously inside Set, and expires
// entries on read once they outlive the configured TTL. Get returns a deep
// copy so cache internals are never aliased to caller-visible state.
//
// # Basic Usage
//
//	c := cache.New(cache.Config{})
//	c.Set(key, result)
//
//	if res, ok := c.Get(key); ok {
//	    // res is a private copy; mutate freely
//	}
//
// Keys are file fingerprints derived from (absolute path, mtime, size), so
// a modified file never hits a stale entry.
//
// The cache is process-wide shared state: create one instance at startup
// and pass it to every Extractor that should benefit from it.
package cache
