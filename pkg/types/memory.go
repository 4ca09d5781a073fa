package types

import "time"

// MemorySample is a point-in-time view of host memory. Samples are
// refreshed no more often than the monitor's sampling interval.
type MemorySample struct {
	UsedPercent    float64
	AvailableBytes uint64
	UsedBytes      uint64
	TotalBytes     uint64
	TakenAt        time.Time
}

// Zero reports whether the sample carries no data, which is how sampling
// failures degrade instead of aborting callers.
func (s MemorySample) Zero() bool {
	return s.TotalBytes == 0
}

// ReclaimStats reports the effect of a memory reclamation pass.
type ReclaimStats struct {
	ObjectsFreed  uint64
	BeforePercent float64
	AfterPercent  float64
	FreedMB       float64
	CacheCleared  bool
}

// CacheStats is an operational snapshot of the result cache.
type CacheStats struct {
	Entries     int
	MemoryBytes int
	MaxEntries  int
	MaxBytes    int
	TTL         time.Duration
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}
