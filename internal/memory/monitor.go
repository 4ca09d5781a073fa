package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/metascan/metascan/pkg/types"
)

// Defaults applied when Config fields are zero.
const (
	DefaultSampleInterval  = 5 * time.Second
	DefaultWarnPercent     = 80.0
	DefaultCriticalPercent = 90.0
)

// Clearer is the slice of the result cache the monitor needs for
// aggressive reclamation.
type Clearer interface {
	Clear()
}

// Config configures a Monitor.
type Config struct {
	SampleInterval  time.Duration
	WarnPercent     float64
	CriticalPercent float64
	// Cache, when set, is cleared by Reclaim(true).
	Cache  Clearer
	Logger *zap.Logger
}

// Monitor samples host memory usage and performs reclamation. It is safe
// for concurrent use and intended as a process-wide singleton shared by
// every Extractor and Scanner.
type Monitor struct {
	mu   sync.Mutex
	last types.MemorySample

	interval time.Duration
	warn     float64
	critical float64
	cache    Clearer
	logger   *zap.Logger

	// Injectable for tests; sampleFn defaults to gopsutil.
	sampleFn func() (*mem.VirtualMemoryStat, error)
	now      func() time.Time
}

// NewMonitor creates a Monitor, applying defaults for zero config fields.
func NewMonitor(cfg Config) *Monitor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	if cfg.WarnPercent <= 0 {
		cfg.WarnPercent = DefaultWarnPercent
	}
	if cfg.CriticalPercent <= 0 {
		cfg.CriticalPercent = DefaultCriticalPercent
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Monitor{
		interval: cfg.SampleInterval,
		warn:     cfg.WarnPercent,
		critical: cfg.CriticalPercent,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		sampleFn: mem.VirtualMemory,
		now:      time.Now,
	}
}

// Sample returns the current memory sample. Calls within the sampling
// interval return the last cached sample to avoid syscall overhead in
// hot loops. A sampling failure returns a zeroed sample, never an error.
func (m *Monitor) Sample() types.MemorySample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleLocked(false)
}

func (m *Monitor) sampleLocked(force bool) types.MemorySample {
	if !force && !m.last.TakenAt.IsZero() && m.now().Sub(m.last.TakenAt) < m.interval {
		return m.last
	}

	vm, err := m.sampleFn()
	if err != nil || vm == nil {
		m.logger.Debug("memory sampling unavailable", zap.Error(err))
		m.last = types.MemorySample{TakenAt: m.now()}
		return m.last
	}

	m.last = types.MemorySample{
		UsedPercent:    vm.UsedPercent,
		AvailableBytes: vm.Available,
		UsedBytes:      vm.Used,
		TotalBytes:     vm.Total,
		TakenAt:        m.now(),
	}
	return m.last
}

// ShouldReclaim reports whether usage has reached the warning threshold.
// A zeroed sample (sampling unavailable) never triggers reclamation.
func (m *Monitor) ShouldReclaim() bool {
	s := m.Sample()
	return !s.Zero() && s.UsedPercent >= m.warn
}

// CriticalPressure reports whether usage has reached the critical
// threshold, at which reclamation should be aggressive.
func (m *Monitor) CriticalPressure() bool {
	s := m.Sample()
	return !s.Zero() && s.UsedPercent >= m.critical
}

// Reclaim frees memory: it forces a garbage collection and returns freed
// pages to the OS. When aggressive, it also clears the result cache.
func (m *Monitor) Reclaim(aggressive bool) types.ReclaimStats {
	m.mu.Lock()
	before := m.sampleLocked(true)
	m.mu.Unlock()

	var msBefore, msAfter runtime.MemStats
	runtime.ReadMemStats(&msBefore)

	cleared := false
	if aggressive && m.cache != nil {
		m.cache.Clear()
		cleared = true
	}

	runtime.GC()
	debug.FreeOSMemory()

	runtime.ReadMemStats(&msAfter)

	m.mu.Lock()
	after := m.sampleLocked(true)
	m.mu.Unlock()

	stats := types.ReclaimStats{
		BeforePercent: before.UsedPercent,
		AfterPercent:  after.UsedPercent,
		CacheCleared:  cleared,
	}
	if msBefore.HeapObjects > msAfter.HeapObjects {
		stats.ObjectsFreed = msBefore.HeapObjects - msAfter.HeapObjects
	}
	if msBefore.HeapAlloc > msAfter.HeapAlloc {
		stats.FreedMB = float64(msBefore.HeapAlloc-msAfter.HeapAlloc) / (1024 * 1024)
	}

	m.logger.Info("memory reclaimed",
		zap.Bool("aggressive", aggressive),
		zap.Float64("before_percent", stats.BeforePercent),
		zap.Float64("after_percent", stats.AfterPercent),
		zap.Float64("freed_mb", stats.FreedMB))

	return stats
}
