package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSampler(usedPercent float64) func() (*mem.VirtualMemoryStat, error) {
	return func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{
			Total:       16 << 30,
			Used:        uint64(float64(16<<30) * usedPercent / 100),
			Available:   uint64(float64(16<<30) * (100 - usedPercent) / 100),
			UsedPercent: usedPercent,
		}, nil
	}
}

type fakeCache struct {
	cleared int
}

func (f *fakeCache) Clear() { f.cleared++ }

func TestSample_RateLimited(t *testing.T) {
	m := NewMonitor(Config{SampleInterval: 5 * time.Second})

	calls := 0
	current := time.Now()
	m.now = func() time.Time { return current }
	m.sampleFn = func() (*mem.VirtualMemoryStat, error) {
		calls++
		return stubSampler(50)()
	}

	first := m.Sample()
	second := m.Sample()
	require.Equal(t, 1, calls, "second call inside the interval must reuse the cached sample")
	assert.Equal(t, first, second)

	current = current.Add(6 * time.Second)
	m.Sample()
	assert.Equal(t, 2, calls)
}

func TestSample_FailureReturnsZeroedSample(t *testing.T) {
	m := NewMonitor(Config{})
	m.sampleFn = func() (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("platform API unavailable")
	}

	s := m.Sample()
	assert.True(t, s.Zero())
	assert.False(t, m.ShouldReclaim(), "zeroed sample must not trigger reclamation")
}

func TestShouldReclaim_Thresholds(t *testing.T) {
	tests := []struct {
		name        string
		usedPercent float64
		warn        bool
		critical    bool
	}{
		{"below warning", 70, false, false},
		{"at warning", 80, true, false},
		{"between thresholds", 85, true, false},
		{"at critical", 90, true, true},
		{"above critical", 97, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(Config{SampleInterval: time.Nanosecond})
			m.sampleFn = stubSampler(tt.usedPercent)
			assert.Equal(t, tt.warn, m.ShouldReclaim())
			assert.Equal(t, tt.critical, m.CriticalPressure())
		})
	}
}

func TestReclaim_AggressiveClearsCache(t *testing.T) {
	fc := &fakeCache{}
	m := NewMonitor(Config{Cache: fc})
	m.sampleFn = stubSampler(91)

	stats := m.Reclaim(true)
	assert.True(t, stats.CacheCleared)
	assert.Equal(t, 1, fc.cleared)
}

func TestReclaim_NonAggressiveKeepsCache(t *testing.T) {
	fc := &fakeCache{}
	m := NewMonitor(Config{Cache: fc})
	m.sampleFn = stubSampler(85)

	stats := m.Reclaim(false)
	assert.False(t, stats.CacheCleared)
	assert.Zero(t, fc.cleared)
	assert.Equal(t, 85.0, stats.BeforePercent)
}

func TestReclaim_NoCacheConfigured(t *testing.T) {
	m := NewMonitor(Config{})
	m.sampleFn = stubSampler(95)

	// Must not panic without a cache wired in.
	stats := m.Reclaim(true)
	assert.False(t, stats.CacheCleared)
}
