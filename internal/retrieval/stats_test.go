package retrieval

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformanceStats_Record(t *testing.T) {
	stats := NewPerformanceStats()

	stats.Record(StrategyUnified, 100*time.Millisecond, 5)
	stats.Record(StrategyUnified, 300*time.Millisecond, 3)

	st := stats.Get(StrategyUnified)
	assert.Equal(t, int64(2), st.Calls)
	assert.Equal(t, 400*time.Millisecond, st.TotalTime)
	assert.Equal(t, 200*time.Millisecond, st.AvgTime())
	assert.InDelta(t, 4.0, st.AvgResultCount, 1e-9)
}

func TestPerformanceStats_IncrementalMean(t *testing.T) {
	stats := NewPerformanceStats()

	counts := []int{10, 0, 5, 7}
	for _, c := range counts {
		stats.Record(StrategyKeywordRouted, time.Millisecond, c)
	}

	// (10 + 0 + 5 + 7) / 4
	assert.InDelta(t, 5.5, stats.Get(StrategyKeywordRouted).AvgResultCount, 1e-9)
}

func TestPerformanceStats_StrategiesTrackedIndependently(t *testing.T) {
	stats := NewPerformanceStats()

	stats.Record(StrategyUnified, time.Second, 1)
	stats.Record(StrategyClassification, 2*time.Second, 9)

	assert.Equal(t, int64(1), stats.Get(StrategyUnified).Calls)
	assert.Equal(t, int64(1), stats.Get(StrategyClassification).Calls)
	assert.Equal(t, int64(0), stats.Get(StrategyKeywordRouted).Calls)
}

func TestPerformanceStats_Snapshot(t *testing.T) {
	stats := NewPerformanceStats()
	stats.Record(StrategyUnified, 50*time.Millisecond, 2)

	snap := stats.Snapshot()
	require.Contains(t, snap, "unified")
	assert.Equal(t, int64(1), snap["unified"].Calls)

	// Snapshot is a copy; later records do not leak into it.
	stats.Record(StrategyUnified, 50*time.Millisecond, 2)
	assert.Equal(t, int64(1), snap["unified"].Calls)
}

func TestPerformanceStats_ZeroValue(t *testing.T) {
	stats := NewPerformanceStats()
	st := stats.Get(StrategyUnified)
	assert.Equal(t, int64(0), st.Calls)
	assert.Equal(t, time.Duration(0), st.AvgTime())
}

func TestPerformanceStats_ConcurrentRecord(t *testing.T) {
	stats := NewPerformanceStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats.Record(StrategyUnified, time.Millisecond, 4)
		}()
	}
	wg.Wait()

	st := stats.Get(StrategyUnified)
	assert.Equal(t, int64(50), st.Calls)
	assert.InDelta(t, 4.0, st.AvgResultCount, 1e-9)
}
