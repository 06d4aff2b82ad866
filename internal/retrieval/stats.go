package retrieval

import (
	"sync"
	"time"
)

// StrategyStats holds rolling counters for one strategy.
type StrategyStats struct {
	// Calls is the number of completed attempts.
	Calls int64 `json:"calls"`

	// TotalTime is the cumulative wall time across attempts.
	TotalTime time.Duration `json:"total_time"`

	// AvgResultCount is the running average result count, maintained with
	// the incremental-mean formula.
	AvgResultCount float64 `json:"avg_result_count"`
}

// AvgTime returns the mean attempt duration.
func (s StrategyStats) AvgTime() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return time.Duration(int64(s.TotalTime) / s.Calls)
}

// PerformanceStats tracks per-strategy counters for the process lifetime.
// Updates are serialized; multiple requests may record concurrently.
type PerformanceStats struct {
	mu   sync.Mutex
	data map[Strategy]*StrategyStats
}

// NewPerformanceStats creates an empty stats tracker.
func NewPerformanceStats() *PerformanceStats {
	return &PerformanceStats{
		data: make(map[Strategy]*StrategyStats),
	}
}

// Record adds one completed attempt for the strategy that actually executed.
// avg' = (avg*(n-1) + new_count) / n
func (p *PerformanceStats) Record(s Strategy, elapsed time.Duration, resultCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.data[s]
	if !ok {
		st = &StrategyStats{}
		p.data[s] = st
	}

	st.Calls++
	st.TotalTime += elapsed
	n := float64(st.Calls)
	st.AvgResultCount = (st.AvgResultCount*(n-1) + float64(resultCount)) / n
}

// Snapshot returns a copy of all per-strategy counters keyed by strategy name.
func (p *PerformanceStats) Snapshot() map[string]StrategyStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]StrategyStats, len(p.data))
	for s, st := range p.data {
		out[s.String()] = *st
	}
	return out
}

// Get returns the counters for one strategy (zero value if never recorded).
func (p *PerformanceStats) Get(s Strategy) StrategyStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := p.data[s]; ok {
		return *st
	}
	return StrategyStats{}
}
