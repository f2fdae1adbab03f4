package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// Metrics holds in-process counters for the HTTP surface and pipeline runs
type Metrics struct {
	RequestCount int64
	ErrorCount   int64
	CacheHits    int64
	CacheMisses  int64
	RateLimited  int64

	PipelineRuns        int64
	PipelineFailures    int64
	RespondentsAnalyzed int64
	RespondentsSkipped  int64

	StartTime time.Time

	responseTimes []time.Duration
	responseMu    sync.RWMutex

	requestsByStatus map[int]int64
	statusMu         sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:        time.Now(),
		responseTimes:    make([]time.Duration, 0, maxResponseSamples),
		requestsByStatus: make(map[int]int64),
	}
}

func (m *Metrics) IncrementRequest()   { atomic.AddInt64(&m.RequestCount, 1) }
func (m *Metrics) IncrementError()     { atomic.AddInt64(&m.ErrorCount, 1) }
func (m *Metrics) IncrementCacheHit()  { atomic.AddInt64(&m.CacheHits, 1) }
func (m *Metrics) IncrementCacheMiss() { atomic.AddInt64(&m.CacheMisses, 1) }

// IncrementRateLimited counts a request rejected with 429.
func (m *Metrics) IncrementRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }

// RecordRun counts one pipeline run and the respondents it used or skipped
func (m *Metrics) RecordRun(analyzed, skipped int, failed bool) {
	atomic.AddInt64(&m.PipelineRuns, 1)
	atomic.AddInt64(&m.RespondentsAnalyzed, int64(analyzed))
	atomic.AddInt64(&m.RespondentsSkipped, int64(skipped))
	if failed {
		atomic.AddInt64(&m.PipelineFailures, 1)
	}
}

// RecordResponse stores a response time sample and its status code
func (m *Metrics) RecordResponse(duration time.Duration, statusCode int) {
	m.responseMu.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > maxResponseSamples {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseMu.Unlock()

	m.statusMu.Lock()
	m.requestsByStatus[statusCode]++
	m.statusMu.Unlock()
}

// PercentileResponseTime returns the given percentile of recent response times
func (m *Metrics) PercentileResponseTime(percentile float64) time.Duration {
	m.responseMu.RLock()
	times := append([]time.Duration(nil), m.responseTimes...)
	m.responseMu.RUnlock()

	if len(times) == 0 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

// StatusCodeDistribution returns request count by status code
func (m *Metrics) StatusCodeDistribution() map[int]int64 {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	distribution := make(map[int]int64, len(m.requestsByStatus))
	for code, count := range m.requestsByStatus {
		distribution[code] = count
	}
	return distribution
}

// Stats returns a snapshot suitable for the health endpoint
func (m *Metrics) Stats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errs := atomic.LoadInt64(&m.ErrorCount)
	hits := atomic.LoadInt64(&m.CacheHits)
	misses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errs) / float64(requests) * 100
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
		"total_requests":           requests,
		"error_count":              errs,
		"error_rate_percent":       errorRate,
		"cache_hits":               hits,
		"cache_misses":             misses,
		"cache_hit_rate_percent":   hitRate,
		"rate_limited":             atomic.LoadInt64(&m.RateLimited),
		"pipeline_runs":            atomic.LoadInt64(&m.PipelineRuns),
		"pipeline_failures":        atomic.LoadInt64(&m.PipelineFailures),
		"respondents_analyzed":     atomic.LoadInt64(&m.RespondentsAnalyzed),
		"respondents_skipped":      atomic.LoadInt64(&m.RespondentsSkipped),
		"p50_response_time_ms":     float64(m.PercentileResponseTime(50)) / float64(time.Millisecond),
		"p95_response_time_ms":     float64(m.PercentileResponseTime(95)) / float64(time.Millisecond),
		"status_code_distribution": m.StatusCodeDistribution(),
		"start_time":               m.StartTime.Format(time.RFC3339),
	}
}
