package inventory

import (
	"sync/atomic"
	"time"
)

// APIMetrics tracks upstream call outcomes with lock-free counters. It is
// safe for concurrent use by every request goroutine.
type APIMetrics struct {
	totalRequests      atomic.Int64
	successfulRequests atomic.Int64
	failedRequests     atomic.Int64
	retries            atomic.Int64
	rejections         atomic.Int64
	responseTimeSum    atomic.Int64 // nanoseconds, successful requests only
	lastRequestAt      atomic.Int64 // unix nanoseconds
}

// NewAPIMetrics returns zeroed metrics.
func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{}
}

// RecordRequest counts an attempted upstream call and stamps the last
// request time. Breaker rejections are not requests and do not go through
// here.
func (m *APIMetrics) RecordRequest() {
	m.totalRequests.Add(1)
	m.lastRequestAt.Store(time.Now().UnixNano())
}

// RecordSuccess counts a successful call and accumulates its duration.
func (m *APIMetrics) RecordSuccess(d time.Duration) {
	m.successfulRequests.Add(1)
	m.responseTimeSum.Add(int64(d))
}

// RecordFailure counts a call that exhausted retries or failed terminally.
func (m *APIMetrics) RecordFailure() {
	m.failedRequests.Add(1)
}

// RecordRetry counts a single retry attempt.
func (m *APIMetrics) RecordRetry() {
	m.retries.Add(1)
}

// RecordRejection counts a request shed by the open circuit breaker.
func (m *APIMetrics) RecordRejection() {
	m.rejections.Add(1)
}

// MetricsSnapshot is a point-in-time view of the counters with derived
// rates. Rates over zero requests report a healthy 1.0/0.0 split so an
// idle service does not look broken.
type MetricsSnapshot struct {
	TotalRequests      int64      `json:"total_requests"`
	SuccessfulRequests int64      `json:"successful_requests"`
	FailedRequests     int64      `json:"failed_requests"`
	Retries            int64      `json:"retries"`
	Rejections         int64      `json:"circuit_breaker_rejections"`
	SuccessRate        float64    `json:"success_rate"`
	FailureRate        float64    `json:"failure_rate"`
	AvgResponseTimeMs  float64    `json:"avg_response_time_ms"`
	LastRequestAt      *time.Time `json:"last_request_at,omitempty"`
}

// Snapshot reads every counter once and derives the rates.
func (m *APIMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		TotalRequests:      m.totalRequests.Load(),
		SuccessfulRequests: m.successfulRequests.Load(),
		FailedRequests:     m.failedRequests.Load(),
		Retries:            m.retries.Load(),
		Rejections:         m.rejections.Load(),
		SuccessRate:        1.0,
	}
	if s.TotalRequests > 0 {
		s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests)
		s.FailureRate = float64(s.FailedRequests) / float64(s.TotalRequests)
	}
	if s.SuccessfulRequests > 0 {
		sumMs := float64(m.responseTimeSum.Load()) / float64(time.Millisecond)
		s.AvgResponseTimeMs = sumMs / float64(s.SuccessfulRequests)
	}
	if ns := m.lastRequestAt.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		s.LastRequestAt = &t
	}
	return s
}
