package observability

import (
	"strconv"
	"sync"
	"time"
)

// EnrichmentOutcome labels what happened to one enrichment attempt.
type EnrichmentOutcome string

const (
	OutcomeCompleted EnrichmentOutcome = "completed"
	OutcomeFailed    EnrichmentOutcome = "failed"
	OutcomeRetried   EnrichmentOutcome = "retried"
	OutcomePermanent EnrichmentOutcome = "permanent_failure"
	OutcomeFallback  EnrichmentOutcome = "heuristic_fallback"
	OutcomeDeferred  EnrichmentOutcome = "deferred"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	enrichmentCount map[EnrichmentOutcome]int64
	analysisTotal   time.Duration
	analysisCount   int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests          map[string]int64            `json:"requests"`
	Errors            map[string]int64            `json:"errors"`
	Enrichment        map[EnrichmentOutcome]int64 `json:"enrichment"`
	AvgAnalysisMillis float64                     `json:"avg_analysis_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		enrichmentCount: make(map[EnrichmentOutcome]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEnrichment counts one enrichment outcome.
func (m *Metrics) RecordEnrichment(outcome EnrichmentOutcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrichmentCount[outcome]++
}

// RecordAnalysis tracks how long one Analyze call took.
func (m *Metrics) RecordAnalysis(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analysisTotal += d
	m.analysisCount++
}

// EnrichmentCount returns the current counter for outcome.
func (m *Metrics) EnrichmentCount(outcome EnrichmentOutcome) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrichmentCount[outcome]
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Requests:   map[string]int64{},
		Errors:     map[string]int64{},
		Enrichment: map[EnrichmentOutcome]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.enrichmentCount {
		snap.Enrichment[k] = v
	}
	if m.analysisCount > 0 {
		snap.AvgAnalysisMillis = float64(m.analysisTotal.Milliseconds()) / float64(m.analysisCount)
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
