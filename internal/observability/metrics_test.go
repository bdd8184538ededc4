package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets", "POST", 201, time.Millisecond)
	m.RecordRequest("/tickets", "POST", 201, time.Millisecond)
	m.RecordError("/tickets", "POST", "VALIDATION_FAILED")
	m.RecordEnrichment(OutcomeCompleted)
	m.RecordEnrichment(OutcomeRetried)
	m.RecordEnrichment(OutcomeRetried)
	m.RecordAnalysis(10 * time.Millisecond)
	m.RecordAnalysis(30 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/tickets|POST|201"])
	assert.Equal(t, int64(1), snap.Errors["/tickets|POST|VALIDATION_FAILED"])
	assert.Equal(t, int64(2), snap.Enrichment[OutcomeRetried])
	assert.Equal(t, int64(1), m.EnrichmentCount(OutcomeCompleted))
	assert.InDelta(t, 20.0, snap.AvgAnalysisMillis, 0.001)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordEnrichment(OutcomeFailed)
	m.RecordRequest("/", "GET", 200, 0)
	assert.Equal(t, int64(0), m.EnrichmentCount(OutcomeFailed))
	assert.Empty(t, m.Snapshot().Enrichment)
}
