package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", "/api/v1/workshops", 200, 15*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/workshops", 204, time.Millisecond)
	m.RecordHTTPRequest("POST", "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/workshops", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "unmatched", "4xx")))
}

func TestBusinessCounters(t *testing.T) {
	m := New()
	m.RecordGateDecision("forbidden")
	m.RecordImportRow("imported")
	m.RecordImportRow("imported")
	m.RecordImportRun("ok")
	m.RecordCheckIn("scan")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisionsTotal.WithLabelValues("forbidden")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImportRowsTotal.WithLabelValues("imported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportRunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckInsTotal.WithLabelValues("scan")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Second)
		m.RecordGateDecision("allow")
		m.RecordImportRow("skipped")
		m.RecordImportRun("failed")
		m.RecordCheckIn("manual")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordCheckIn("scan")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `workshopdesk_checkins_total{method="scan"} 1`))
}

func TestCategorizeStatus(t *testing.T) {
	assert.Equal(t, "2xx", categorizeStatus(201))
	assert.Equal(t, "3xx", categorizeStatus(302))
	assert.Equal(t, "4xx", categorizeStatus(403))
	assert.Equal(t, "5xx", categorizeStatus(503))
	assert.Equal(t, "unknown", categorizeStatus(100))
	assert.True(t, ShouldSkipEndpoint("/metrics"))
	assert.False(t, ShouldSkipEndpoint("/api/v1/me"))
}
