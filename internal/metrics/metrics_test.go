package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersMetrics(t *testing.T) {
	m := New()
	require.NotNil(t, m.Registry())

	m.ItemsStoredTotal.WithLabelValues("message").Inc()
	m.SearchesTotal.WithLabelValues("full", "ok").Add(3)
	m.JobsPending.Set(7)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsStoredTotal.WithLabelValues("message")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("full", "ok")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.JobsPending))
}

func TestHandler_ServesMetrics(t *testing.T) {
	m := New()
	m.RefragTokensSaved.Add(1200)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "engram_refrag_tokens_saved_total")
}
