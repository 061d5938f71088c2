//go:build unit

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"cinema-order-engine/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewOrderMetrics(reg)

	m.ObservePlaced(100000, 2)
	m.ObserveOutcome("seat_conflict")
	m.ObserveOutcome("seat_conflict")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("placed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("seat_conflict")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SeatsSold))

	var nilMetrics *metrics.OrderMetrics
	assert.NotPanics(t, func() { nilMetrics.ObserveOutcome("placed") })
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	sm := metrics.NewServerMetrics(reg)
	sm.Requests.WithLabelValues("/api/orders", "POST", "201").Inc()

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cinema_http_requests_total")
}
