package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, nil)

	ObserveDecompose("", 10*time.Millisecond)
	ObserveDecompose(ResultError, time.Millisecond)
	ObserveStatementLock(ResultAlreadyLocked, time.Millisecond)
	ObserveStatementExport("xlsx", ResultSuccess, 4096)
	IncReconcile(OutcomeReconciled)
	IncReconcile(OutcomeReconciled)
	IncStatementArchive(ResultError)
	ObserveBatchSize(12)
	IncEventHandled("StatementLocked", "")
	done := HTTPRequestStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(httpInFlight))
	done()
	ObserveHTTPRequest("GET", "/api/v1/listings/:listing_id/statements/:year/:month", 200, time.Millisecond)
	ObserveHTTPRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(decomposeTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(decomposeTotal.WithLabelValues(ResultError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(statementLockTotal.WithLabelValues(ResultAlreadyLocked)))
	assert.Equal(t, float64(2), testutil.ToFloat64(reconcileTotal.WithLabelValues(OutcomeReconciled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(statementArchiveTotal.WithLabelValues(ResultError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(eventHandledTotal.WithLabelValues("StatementLocked", ResultSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(httpInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues(
		"GET", "/api/v1/listings/:listing_id/statements/:year/:month", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	t.Run("handler exposes registry", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "stayledger_reconcile_total")
		assert.Contains(t, string(body), "stayledger_statement_export_total")
	})

	t.Run("second init is ignored", func(t *testing.T) {
		assert.NotPanics(t, func() { Init(prometheus.NewRegistry(), nil) })
	})
}
