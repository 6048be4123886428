package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TransactionApplied("add")
		m.TransactionRejected("sell", "invalid_quantity")
		m.PersistenceWrite("portfolio", errors.New("boom"))
		m.RemoteUpdate("portfolio")
		m.QuoteRefresh("ok", time.Now())
		m.QuoteBatch()
		m.SetPricesKnown(3)
		m.SetLimitReached(true)
		m.StreamClientDelta(1)
		m.HTTPRequest("GET", 200, time.Millisecond)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.PersistenceWrite("portfolio", nil)
	m.PersistenceWrite("portfolio", errors.New("down"))
	m.SetLimitReached(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PersistenceWrites.WithLabelValues("portfolio")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistenceFailure.WithLabelValues("portfolio")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LimitReached))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.TransactionApplied("sell")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `intellivest_transactions_total{action="sell"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = NewMetrics()
		_ = NewMetrics()
	})
}
