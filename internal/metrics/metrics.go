// Package metrics exposes Prometheus instrumentation for Intellivest.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Transactions       *prometheus.CounterVec // labels: action
	TransactionErrors  *prometheus.CounterVec // labels: action, reason
	PersistenceWrites  *prometheus.CounterVec // labels: key
	PersistenceFailure *prometheus.CounterVec // labels: key
	RemoteUpdates      *prometheus.CounterVec // labels: key

	QuoteRefreshes  *prometheus.CounterVec // labels: result=ok|error|rate_limited|blocked
	QuoteRefreshDur prometheus.Histogram
	QuoteBatches    prometheus.Counter
	PricesKnown     prometheus.Gauge
	LimitReached    prometheus.Gauge // 0 or 1
	StreamClients   prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec // labels: method, status
	HTTPRequestDur  prometheus.Histogram
}

// NewMetrics creates the metrics on a private registry, so several instances
// can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intellivest_transactions_total",
			Help: "Applied portfolio transactions by action",
		}, []string{"action"}),
		TransactionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intellivest_transaction_errors_total",
			Help: "Rejected portfolio transactions by action and reason",
		}, []string{"action", "reason"}),
		PersistenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intellivest_persistence_writes_total",
			Help: "Document store writes by key",
		}, []string{"key"}),
		PersistenceFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intellivest_persistence_failures_total",
			Help: "Failed document store writes by key",
		}, []string{"key"}),
		RemoteUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intellivest_remote_updates_total",
			Help: "Changes applied from other writers by key",
		}, []string{"key"}),

		QuoteRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intellivest_quote_refreshes_total",
			Help: "Price refresh attempts by result",
		}, []string{"result"}),
		QuoteRefreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intellivest_quote_refresh_duration_seconds",
			Help:    "Price refresh latency",
			Buckets: prometheus.DefBuckets,
		}),
		QuoteBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intellivest_quote_batches_total",
			Help: "Upstream quote requests issued",
		}),
		PricesKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intellivest_prices_known",
			Help: "Tickers with a price in the current snapshot",
		}),
		LimitReached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intellivest_quote_limit_reached",
			Help: "1 while the sticky upstream rate-limit flag is set",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intellivest_stream_clients",
			Help: "Connected change-stream WebSocket clients",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intellivest_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		HTTPRequestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intellivest_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Transactions,
		m.TransactionErrors,
		m.PersistenceWrites,
		m.PersistenceFailure,
		m.RemoteUpdates,
		m.QuoteRefreshes,
		m.QuoteRefreshDur,
		m.QuoteBatches,
		m.PricesKnown,
		m.LimitReached,
		m.StreamClients,
		m.HTTPRequests,
		m.HTTPRequestDur,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) TransactionApplied(action string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(action).Inc()
}

func (m *Metrics) TransactionRejected(action, reason string) {
	if m == nil {
		return
	}
	m.TransactionErrors.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) PersistenceWrite(key string, err error) {
	if m == nil {
		return
	}
	m.PersistenceWrites.WithLabelValues(key).Inc()
	if err != nil {
		m.PersistenceFailure.WithLabelValues(key).Inc()
	}
}

func (m *Metrics) RemoteUpdate(key string) {
	if m == nil {
		return
	}
	m.RemoteUpdates.WithLabelValues(key).Inc()
}

// QuoteRefresh records one refresh attempt.
func (m *Metrics) QuoteRefresh(result string, started time.Time) {
	if m == nil {
		return
	}
	m.QuoteRefreshes.WithLabelValues(result).Inc()
	m.QuoteRefreshDur.Observe(time.Since(started).Seconds())
}

func (m *Metrics) QuoteBatch() {
	if m == nil {
		return
	}
	m.QuoteBatches.Inc()
}

func (m *Metrics) SetPricesKnown(n int) {
	if m == nil {
		return
	}
	m.PricesKnown.Set(float64(n))
}

func (m *Metrics) SetLimitReached(v bool) {
	if m == nil {
		return
	}
	if v {
		m.LimitReached.Set(1)
	} else {
		m.LimitReached.Set(0)
	}
}

func (m *Metrics) StreamClientDelta(delta int) {
	if m == nil {
		return
	}
	m.StreamClients.Add(float64(delta))
}

func (m *Metrics) HTTPRequest(method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, http.StatusText(status)).Inc()
	m.HTTPRequestDur.Observe(dur.Seconds())
}
