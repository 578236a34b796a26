package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stayledger/backend/internal/domain/reconciliation"
)

const (
	metricPrefix = "stayledger_"

	resultSuccess       = "success"
	resultError         = "error"
	resultAlreadyLocked = "already_locked"
	resultNotReconciled = "not_reconciled"

	outcomeReconciled   = reconciliation.OutcomeReconciled
	outcomeUnreconciled = reconciliation.OutcomeUnreconciled
	outcomeEmpty        = reconciliation.OutcomeEmpty
)

var (
	registerOnce sync.Once
	gatherer     prometheus.Gatherer = prometheus.DefaultGatherer

	decomposeTotal   *prometheus.CounterVec
	decomposeLatency *prometheus.HistogramVec
	batchSize        prometheus.Histogram

	statementBuildTotal   *prometheus.CounterVec
	statementBuildLatency *prometheus.HistogramVec
	statementLockTotal    *prometheus.CounterVec
	statementLockLatency  *prometheus.HistogramVec
	statementExportTotal  *prometheus.CounterVec
	statementExportBytes  *prometheus.HistogramVec
	statementArchiveTotal *prometheus.CounterVec

	reconcileTotal *prometheus.CounterVec

	eventHandledTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge
)

// Init registers the engine metrics. reg may be nil to use the default
// registry; db, when set, adds connection pool gauges.
func Init(reg prometheus.Registerer, db *sql.DB) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		if g, ok := reg.(prometheus.Gatherer); ok {
			gatherer = g
		}

		decomposeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "decompose_total",
				Help: "Total reservation decompositions by result",
			},
			[]string{"result"},
		)
		decomposeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "decompose_latency_seconds",
				Help:    "Reservation decomposition latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		batchSize = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "decompose_batch_size",
				Help:    "Reservations per batch decomposition",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		)

		statementBuildTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_build_total",
				Help: "Total statement builds by result",
			},
			[]string{"result"},
		)
		statementBuildLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_build_latency_seconds",
				Help:    "Statement build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		statementLockTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_lock_total",
				Help: "Total statement lock attempts by result",
			},
			[]string{"result"},
		)
		statementLockLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_lock_latency_seconds",
				Help:    "Statement lock latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total statement exports by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportBytes = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_bytes",
				Help:    "Size of exported statements in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"format"},
		)
		statementArchiveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_archive_total",
				Help: "Total locked statement archive uploads by result",
			},
			[]string{"result"},
		)

		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_total",
				Help: "Total reconciliation checks by outcome",
			},
			[]string{"outcome"},
		)

		eventHandledTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_handled_total",
				Help: "Total domain event deliveries by event type and result",
			},
			[]string{"event_type", "result"},
		)

		httpRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
		httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		})

		reg.MustRegister(
			decomposeTotal,
			decomposeLatency,
			batchSize,
			statementBuildTotal,
			statementBuildLatency,
			statementLockTotal,
			statementLockLatency,
			statementExportTotal,
			statementExportBytes,
			statementArchiveTotal,
			reconcileTotal,
			eventHandledTotal,
			httpRequestsTotal,
			httpRequestDuration,
			httpInFlight,
		)

		if db != nil {
			registerDBMetrics(reg, db)
		}
	})
}

func registerDBMetrics(reg prometheus.Registerer, db *sql.DB) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "db_open_connections",
				Help: "Open database connections",
			},
			func() float64 { return float64(db.Stats().OpenConnections) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "db_in_use_connections",
				Help: "Database connections currently in use",
			},
			func() float64 { return float64(db.Stats().InUse) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: metricPrefix + "db_wait_count_total",
				Help: "Total connections waited for",
			},
			func() float64 { return float64(db.Stats().WaitCount) },
		),
	)
}

// Handler serves the registered metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveDecompose records decomposition latency and result.
func ObserveDecompose(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if decomposeTotal != nil {
		decomposeTotal.WithLabelValues(result).Inc()
	}
	if decomposeLatency != nil {
		decomposeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveBatchSize records how many reservations a batch asked for.
func ObserveBatchSize(n int) {
	if batchSize != nil {
		batchSize.Observe(float64(n))
	}
}

// ObserveStatementBuild records build latency and result.
func ObserveStatementBuild(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statementBuildTotal != nil {
		statementBuildTotal.WithLabelValues(result).Inc()
	}
	if statementBuildLatency != nil {
		statementBuildLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveStatementLock records lock latency and result.
func ObserveStatementLock(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statementLockTotal != nil {
		statementLockTotal.WithLabelValues(result).Inc()
	}
	if statementLockLatency != nil {
		statementLockLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveStatementExport records an export and its size.
func ObserveStatementExport(format, result string, size int) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportBytes != nil && result == resultSuccess {
		statementExportBytes.WithLabelValues(format).Observe(float64(size))
	}
}

// IncStatementArchive counts an archive upload.
func IncStatementArchive(result string) {
	if result == "" {
		result = resultSuccess
	}
	if statementArchiveTotal != nil {
		statementArchiveTotal.WithLabelValues(result).Inc()
	}
}

// IncReconcile counts a reconciliation check by outcome.
func IncReconcile(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(outcome).Inc()
	}
}

// IncEventHandled counts one delivery of an event to a handler.
func IncEventHandled(eventType, result string) {
	if result == "" {
		result = resultSuccess
	}
	if eventHandledTotal != nil {
		eventHandledTotal.WithLabelValues(eventType, result).Inc()
	}
}

// HTTPRequestStarted tracks an in-flight request; call the returned func
// when it completes.
func HTTPRequestStarted() func() {
	if httpInFlight == nil {
		return func() {}
	}
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// ObserveHTTPRequest records a served request. route is the matched route
// template, not the raw path.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess       = resultSuccess
	ResultError         = resultError
	ResultAlreadyLocked = resultAlreadyLocked
	ResultNotReconciled = resultNotReconciled

	OutcomeReconciled   = outcomeReconciled
	OutcomeUnreconciled = outcomeUnreconciled
	OutcomeEmpty        = outcomeEmpty
)
