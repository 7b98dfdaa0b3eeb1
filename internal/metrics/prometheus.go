package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for client metrics
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	executionsTotal   *prometheus.CounterVec
	transactionsTotal *prometheus.CounterVec
	connectsTotal     *prometheus.CounterVec
	cancelsTotal      prometheus.Counter
	rowsTotal         prometheus.Counter

	// Histograms
	executionDuration *prometheus.HistogramVec
	connectDuration   prometheus.Histogram

	// Gauges
	uptime           prometheus.GaugeFunc
	openConnections  prometheus.Gauge
	openTransactions prometheus.Gauge
}

// Default histogram buckets for execution duration (in milliseconds)
var defaultBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	startTime := time.Now()
	pm := &PrometheusMetrics{
		registry: registry,

		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of statement executions",
			},
			[]string{"mode", "status"},
		),

		transactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_ops_total",
				Help:      "Transaction helper calls, split by whether a statement reached the server",
			},
			[]string{"op", "emitted"},
		),

		connectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connects_total",
				Help:      "Connection attempts",
			},
			[]string{"mode", "status"},
		),

		cancelsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancels_total",
				Help:      "Cancel requests sent to the server",
			},
		),

		rowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows received across all result sets",
			},
		),

		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_milliseconds",
				Help:      "Statement execution duration in milliseconds",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),

		connectDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connect_duration_milliseconds",
				Help:      "Connection handshake duration in milliseconds",
				Buckets:   buckets,
			},
		),

		uptime: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Time since metrics were initialized",
			},
			func() float64 { return time.Since(startTime).Seconds() },
		),

		openConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_connections",
				Help:      "Connections currently holding a transport",
			},
		),

		openTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_transactions",
				Help:      "Outermost transactions begun and not yet finished",
			},
		),
	}

	registry.MustRegister(
		pm.executionsTotal,
		pm.transactionsTotal,
		pm.connectsTotal,
		pm.cancelsTotal,
		pm.rowsTotal,
		pm.executionDuration,
		pm.connectDuration,
		pm.uptime,
		pm.openConnections,
		pm.openTransactions,
	)

	promMetrics = pm
}

// RecordExecution records one finished execution cycle
func RecordExecution(mode string, duration time.Duration, rows int, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.executionsTotal.WithLabelValues(mode, status).Inc()
	promMetrics.executionDuration.WithLabelValues(mode).Observe(float64(duration.Microseconds()) / 1000)
	promMetrics.rowsTotal.Add(float64(rows))
}

// RecordConnect records a connection attempt
func RecordConnect(mode string, duration time.Duration, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.connectsTotal.WithLabelValues(mode, status).Inc()
	if success {
		promMetrics.connectDuration.Observe(float64(duration.Microseconds()) / 1000)
	}
}

// IncOpenConnections increments the open connection gauge
func IncOpenConnections() {
	if promMetrics == nil {
		return
	}
	promMetrics.openConnections.Inc()
}

// DecOpenConnections decrements the open connection gauge
func DecOpenConnections() {
	if promMetrics == nil {
		return
	}
	promMetrics.openConnections.Dec()
}

// RecordCancel records a cancel request
func RecordCancel() {
	if promMetrics == nil {
		return
	}
	promMetrics.cancelsTotal.Inc()
}

// RecordTransaction records a begin/commit/rollback call. emitted is false
// for nested calls that only moved the depth counter.
func RecordTransaction(op string, emitted bool) {
	if promMetrics == nil {
		return
	}
	emittedLabel := "false"
	if emitted {
		emittedLabel = "true"
	}
	promMetrics.transactionsTotal.WithLabelValues(op, emittedLabel).Inc()
	if !emitted {
		return
	}
	switch op {
	case "begin":
		promMetrics.openTransactions.Inc()
	case "commit", "rollback":
		promMetrics.openTransactions.Dec()
	}
}

// AbandonTransaction drops an open transaction that ended with its
// connection rather than with a commit or rollback.
func AbandonTransaction() {
	if promMetrics == nil {
		return
	}
	promMetrics.openTransactions.Dec()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
