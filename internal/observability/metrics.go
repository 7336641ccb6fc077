// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sweep metrics
	SignalsProcessed prometheus.Counter
	SignalsSkipped   *prometheus.CounterVec
	SignalsRejected  prometheus.Counter
	OutcomesStored   prometheus.Counter
	OutcomesSkipped  prometheus.Counter
	SimulationErrors prometheus.Counter
	ExitReasons      *prometheus.CounterVec
	SweepDuration    prometheus.Histogram

	// Market data metrics
	CandlesFetched  prometheus.Counter
	CandlesStreamed prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSweep prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "signal_sweep_lab"
	}

	return &Metrics{
		SignalsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "signals_processed_total",
			Help:      "Total number of signals fully swept",
		}),
		SignalsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "signals_skipped_total",
			Help:      "Total number of signals recorded as sentinel outcomes",
		}, []string{"reason"}),
		SignalsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "signals_rejected_total",
			Help:      "Total number of signals rejected by the overlap tracker",
		}),
		OutcomesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "outcomes_stored_total",
			Help:      "Total number of trade outcomes stored",
		}),
		OutcomesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "outcomes_skipped_total",
			Help:      "Total number of outcomes skipped as already stored",
		}),
		SimulationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "simulation_errors_total",
			Help:      "Total number of simulation failures",
		}),
		ExitReasons: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "exit_reasons_total",
			Help:      "Trade outcomes by exit reason",
		}, []string{"reason"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "signal_duration_seconds",
			Help:      "Duration of a full parameter sweep for one signal",
			Buckets:   prometheus.DefBuckets,
		}),

		CandlesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "candles_fetched_total",
			Help:      "Total number of candles fetched over REST",
		}),
		CandlesStreamed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "candles_streamed_total",
			Help:      "Total number of closed candles received from the stream",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last successful sweep run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignalProcessed increments the signals processed counter.
func RecordSignalProcessed() {
	DefaultMetrics.SignalsProcessed.Inc()
}

// RecordSignalSkipped records a sentinel outcome by reason.
func RecordSignalSkipped(reason string) {
	DefaultMetrics.SignalsSkipped.WithLabelValues(reason).Inc()
}

// RecordOutcome records one stored outcome and its exit reason.
func RecordOutcome(reason string) {
	DefaultMetrics.OutcomesStored.Inc()
	DefaultMetrics.ExitReasons.WithLabelValues(reason).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
