package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "relaycloud_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	relayOps       *prometheus.CounterVec
	relayOpLatency *prometheus.HistogramVec

	activeStreams  prometheus.Gauge
	authSignIns    prometheus.Counter
	authSignOuts   prometheus.Counter
	exportRequests *prometheus.CounterVec
)

// Init registers observability metrics and, when a database backs the
// store, DB pool gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		relayOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "relay_operations_total",
				Help: "Total relay operations by kind and result",
			},
			[]string{"operation", "result"},
		)
		relayOpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "relay_operation_latency_seconds",
				Help:    "Relay operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		activeStreams = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_streams",
				Help: "Currently open live snapshot streams",
			},
		)
		authSignIns = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "auth_sign_ins_total",
				Help: "Total successful sign-ins",
			},
		)
		authSignOuts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "auth_sign_outs_total",
				Help: "Total sign-outs",
			},
		)
		exportRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_requests_total",
				Help: "Total inventory export requests by format",
			},
			[]string{"format"},
		)

		collectors := []prometheus.Collector{
			relayOps,
			relayOpLatency,
			activeStreams,
			authSignIns,
			authSignOuts,
			exportRequests,
		}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if logger != nil {
					logger.Printf("metrics register error: %v", err)
				}
			}
		}

		if db != nil {
			registerDBGauges(db, logger)
		}
	})
}

// ObserveRelayOp records one relay operation.
func ObserveRelayOp(operation string, err error, elapsed time.Duration) {
	if relayOps == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	relayOps.WithLabelValues(operation, result).Inc()
	relayOpLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// StreamOpened increments the active stream gauge.
func StreamOpened() {
	if activeStreams != nil {
		activeStreams.Inc()
	}
}

// StreamClosed decrements the active stream gauge.
func StreamClosed() {
	if activeStreams != nil {
		activeStreams.Dec()
	}
}

// ObserveSignIn records a successful sign-in.
func ObserveSignIn() {
	if authSignIns != nil {
		authSignIns.Inc()
	}
}

// ObserveSignOut records a sign-out.
func ObserveSignOut() {
	if authSignOuts != nil {
		authSignOuts.Inc()
	}
}

// ObserveExport records an inventory export.
func ObserveExport(format string) {
	if exportRequests != nil {
		exportRequests.WithLabelValues(format).Inc()
	}
}

func registerDBGauges(db *sql.DB, logger *log.Logger) {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open connections in the store database pool",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	)
	if err := prometheus.Register(gauge); err != nil && logger != nil {
		logger.Printf("metrics register error: %v", err)
	}
}
