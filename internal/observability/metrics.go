// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	// Scan metrics
	ScansTotal    *prometheus.CounterVec
	ScanDuration  prometheus.Histogram
	PagesFetched  prometheus.Counter
	OrdersSkipped *prometheus.CounterVec

	// Verification metrics
	CandidatesVerified prometheus.Counter
	RejectionsTotal    *prometheus.CounterVec
	HardErrorsTotal    prometheus.Counter

	// Credit metrics
	CreditsTotal    prometheus.Counter
	DuplicatesTotal prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "deposit_reconciler"
	}

	return &Metrics{
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of order scans by terminal state",
		}, []string{"state"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Order scan duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "pages_fetched_total",
			Help:      "Total number of explorer pages fetched",
		}),
		OrdersSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "orders_skipped_total",
			Help:      "Total number of orders skipped before scanning, by cause",
		}, []string{"cause"}),

		CandidatesVerified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "candidates_total",
			Help:      "Total number of candidates passed to verification",
		}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "rejections_total",
			Help:      "Total number of rejected candidates by reason",
		}, []string{"reason"}),
		HardErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "hard_errors_total",
			Help:      "Total number of hard verification errors",
		}),

		CreditsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credit",
			Name:      "applied_total",
			Help:      "Total number of deposits credited",
		}),
		DuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credit",
			Name:      "duplicates_total",
			Help:      "Total number of credits skipped because the dedup key existed",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")
