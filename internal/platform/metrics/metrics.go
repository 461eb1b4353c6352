package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SubmissionsTotal       *prometheus.CounterVec
	ResubmissionsRequested prometheus.Counter
	RequestsFulfilled      prometheus.Counter
	StatusTransitions      *prometheus.CounterVec
	OrderRepairsApplied    prometheus.Counter
	HTTPDuration           *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_submissions_total",
			Help: "Response submissions by outcome (accepted, invalid, not_found).",
		}, []string{"outcome"}),
		ResubmissionsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_resubmission_requests_total",
			Help: "Resubmission requests opened by administrators.",
		}),
		RequestsFulfilled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_resubmission_requests_fulfilled_total",
			Help: "Resubmission requests marked fulfilled.",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_status_transitions_total",
			Help: "Application status transitions by target status.",
		}, []string{"to"}),
		OrderRepairsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_display_order_repairs_total",
			Help: "Times the reversed displayOrder repair heuristic fired.",
		}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visaflow_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
