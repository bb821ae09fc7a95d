// Package metrics holds the Prometheus collectors exposed on /metrics.
// They are registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets",
			Help: "Number of live rate limiter buckets (tenant and client IP pairs)",
		},
	)

	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected websocket clients",
		},
	)

	// OutstandingAmount is the unpaid balance per tenant and kind
	// ("invoices" or "reimbursements").
	OutstandingAmount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "claims_outstanding_amount",
			Help: "Outstanding amount awaiting payment",
		},
		[]string{"tenant", "kind"},
	)

	OpenDisputes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "claims_open_disputes",
			Help: "Disputes in open or in_progress status",
		},
		[]string{"tenant"},
	)

	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_workflow_transitions_total",
			Help: "Status transitions applied, by entity and target status",
		},
		[]string{"entity", "status"},
	)

	ReconciliationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_reconciliation_runs_total",
			Help: "Scheduled reconciliation refreshes, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBuckets)
	prometheus.MustRegister(WebSocketClients)
	prometheus.MustRegister(OutstandingAmount)
	prometheus.MustRegister(OpenDisputes)
	prometheus.MustRegister(WorkflowTransitions)
	prometheus.MustRegister(ReconciliationRuns)
}
