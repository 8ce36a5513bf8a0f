package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// integrity-api metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"route", "method", "code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "integrity_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ActiveRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "integrity_active_requests",
		Help: "Current in-flight requests",
	})

	// anchor queue metrics
	AnchorQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "integrity_anchor_queue_depth",
		Help: "Pending anchor jobs, including re-queued retries",
	})

	AnchorAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_anchor_attempts_total",
		Help: "Anchor job attempts by outcome",
	}, []string{"operation", "result"})

	AnchorDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_anchor_dropped_total",
		Help: "Anchor jobs dropped after exhausting retries",
	}, []string{"operation"})

	AnchorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "integrity_anchor_duration_seconds",
		Help:    "Ledger call duration per anchor attempt",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	// integrity-scanner metrics
	ScanRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_scan_runs_total",
		Help: "Integrity scan runs by trigger",
	}, []string{"trigger"})

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "integrity_scan_duration_seconds",
		Help:    "Integrity scan run duration",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	})

	ScanRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_scan_records_total",
		Help: "Records processed by the integrity scan by outcome",
	}, []string{"outcome"})

	// incident metrics
	IncidentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_incidents_total",
		Help: "Tamper incidents opened or merged",
	}, []string{"action", "verification_status"})

	IncidentTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_incident_transitions_total",
		Help: "Operator-driven incident status transitions",
	}, []string{"from", "to"})

	AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_alerts_total",
		Help: "Incident alerts sent or suppressed by cooldown",
	}, []string{"result"})
)

func RegisterAll(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, ActiveRequests,
		AnchorQueueDepth, AnchorAttemptsTotal, AnchorDroppedTotal, AnchorDuration,
		ScanRunsTotal, ScanDuration, ScanRecordsTotal,
		IncidentsTotal, IncidentTransitions, AlertsTotal,
	)
}
