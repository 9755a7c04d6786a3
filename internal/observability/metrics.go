// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Discovery metrics
	PairsDiscovered *prometheus.CounterVec
	DiscoveryCursor *prometheus.GaugeVec

	// Chain client metrics
	RPCCallLatency    *prometheus.HistogramVec
	RPCErrors         *prometheus.CounterVec
	EndpointFailovers prometheus.Counter

	// Dispatch metrics
	CandidatesQueued  prometheus.Gauge
	CandidatesDropped prometheus.Counter
	CandidatesDeduped prometheus.Counter
	CandidatesSkipped *prometheus.CounterVec
	AnalysesCompleted prometheus.Counter
	AnalysisDuration  prometheus.Histogram
	AlertsCreated     *prometheus.CounterVec

	// Delivery metrics
	SendsTotal        *prometheus.CounterVec
	SendRetries       prometheus.Counter
	SubscribersMarked prometheus.Counter
	DeliveryQueueLen  *prometheus.GaugeVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launch_radar"
	}

	return &Metrics{
		// Discovery metrics
		PairsDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "pairs_discovered_total",
			Help:      "Total number of pair candidates discovered by factory",
		}, []string{"factory"}),
		DiscoveryCursor: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "cursor_block",
			Help:      "Last scanned block per factory",
		}, []string{"factory"}),

		// Chain client metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_duration_seconds",
			Help:      "RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_errors_total",
			Help:      "Total number of RPC errors by class",
		}, []string{"class"}),
		EndpointFailovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "endpoint_failovers_total",
			Help:      "Total number of times the active endpoint was demoted",
		}),

		// Dispatch metrics
		CandidatesQueued: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_length",
			Help:      "Current number of candidates waiting for a worker",
		}),
		CandidatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "candidates_dropped_total",
			Help:      "Total number of candidates dropped due to queue saturation",
		}),
		CandidatesDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "candidates_deduped_total",
			Help:      "Total number of candidates dropped as already seen",
		}),
		CandidatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "candidates_skipped_total",
			Help:      "Total number of candidates skipped by reason",
		}, []string{"reason"}),
		AnalysesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "analyses_completed_total",
			Help:      "Total number of candidates fully analyzed",
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one candidate analysis",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60},
		}),
		AlertsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "alerts_created_total",
			Help:      "Total number of alerts created by risk tag",
		}, []string{"risk"}),

		// Delivery metrics
		SendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "sends_total",
			Help:      "Total number of send attempts by outcome",
		}, []string{"outcome"}),
		SendRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "send_retries_total",
			Help:      "Total number of retriable send attempts rescheduled",
		}),
		SubscribersMarked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "subscribers_marked_dead_total",
			Help:      "Total number of subscribers marked dead",
		}),
		DeliveryQueueLen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "queue_length",
			Help:      "Current delivery queue length per tier",
		}, []string{"tier"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last completed discovery round",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPairDiscovered increments the discovered counter for a factory.
func RecordPairDiscovered(factory string) {
	DefaultMetrics.PairsDiscovered.WithLabelValues(factory).Inc()
}

// UpdateDiscoveryCursor updates the cursor gauge for a factory.
func UpdateDiscoveryCursor(factory string, block uint64) {
	DefaultMetrics.DiscoveryCursor.WithLabelValues(factory).Set(float64(block))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records an RPC error by class.
func RecordRPCError(class string) {
	DefaultMetrics.RPCErrors.WithLabelValues(class).Inc()
}

// RecordFailover increments the endpoint failover counter.
func RecordFailover() {
	DefaultMetrics.EndpointFailovers.Inc()
}

// UpdateDispatchQueue updates the dispatch queue length gauge.
func UpdateDispatchQueue(n int) {
	DefaultMetrics.CandidatesQueued.Set(float64(n))
}

// RecordCandidateDropped increments the saturation-drop counter.
func RecordCandidateDropped() {
	DefaultMetrics.CandidatesDropped.Inc()
}

// RecordCandidateDeduped increments the dedup counter.
func RecordCandidateDeduped() {
	DefaultMetrics.CandidatesDeduped.Inc()
}

// RecordCandidateSkipped increments the skip counter for a reason.
func RecordCandidateSkipped(reason string) {
	DefaultMetrics.CandidatesSkipped.WithLabelValues(reason).Inc()
}

// RecordAnalysisDone records one completed analysis and its duration.
func RecordAnalysisDone(seconds float64) {
	DefaultMetrics.AnalysesCompleted.Inc()
	DefaultMetrics.AnalysisDuration.Observe(seconds)
}

// RecordAlertCreated increments the alert counter for a risk tag.
func RecordAlertCreated(risk string) {
	DefaultMetrics.AlertsCreated.WithLabelValues(risk).Inc()
}

// RecordSend records one send attempt by outcome (ok, retriable, dead).
func RecordSend(outcome string) {
	DefaultMetrics.SendsTotal.WithLabelValues(outcome).Inc()
}

// RecordSendRetry increments the retry counter.
func RecordSendRetry() {
	DefaultMetrics.SendRetries.Inc()
}

// RecordSubscriberDead increments the dead-subscriber counter.
func RecordSubscriberDead() {
	DefaultMetrics.SubscribersMarked.Inc()
}

// UpdateDeliveryQueue updates the per-tier delivery queue gauge.
func UpdateDeliveryQueue(tier string, n int) {
	DefaultMetrics.DeliveryQueueLen.WithLabelValues(tier).Set(float64(n))
}

// MarkScanComplete records the timestamp of a completed discovery round.
func MarkScanComplete(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulScan.Set(float64(unixSeconds))
}
