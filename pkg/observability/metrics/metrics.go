// Package metrics defines the Prometheus collectors for the routing
// pipeline. Counters and histograms are registered once via promauto and
// updated concurrently from request workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassificationLayerCount counts cascade layer attempts by outcome
	// (accepted, rejected, degraded, error).
	ClassificationLayerCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_router_layer_attempts_total",
			Help: "Number of classification layer attempts by layer and outcome",
		},
		[]string{"layer", "outcome"},
	)

	// ClassificationLayerLatency observes per-layer latency in seconds.
	ClassificationLayerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intent_router_layer_latency_seconds",
			Help:    "Classification layer latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"layer"},
	)

	// RoutingDecisionCount counts emitted decisions by intent and layer.
	RoutingDecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_router_decisions_total",
			Help: "Number of routing decisions by intent category and routing layer",
		},
		[]string{"intent", "layer"},
	)

	// RiskAssessmentCount counts risk assessments by final level and
	// approval requirement.
	RiskAssessmentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_router_risk_assessments_total",
			Help: "Number of risk assessments by final level and approval requirement",
		},
		[]string{"level", "requires_approval"},
	)

	// GatewayRequestCount counts gateway requests by identified source and
	// handling status (fast_path, routed, error).
	GatewayRequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_router_gateway_requests_total",
			Help: "Number of gateway requests by source and handling status",
		},
		[]string{"source", "status"},
	)

	// GatewayLatency observes end-to-end gateway processing latency.
	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intent_router_gateway_latency_seconds",
			Help:    "Gateway processing latency in seconds by source",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"source"},
	)

	// DialogTurnCount counts dialog turns by resulting phase.
	DialogTurnCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_router_dialog_turns_total",
			Help: "Number of guided dialog turns by resulting phase",
		},
		[]string{"phase"},
	)

	// RequestErrorCount counts errors by pipeline stage and reason.
	RequestErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_router_errors_total",
			Help: "Number of request processing errors by stage and reason",
		},
		[]string{"stage", "reason"},
	)

	// ConfigReloadCount counts hot-reload attempts by outcome.
	ConfigReloadCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_router_config_reloads_total",
			Help: "Number of configuration reloads by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordLayerAttempt records one cascade layer attempt with its latency.
func RecordLayerAttempt(layer, outcome string, seconds float64) {
	ClassificationLayerCount.WithLabelValues(layer, outcome).Inc()
	ClassificationLayerLatency.WithLabelValues(layer).Observe(seconds)
}

// RecordRoutingDecision records an emitted decision.
func RecordRoutingDecision(intentCategory, layer string) {
	RoutingDecisionCount.WithLabelValues(intentCategory, layer).Inc()
}

// RecordRiskAssessment records a completed risk assessment.
func RecordRiskAssessment(level string, requiresApproval bool) {
	label := "false"
	if requiresApproval {
		label = "true"
	}
	RiskAssessmentCount.WithLabelValues(level, label).Inc()
}

// RecordGatewayRequest records one gateway request with its latency.
func RecordGatewayRequest(source, status string, seconds float64) {
	GatewayRequestCount.WithLabelValues(source, status).Inc()
	GatewayLatency.WithLabelValues(source).Observe(seconds)
}

// RecordDialogTurn records a guided dialog turn.
func RecordDialogTurn(phase string) {
	DialogTurnCount.WithLabelValues(phase).Inc()
}

// RecordRequestError records a processing error.
func RecordRequestError(stage, reason string) {
	RequestErrorCount.WithLabelValues(stage, reason).Inc()
}

// RecordConfigReload records a configuration reload attempt.
func RecordConfigReload(outcome string) {
	ConfigReloadCount.WithLabelValues(outcome).Inc()
}
