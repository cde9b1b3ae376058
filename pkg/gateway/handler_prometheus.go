package gateway

import (
	"context"
	"regexp"
	"strings"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// severityRisk maps Alertmanager severity labels onto risk levels.
var severityRisk = map[string]intent.RiskLevel{
	"critical": intent.RiskCritical,
	"warning":  intent.RiskHigh,
	"info":     intent.RiskLow,
}

type preppedAlertMapping struct {
	mapping  config.AlertMapping
	compiled *regexp.Regexp
}

// PrometheusHandler is the deterministic fast path for Alertmanager
// webhooks. Alert-name mappings are evaluated in declaration order; the
// first match wins.
type PrometheusHandler struct {
	mappings []preppedAlertMapping
}

// NewPrometheusHandler compiles the alert-name patterns. Malformed patterns
// are skipped with a warning, mirroring the pattern-rule loading behavior.
func NewPrometheusHandler(mappings []config.AlertMapping) *PrometheusHandler {
	h := &PrometheusHandler{}
	for _, m := range mappings {
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			logging.Warnf("Skipping malformed alert mapping pattern %q: %v", m.Pattern, err)
			continue
		}
		h.mappings = append(h.mappings, preppedAlertMapping{mapping: m, compiled: re})
	}
	return h
}

// Handle maps an alert payload to a decision without invoking the
// classifier cascade. Alerts are incidents by construction; only the
// sub-intent and workflow vary by mapping.
func (h *PrometheusHandler) Handle(_ context.Context, req *intent.IncomingRequest) *intent.RoutingDecision {
	alertName, severity := extractAlert(req.Payload)
	if alertName == "" {
		alertName = strings.TrimSpace(req.Content)
	}

	decision := intent.NewRoutingDecision()
	decision.RoutingLayer = intent.LayerPrometheus
	decision.IntentCategory = intent.CategoryIncident
	decision.Completeness = intent.CompletenessInfo{IsComplete: true, CompletenessScore: 1.0, MissingFields: []string{}}
	decision.Metadata["alert_name"] = alertName
	if severity != "" {
		decision.Metadata["severity"] = severity
	}

	if m, ok := h.match(alertName); ok {
		decision.IntentCategory = intent.ParseCategory(m.Intent)
		decision.SubIntent = m.SubIntent
		decision.WorkflowType = intent.ParseWorkflowType(m.WorkflowType)
		decision.Confidence = 1.0
		decision.Reasoning = "alert mapping " + m.Pattern
	} else {
		decision.SubIntent = "unclassified_alert"
		decision.WorkflowType = intent.WorkflowSequential
		decision.Confidence = 0.7
		decision.Reasoning = "no alert mapping, generic incident"
	}

	decision.RiskLevel = intent.RiskMedium
	if risk, ok := severityRisk[strings.ToLower(severity)]; ok {
		decision.RiskLevel = risk
	}
	// A critical alert is a firefight: escalate straight to the
	// orchestrated workflow regardless of the mapping.
	if decision.RiskLevel == intent.RiskCritical {
		decision.WorkflowType = intent.WorkflowMagentic
	}

	return decision
}

func (h *PrometheusHandler) match(alertName string) (config.AlertMapping, bool) {
	if alertName == "" {
		return config.AlertMapping{}, false
	}
	for _, prepped := range h.mappings {
		if prepped.compiled.MatchString(alertName) {
			return prepped.mapping, true
		}
	}
	return config.AlertMapping{}, false
}

// extractAlert pulls the alert name and severity out of an Alertmanager
// webhook payload. The full webhook format nests them under alerts[0].labels;
// flattened payloads carrying alertname/severity at the top level are also
// accepted.
func extractAlert(payload map[string]interface{}) (alertName, severity string) {
	if payload == nil {
		return "", ""
	}

	if alerts, ok := payload["alerts"].([]interface{}); ok && len(alerts) > 0 {
		if first, ok := alerts[0].(map[string]interface{}); ok {
			if labels, ok := first["labels"].(map[string]interface{}); ok {
				return stringField(labels, "alertname"), stringField(labels, "severity")
			}
		}
	}

	if labels, ok := payload["labels"].(map[string]interface{}); ok {
		return stringField(labels, "alertname"), stringField(labels, "severity")
	}

	return stringField(payload, "alertname"), stringField(payload, "severity")
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
