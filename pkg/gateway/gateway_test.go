package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
)

// recordingRouter captures what the user handler delegates to the cascade.
type recordingRouter struct {
	lastText string
	calls    int
	decision intent.RoutingDecision
}

func (r *recordingRouter) Route(_ context.Context, text, _ string) *intent.RoutingDecision {
	r.calls++
	r.lastText = text
	d := r.decision
	d.Metadata = make(map[string]string)
	return &d
}

type panicHandler struct{}

func (panicHandler) Handle(context.Context, *intent.IncomingRequest) *intent.RoutingDecision {
	panic("handler exploded")
}

func snowMappings() []config.ServiceNowMapping {
	return []config.ServiceNowMapping{
		{Category: "incident", Subcategory: "software", Intent: "incident", SubIntent: "software_issue", WorkflowType: "sequential", RiskLevel: "medium"},
		{Category: "incident", Intent: "incident", SubIntent: "general_incident", WorkflowType: "sequential", RiskLevel: "medium"},
	}
}

func alertMappings() []config.AlertMapping {
	return []config.AlertMapping{
		{Pattern: `(?i)^HighCPU`, Intent: "incident", SubIntent: "resource_saturation", WorkflowType: "sequential"},
		{Pattern: `(?i)ServiceDown`, Intent: "incident", SubIntent: "service_outage", WorkflowType: "sequential"},
	}
}

func TestIdentifySourceMarkerHeaderWins(t *testing.T) {
	gw := New(nil, "user", nil)

	req := intent.NewIncomingRequest("x")
	req.Headers["X-ServiceNow-Instance"] = "dev1234"
	req.SourceType = "user"
	assert.Equal(t, SourceServiceNow, gw.identifySource(req))

	// Header lookup is case-insensitive.
	req = intent.NewIncomingRequest("x")
	req.Headers["x-alertmanager-instance"] = "am0"
	assert.Equal(t, SourcePrometheus, gw.identifySource(req))
}

func TestIdentifySourceDeclaredTypeThenDefault(t *testing.T) {
	gw := New(nil, "user", nil)

	req := intent.NewIncomingRequest("x")
	req.SourceType = "ServiceNow"
	assert.Equal(t, SourceServiceNow, gw.identifySource(req))

	req = intent.NewIncomingRequest("x")
	assert.Equal(t, SourceUser, gw.identifySource(req))
}

func TestServiceNowTableMapping(t *testing.T) {
	h := NewServiceNowHandler(snowMappings(), nil)

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{
		"category":          "incident",
		"subcategory":       "software",
		"short_description": "excel keeps crashing",
		"sys_id":            "abc123",
	}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, intent.CategoryIncident, decision.IntentCategory)
	assert.Equal(t, "software_issue", decision.SubIntent)
	assert.Equal(t, intent.LayerServiceNow, decision.RoutingLayer)
	assert.Equal(t, 1.0, decision.Confidence)
	assert.Equal(t, "abc123", decision.Metadata["servicenow_sys_id"])
}

func TestServiceNowWildcardSubcategory(t *testing.T) {
	h := NewServiceNowHandler(snowMappings(), nil)

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{"category": "incident", "subcategory": "mystery"}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, "general_incident", decision.SubIntent)
}

func TestServiceNowPatternFallback(t *testing.T) {
	matcher := classification.NewPatternMatcher([]config.PatternRule{{
		ID: "etl-failure", Category: "incident", SubIntent: "etl_failure",
		Patterns: []string{`(?i)etl.*fail`}, Priority: 100,
		WorkflowType: "sequential", RiskLevel: "high", Enabled: true,
	}})
	h := NewServiceNowHandler(snowMappings(), matcher)

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{
		"category":          "problem",
		"short_description": "nightly etl failed again",
	}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, "etl_failure", decision.SubIntent)
	assert.Equal(t, "etl-failure", decision.RuleID)
	assert.Equal(t, intent.LayerServiceNow, decision.RoutingLayer)
	assert.Equal(t, "pattern_fallback", decision.Metadata["mapping"])
}

func TestServiceNowGenericDefault(t *testing.T) {
	h := NewServiceNowHandler(snowMappings(), nil)

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{"category": "facilities", "short_description": "the coffee machine"}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, intent.CategoryRequest, decision.IntentCategory)
	assert.Equal(t, "general_ticket", decision.SubIntent)
	assert.Equal(t, "generic_default", decision.Metadata["mapping"])
}

func TestServiceNowPriorityElevatesRisk(t *testing.T) {
	h := NewServiceNowHandler(snowMappings(), nil)

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{
		"category":    "incident",
		"subcategory": "software",
		"priority":    "1",
	}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, intent.RiskCritical, decision.RiskLevel)
	assert.Equal(t, "medium", decision.Metadata["priority_elevated_from"])
}

func TestServiceNowPriorityNeverLowersRisk(t *testing.T) {
	mappings := []config.ServiceNowMapping{{
		Category: "incident", Subcategory: "hardware", Intent: "incident",
		SubIntent: "hardware_issue", RiskLevel: "high",
	}}
	h := NewServiceNowHandler(mappings, nil)

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{
		"category":    "incident",
		"subcategory": "hardware",
		"priority":    "5",
	}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, intent.RiskHigh, decision.RiskLevel)
}

func TestPrometheusAlertMapping(t *testing.T) {
	h := NewPrometheusHandler(alertMappings())

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{
		"alerts": []interface{}{
			map[string]interface{}{
				"labels": map[string]interface{}{
					"alertname": "HighCPUUsage",
					"severity":  "warning",
				},
			},
		},
	}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, intent.CategoryIncident, decision.IntentCategory)
	assert.Equal(t, "resource_saturation", decision.SubIntent)
	assert.Equal(t, intent.LayerPrometheus, decision.RoutingLayer)
	assert.Equal(t, intent.RiskHigh, decision.RiskLevel)
	assert.Equal(t, intent.WorkflowSequential, decision.WorkflowType)
}

func TestPrometheusCriticalSeverityEscalates(t *testing.T) {
	h := NewPrometheusHandler(alertMappings())

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{
		"labels": map[string]interface{}{
			"alertname": "ServiceDownProd",
			"severity":  "critical",
		},
	}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, intent.RiskCritical, decision.RiskLevel)
	assert.Equal(t, intent.WorkflowMagentic, decision.WorkflowType)
}

func TestPrometheusUnmappedAlertGenericIncident(t *testing.T) {
	h := NewPrometheusHandler(alertMappings())

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{"alertname": "SomethingNovel", "severity": "info"}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, intent.CategoryIncident, decision.IntentCategory)
	assert.Equal(t, "unclassified_alert", decision.SubIntent)
	assert.Equal(t, intent.RiskLow, decision.RiskLevel)
}

func TestPrometheusMappingOrderFirstWins(t *testing.T) {
	mappings := []config.AlertMapping{
		{Pattern: `(?i)Down`, Intent: "incident", SubIntent: "first", WorkflowType: "sequential"},
		{Pattern: `(?i)ServiceDown`, Intent: "incident", SubIntent: "second", WorkflowType: "sequential"},
	}
	h := NewPrometheusHandler(mappings)

	req := intent.NewIncomingRequest("")
	req.Payload = map[string]interface{}{"alertname": "ServiceDown"}

	decision := h.Handle(context.Background(), req)
	assert.Equal(t, "first", decision.SubIntent)
}

func TestUserHandlerNormalizesInput(t *testing.T) {
	router := &recordingRouter{decision: intent.RoutingDecision{
		IntentCategory: intent.CategoryIncident,
		RoutingLayer:   intent.LayerPattern,
	}}
	h := NewUserHandler(router, 4000)

	req := intent.NewIncomingRequest("  the   etl\n\njob\t failed  ")
	h.Handle(context.Background(), req)

	assert.Equal(t, "the etl job failed", router.lastText)
}

func TestUserHandlerCapsLength(t *testing.T) {
	router := &recordingRouter{decision: intent.RoutingDecision{
		IntentCategory: intent.CategoryIncident,
		RoutingLayer:   intent.LayerPattern,
	}}
	h := NewUserHandler(router, 10)

	req := intent.NewIncomingRequest(strings.Repeat("a", 50))
	decision := h.Handle(context.Background(), req)

	assert.Len(t, router.lastText, 10)
	assert.Equal(t, "true", decision.Metadata["input_truncated"])
}

func TestGatewayDispatchesBySource(t *testing.T) {
	router := &recordingRouter{decision: intent.RoutingDecision{
		IntentCategory: intent.CategoryQuery,
		RoutingLayer:   intent.LayerLLM,
	}}
	gw := New(map[string]SourceHandler{
		SourceUser:       NewUserHandler(router, 4000),
		SourcePrometheus: NewPrometheusHandler(alertMappings()),
	}, "user", nil)

	req := intent.NewIncomingRequest("how do I reset my password")
	decision := gw.Process(context.Background(), req)

	require.NotNil(t, decision)
	assert.Equal(t, 1, router.calls)
	assert.Equal(t, "user", decision.Metadata["source"])
}

func TestGatewayPanicBecomesUnknownHandoff(t *testing.T) {
	gw := New(map[string]SourceHandler{
		SourceUser: panicHandler{},
	}, "user", nil)

	req := intent.NewIncomingRequest("boom")
	decision := gw.Process(context.Background(), req)

	require.NotNil(t, decision)
	assert.Equal(t, intent.CategoryUnknown, decision.IntentCategory)
	assert.Equal(t, intent.WorkflowHandoff, decision.WorkflowType)
	assert.Equal(t, intent.LayerGatewayErr, decision.RoutingLayer)
	assert.Zero(t, decision.Confidence)
}

func TestGatewayUnknownSourceFallsBackToDefault(t *testing.T) {
	router := &recordingRouter{decision: intent.RoutingDecision{
		IntentCategory: intent.CategoryQuery,
		RoutingLayer:   intent.LayerLLM,
	}}
	gw := New(map[string]SourceHandler{
		SourceUser: NewUserHandler(router, 4000),
	}, "user", nil)

	req := intent.NewIncomingRequest("hello")
	req.SourceType = "carrier-pigeon"
	decision := gw.Process(context.Background(), req)

	require.NotNil(t, decision)
	assert.Equal(t, 1, router.calls)
}
