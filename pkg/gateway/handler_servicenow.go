package gateway

import (
	"context"
	"strings"

	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// snowPriorityRisk maps ServiceNow priority values (1 = highest) onto risk
// levels. The mapped risk only ever raises the table's risk, never lowers it.
var snowPriorityRisk = map[string]intent.RiskLevel{
	"1": intent.RiskCritical,
	"2": intent.RiskHigh,
	"3": intent.RiskMedium,
	"4": intent.RiskLow,
	"5": intent.RiskLow,
}

type snowMappingKey struct {
	category    string
	subcategory string
}

// ServiceNowHandler is the deterministic fast path for ServiceNow ticket
// webhooks. The static (category, subcategory) table is authoritative; the
// pattern matcher on the short description is a fallback, and a generic
// request decision closes the path so a ticket never escapes unrouted.
type ServiceNowHandler struct {
	exact    map[snowMappingKey]config.ServiceNowMapping
	wildcard map[string]config.ServiceNowMapping
	matcher  *classification.PatternMatcher
}

// NewServiceNowHandler indexes the mapping table. An empty subcategory in a
// mapping matches any subcategory of its category.
func NewServiceNowHandler(mappings []config.ServiceNowMapping, matcher *classification.PatternMatcher) *ServiceNowHandler {
	h := &ServiceNowHandler{
		exact:    make(map[snowMappingKey]config.ServiceNowMapping),
		wildcard: make(map[string]config.ServiceNowMapping),
		matcher:  matcher,
	}
	for _, m := range mappings {
		category := strings.ToLower(strings.TrimSpace(m.Category))
		subcategory := strings.ToLower(strings.TrimSpace(m.Subcategory))
		if subcategory == "" || subcategory == "*" {
			h.wildcard[category] = m
			continue
		}
		h.exact[snowMappingKey{category, subcategory}] = m
	}
	return h
}

// Handle maps a ticket payload to a decision without invoking the
// classifier cascade.
func (h *ServiceNowHandler) Handle(_ context.Context, req *intent.IncomingRequest) *intent.RoutingDecision {
	category := strings.ToLower(payloadString(req.Payload, "category"))
	subcategory := strings.ToLower(payloadString(req.Payload, "subcategory"))
	shortDescription := payloadString(req.Payload, "short_description")
	if shortDescription == "" {
		shortDescription = req.Content
	}

	decision := intent.NewRoutingDecision()
	decision.RoutingLayer = intent.LayerServiceNow
	decision.Completeness = intent.CompletenessInfo{IsComplete: true, CompletenessScore: 1.0, MissingFields: []string{}}
	if sysID := payloadString(req.Payload, "sys_id"); sysID != "" {
		decision.Metadata["servicenow_sys_id"] = sysID
	}

	if m, ok := h.lookup(category, subcategory); ok {
		decision.IntentCategory = intent.ParseCategory(m.Intent)
		decision.SubIntent = m.SubIntent
		decision.WorkflowType = intent.ParseWorkflowType(m.WorkflowType)
		decision.RiskLevel = intent.ParseRiskLevel(m.RiskLevel)
		decision.Confidence = 1.0
		decision.Reasoning = "servicenow mapping table"
		decision.Metadata["mapping"] = "table"
	} else if result := h.matchDescription(shortDescription); result != nil {
		decision.IntentCategory = result.Category
		decision.SubIntent = result.SubIntent
		decision.WorkflowType = result.WorkflowType
		decision.RiskLevel = result.RiskLevel
		decision.Confidence = result.Confidence
		decision.RuleID = result.RuleID
		decision.Reasoning = "short description pattern match"
		decision.Metadata["mapping"] = "pattern_fallback"
	} else {
		logging.Debugf("ServiceNow ticket (%s/%s) has no mapping, using generic request", category, subcategory)
		decision.IntentCategory = intent.CategoryRequest
		decision.SubIntent = "general_ticket"
		decision.WorkflowType = intent.WorkflowSimple
		decision.RiskLevel = intent.RiskMedium
		decision.Confidence = 0.5
		decision.Reasoning = "no mapping for ticket, generic request"
		decision.Metadata["mapping"] = "generic_default"
	}

	if risk, ok := snowPriorityRisk[payloadString(req.Payload, "priority")]; ok {
		if risk.Rank() > decision.RiskLevel.Rank() {
			decision.Metadata["priority_elevated_from"] = string(decision.RiskLevel)
			decision.RiskLevel = risk
		}
	}

	return decision
}

func (h *ServiceNowHandler) lookup(category, subcategory string) (config.ServiceNowMapping, bool) {
	if m, ok := h.exact[snowMappingKey{category, subcategory}]; ok {
		return m, true
	}
	if m, ok := h.wildcard[category]; ok {
		return m, true
	}
	return config.ServiceNowMapping{}, false
}

func (h *ServiceNowHandler) matchDescription(text string) *classification.MatchResult {
	if h.matcher == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	result := h.matcher.Match(text)
	if !result.Matched {
		return nil
	}
	return &result
}

// payloadString pulls a string field out of a generic webhook payload.
func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
