package intent

import (
	"time"

	"github.com/google/uuid"
)

// Category is the top-level classification of an operational signal.
type Category string

const (
	CategoryIncident Category = "incident"
	CategoryRequest  Category = "request"
	CategoryChange   Category = "change"
	CategoryQuery    Category = "query"
	CategoryUnknown  Category = "unknown"
)

// ParseCategory normalizes a raw category string to a known Category.
// Unrecognized values map to CategoryUnknown.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryIncident, CategoryRequest, CategoryChange, CategoryQuery:
		return Category(s)
	default:
		return CategoryUnknown
	}
}

// WorkflowType selects the downstream execution strategy for a decision.
type WorkflowType string

const (
	WorkflowSimple     WorkflowType = "simple"
	WorkflowSequential WorkflowType = "sequential"
	WorkflowConcurrent WorkflowType = "concurrent"
	WorkflowMagentic   WorkflowType = "magentic"
	WorkflowHandoff    WorkflowType = "handoff"
)

// ParseWorkflowType normalizes a raw workflow string. Unrecognized values
// map to WorkflowHandoff so an executor always receives a valid type.
func ParseWorkflowType(s string) WorkflowType {
	switch WorkflowType(s) {
	case WorkflowSimple, WorkflowSequential, WorkflowConcurrent, WorkflowMagentic:
		return WorkflowType(s)
	default:
		return WorkflowHandoff
	}
}

// RiskLevel is a strict total order: LOW < MEDIUM < HIGH < CRITICAL.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

var riskByRank = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Rank returns the position of the level in the total order. Unknown levels
// rank as LOW so comparisons never panic.
func (r RiskLevel) Rank() int {
	if rank, ok := riskRank[r]; ok {
		return rank
	}
	return 0
}

// Elevate returns the next higher level. Elevating CRITICAL is a no-op.
func (r RiskLevel) Elevate() RiskLevel {
	rank := r.Rank()
	if rank >= len(riskByRank)-1 {
		return RiskCritical
	}
	return riskByRank[rank+1]
}

// Reduce returns the next lower level. Reducing LOW is a no-op.
func (r RiskLevel) Reduce() RiskLevel {
	rank := r.Rank()
	if rank <= 0 {
		return RiskLow
	}
	return riskByRank[rank-1]
}

// ParseRiskLevel normalizes a raw risk string. Unrecognized values map to
// RiskMedium, the conservative middle of the order.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return RiskLevel(s)
	default:
		return RiskMedium
	}
}

// Closed set of routing_layer values a RoutingDecision may carry.
const (
	LayerPattern     = "pattern"
	LayerSemantic    = "semantic"
	LayerLLM         = "llm"
	LayerServiceNow  = "servicenow_mapping"
	LayerPrometheus  = "prometheus_mapping"
	LayerGatewayErr  = "gateway_error"
	LayerEmptyInput  = "empty_input"
	LayerNone        = "none"
)

// IncomingRequest is the origin-agnostic envelope handed to the gateway.
// Construct with NewIncomingRequest; treat as immutable afterwards.
type IncomingRequest struct {
	Content       string                 `json:"content"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Headers       map[string]string      `json:"headers,omitempty"`
	SourceType    string                 `json:"source_type,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
	Timestamp     time.Time              `json:"timestamp"`
}

// NewIncomingRequest builds a request envelope with fresh maps and a
// correlation id. Every call allocates its own collections so two requests
// never share state.
func NewIncomingRequest(content string) *IncomingRequest {
	return &IncomingRequest{
		Content:       content,
		Payload:       make(map[string]interface{}),
		Headers:       make(map[string]string),
		CorrelationID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
	}
}

// CompletenessInfo reports how much of the required information for an
// intent has been supplied. Recomputed on every dialog turn.
type CompletenessInfo struct {
	IsComplete            bool     `json:"is_complete"`
	CompletenessScore     float64  `json:"completeness_score"`
	MissingFields         []string `json:"missing_fields"`
	MissingOptionalFields []string `json:"missing_optional_fields,omitempty"`
	Suggestions           []string `json:"suggestions,omitempty"`
}

// RoutingDecision is the authoritative output of the decision pipeline.
// Exactly one is produced per request or dialog turn.
type RoutingDecision struct {
	IntentCategory   Category          `json:"intent_category"`
	SubIntent        string            `json:"sub_intent,omitempty"`
	Confidence       float64           `json:"confidence"`
	WorkflowType     WorkflowType      `json:"workflow_type"`
	RiskLevel        RiskLevel         `json:"risk_level"`
	Completeness     CompletenessInfo  `json:"completeness"`
	RoutingLayer     string            `json:"routing_layer"`
	RuleID           string            `json:"rule_id,omitempty"`
	Reasoning        string            `json:"reasoning,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}

// NewRoutingDecision allocates a decision with fresh metadata and the
// conservative defaults downstream consumers rely on.
func NewRoutingDecision() *RoutingDecision {
	return &RoutingDecision{
		IntentCategory: CategoryUnknown,
		WorkflowType:   WorkflowHandoff,
		RiskLevel:      RiskMedium,
		RoutingLayer:   LayerNone,
		Metadata:       make(map[string]string),
		Timestamp:      time.Now().UTC(),
	}
}

// Clone returns a deep copy that can be read or mutated independently of
// the original.
func (d *RoutingDecision) Clone() *RoutingDecision {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Metadata = make(map[string]string, len(d.Metadata))
	for k, v := range d.Metadata {
		clone.Metadata[k] = v
	}
	clone.Completeness.MissingFields = append([]string(nil), d.Completeness.MissingFields...)
	clone.Completeness.MissingOptionalFields = append([]string(nil), d.Completeness.MissingOptionalFields...)
	clone.Completeness.Suggestions = append([]string(nil), d.Completeness.Suggestions...)
	return &clone
}

// UnknownDecision builds the uniform failure-surface decision used by every
// error path: UNKNOWN intent, handoff workflow, zero confidence.
func UnknownDecision(layer, reasoning string) *RoutingDecision {
	d := NewRoutingDecision()
	d.RoutingLayer = layer
	d.Reasoning = reasoning
	d.Completeness = CompletenessInfo{
		IsComplete:    false,
		MissingFields: []string{},
	}
	return d
}

// ClampScore bounds a confidence/similarity/score value to [0,1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
