// Package router orchestrates the three-layer classifier cascade: pattern,
// semantic, LLM, attempted in strict order with short-circuit on the first
// acceptable result.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/laitim2001/itsm-intent-router/pkg/audit"
	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/metrics"
	"github.com/laitim2001/itsm-intent-router/pkg/semantic"
)

// PatternLayer is the first cascade layer.
type PatternLayer interface {
	Match(text string) classification.MatchResult
}

// SemanticLayer is the second cascade layer.
type SemanticLayer interface {
	Route(ctx context.Context, text string) semantic.Result
}

// CompletenessLayer scores information completeness for accepted decisions.
type CompletenessLayer interface {
	Check(category intent.Category, text string, collected map[string]string) (intent.CompletenessInfo, map[string]string)
}

// Options holds the cascade thresholds and feature switches.
type Options struct {
	PatternThreshold   float64
	SemanticThreshold  float64
	EnableLLMFallback  bool
	EnableCompleteness bool
}

// BusinessIntentRouter converts normalized text into the canonical
// RoutingDecision. Safe for concurrent use; the cascade is sequential
// within one request only.
type BusinessIntentRouter struct {
	pattern      PatternLayer
	semantic     SemanticLayer
	llm          classification.IntentClassifier
	completeness CompletenessLayer
	opts         Options
	auditor      *audit.Logger
	stats        *LayerStats
}

// New assembles the cascade. llm may be nil when the fallback is disabled;
// completeness may be nil when scoring is disabled.
func New(pattern PatternLayer, sem SemanticLayer, llm classification.IntentClassifier, completeness CompletenessLayer, opts Options, auditor *audit.Logger) *BusinessIntentRouter {
	return &BusinessIntentRouter{
		pattern:      pattern,
		semantic:     sem,
		llm:          llm,
		completeness: completeness,
		opts:         opts,
		auditor:      auditor,
		stats:        NewLayerStats(),
	}
}

// Stats returns the running per-layer metrics accumulator.
func (r *BusinessIntentRouter) Stats() *LayerStats {
	return r.stats
}

// Route attempts the layers in strict order with short-circuiting:
// pattern (confidence >= pattern threshold), semantic (similarity >= its
// threshold), then the LLM terminal fallback which is always accepted.
// Empty input short-circuits immediately without invoking any layer.
// Route never returns nil: every path yields a complete decision.
func (r *BusinessIntentRouter) Route(ctx context.Context, text, correlationID string) *intent.RoutingDecision {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		decision := intent.UnknownDecision(intent.LayerEmptyInput, "empty input")
		decision.ProcessingTimeMs = time.Since(start).Milliseconds()
		metrics.RecordRoutingDecision(string(decision.IntentCategory), decision.RoutingLayer)
		r.audit(correlationID, text, decision)
		return decision
	}

	decision := r.tryPattern(text, correlationID)
	if decision == nil {
		decision = r.trySemantic(ctx, text, correlationID)
	}
	if decision == nil {
		decision = r.tryLLM(ctx, text)
	}
	if decision == nil {
		decision = intent.UnknownDecision(intent.LayerNone,
			"no layer produced an acceptable result and llm fallback is disabled")
	}

	if r.opts.EnableCompleteness && r.completeness != nil && decision.IntentCategory != intent.CategoryUnknown {
		info, _ := r.completeness.Check(decision.IntentCategory, text, nil)
		decision.Completeness = info
	} else {
		decision.Completeness = intent.CompletenessInfo{
			IsComplete:        true,
			CompletenessScore: 1.0,
			MissingFields:     []string{},
		}
	}

	decision.ProcessingTimeMs = time.Since(start).Milliseconds()
	decision.Metadata["total_latency_ms"] = fmt.Sprintf("%d", decision.ProcessingTimeMs)

	metrics.RecordRoutingDecision(string(decision.IntentCategory), decision.RoutingLayer)
	r.audit(correlationID, text, decision)

	logging.Debugf("Routed %q: intent=%s sub_intent=%s layer=%s confidence=%.2f",
		truncateForLog(text), decision.IntentCategory, decision.SubIntent,
		decision.RoutingLayer, decision.Confidence)
	return decision
}

func (r *BusinessIntentRouter) tryPattern(text, correlationID string) *intent.RoutingDecision {
	layerStart := time.Now()
	match := r.pattern.Match(text)
	elapsed := time.Since(layerStart)

	accepted := match.Matched && match.Confidence >= r.opts.PatternThreshold
	r.recordLayer(intent.LayerPattern, accepted, elapsed)

	if !accepted {
		reason := "no pattern matched"
		if match.Matched {
			reason = fmt.Sprintf("pattern confidence %.2f below threshold %.2f", match.Confidence, r.opts.PatternThreshold)
		}
		r.escalate(correlationID, intent.LayerPattern, intent.LayerSemantic, reason)
		return nil
	}

	decision := intent.NewRoutingDecision()
	decision.IntentCategory = match.Category
	decision.SubIntent = match.SubIntent
	decision.Confidence = intent.ClampScore(match.Confidence)
	decision.WorkflowType = match.WorkflowType
	decision.RiskLevel = match.RiskLevel
	decision.RoutingLayer = intent.LayerPattern
	decision.RuleID = match.RuleID
	decision.Reasoning = fmt.Sprintf("rule %s matched pattern %q at position %d", match.RuleID, match.Pattern, match.Position)
	decision.Metadata["pattern_latency_ms"] = fmt.Sprintf("%d", elapsed.Milliseconds())

	if r.auditor != nil {
		r.auditor.RecordPatternMatch(correlationID, match.RuleID, match.Pattern, match.Confidence)
	}
	return decision
}

func (r *BusinessIntentRouter) trySemantic(ctx context.Context, text, correlationID string) *intent.RoutingDecision {
	layerStart := time.Now()
	result := r.semantic.Route(ctx, text)
	elapsed := time.Since(layerStart)

	r.recordLayer(intent.LayerSemantic, result.Matched, elapsed)

	if !result.Matched {
		r.escalate(correlationID, intent.LayerSemantic, intent.LayerLLM,
			fmt.Sprintf("best similarity %.2f below threshold %.2f", result.Similarity, r.opts.SemanticThreshold))
		return nil
	}

	decision := intent.NewRoutingDecision()
	decision.IntentCategory = result.Category
	decision.SubIntent = result.SubIntent
	decision.Confidence = intent.ClampScore(result.Similarity)
	decision.WorkflowType = result.WorkflowType
	decision.RiskLevel = result.RiskLevel
	decision.RoutingLayer = intent.LayerSemantic
	decision.RuleID = result.RouteName
	decision.Reasoning = fmt.Sprintf("semantic route %q matched with similarity %.2f", result.RouteName, result.Similarity)
	decision.Metadata["semantic_latency_ms"] = fmt.Sprintf("%d", elapsed.Milliseconds())
	decision.Metadata["similarity"] = fmt.Sprintf("%.4f", result.Similarity)
	return decision
}

// tryLLM is the terminal fallback: its result is always accepted, including
// UNKNOWN with zero confidence when the backend is unavailable.
func (r *BusinessIntentRouter) tryLLM(ctx context.Context, text string) *intent.RoutingDecision {
	if !r.opts.EnableLLMFallback || r.llm == nil {
		return nil
	}

	layerStart := time.Now()
	result := r.llm.Classify(ctx, text)
	elapsed := time.Since(layerStart)

	r.recordLayer(intent.LayerLLM, result.Category != intent.CategoryUnknown, elapsed)

	decision := intent.NewRoutingDecision()
	decision.IntentCategory = result.Category
	decision.SubIntent = result.SubIntent
	decision.Confidence = intent.ClampScore(result.Confidence)
	decision.WorkflowType = defaultWorkflowFor(result.Category)
	decision.RoutingLayer = intent.LayerLLM
	decision.Reasoning = result.Reasoning
	decision.Metadata["llm_latency_ms"] = fmt.Sprintf("%d", elapsed.Milliseconds())
	if result.CompletenessHint != "" {
		decision.Metadata["completeness_hint"] = result.CompletenessHint
	}
	return decision
}

// defaultWorkflowFor maps a category to its default workflow when no rule
// or route supplies one.
func defaultWorkflowFor(category intent.Category) intent.WorkflowType {
	switch category {
	case intent.CategoryIncident, intent.CategoryChange:
		return intent.WorkflowSequential
	case intent.CategoryRequest, intent.CategoryQuery:
		return intent.WorkflowSimple
	default:
		return intent.WorkflowHandoff
	}
}

func (r *BusinessIntentRouter) recordLayer(layer string, accepted bool, elapsed time.Duration) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	metrics.RecordLayerAttempt(layer, outcome, elapsed.Seconds())
	r.stats.Record(layer, accepted, elapsed.Seconds())
}

func (r *BusinessIntentRouter) escalate(correlationID, fromLayer, toLayer, reason string) {
	if r.auditor != nil {
		r.auditor.RecordEscalation(correlationID, fromLayer, toLayer, reason)
	}
}

func (r *BusinessIntentRouter) audit(correlationID, input string, decision *intent.RoutingDecision) {
	if r.auditor != nil {
		r.auditor.RecordDecision(correlationID, input, decision)
	}
}

func truncateForLog(s string) string {
	runes := []rune(s)
	if len(runes) <= 80 {
		return s
	}
	return string(runes[:80]) + "..."
}
