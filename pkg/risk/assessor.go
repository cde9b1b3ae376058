package risk

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/metrics"
)

// Context carries the situational flags for one assessment call. It is
// supplied per call and never persisted by the assessor.
type Context struct {
	Production      bool
	Weekend         bool
	BusinessHours   bool
	Urgent          bool
	UserRole        string
	AffectedSystems []string
	// Extra holds free-form named factors, each weighted in [0,1] and
	// treated as risk-increasing.
	Extra map[string]float64
}

// Factor is one weighted contribution to the numeric risk score.
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Value  string  `json:"value"`
	// Impact is "increase" or "decrease".
	Impact string `json:"impact"`
}

// Assessment is the consolidated risk output consumed by the HITL gate.
type Assessment struct {
	Level              intent.RiskLevel `json:"risk_level"`
	Score              float64          `json:"risk_score"`
	RequiresApproval   bool             `json:"requires_approval"`
	ApprovalType       string           `json:"approval_type"`
	Factors            []Factor         `json:"factors"`
	Reasoning          string           `json:"reasoning"`
	PolicyID           string           `json:"policy_id"`
	AdjustmentsApplied []string         `json:"adjustments_applied"`
}

// Base score per risk level, blended with the directional factor sum.
var levelBaseScore = map[intent.RiskLevel]float64{
	intent.RiskLow:      0.2,
	intent.RiskMedium:   0.45,
	intent.RiskHigh:     0.7,
	intent.RiskCritical: 0.9,
}

// Category weights reflect how intrinsically risky each intent class is.
var categoryWeight = map[intent.Category]float64{
	intent.CategoryIncident: 0.8,
	intent.CategoryChange:   0.7,
	intent.CategoryUnknown:  0.5,
	intent.CategoryRequest:  0.4,
	intent.CategoryQuery:    0.2,
}

// manyAffectedSystems is the elevation threshold on affected-system count.
const manyAffectedSystems = 3

// Assessor computes risk assessments from the policy table and situational
// context. The table sits behind an atomic pointer so a config reload can
// replace it while assessments are in flight; safe for concurrent use.
type Assessor struct {
	table atomic.Pointer[PolicyTable]
}

// NewAssessor creates an assessor over the given policy table.
func NewAssessor(table *PolicyTable) *Assessor {
	a := &Assessor{}
	a.ReplaceTable(table)
	return a
}

// ReplaceTable swaps in a rebuilt policy table. Assessments already running
// finish against the table they started with.
func (a *Assessor) ReplaceTable(table *PolicyTable) {
	a.table.Store(table)
}

// Assess resolves the policy for the decision, collects weighted factors,
// applies at most one risk-level elevation per qualifying context condition
// (capped at CRITICAL), and blends the numeric score. Elevation at the
// CRITICAL ceiling is a no-op and records no adjustment.
func (a *Assessor) Assess(decision *intent.RoutingDecision, ctx Context) Assessment {
	policy := a.table.Load().Lookup(decision.IntentCategory, decision.SubIntent)

	assessment := Assessment{
		Level:              intent.ParseRiskLevel(policy.RiskLevel),
		PolicyID:           policy.ID,
		AdjustmentsApplied: []string{},
	}

	assessment.Factors = a.collectFactors(decision, ctx)

	// One elevation per qualifying condition, each capped at CRITICAL and
	// recorded only when it actually changes the level.
	elevate := func(name string) {
		before := assessment.Level
		after := before.Elevate()
		if after != before {
			assessment.Level = after
			assessment.AdjustmentsApplied = append(assessment.AdjustmentsApplied,
				fmt.Sprintf("%s: %s -> %s", name, before, after))
		}
	}
	if ctx.Production {
		elevate("production_environment")
	}
	if ctx.Weekend {
		elevate("weekend_window")
	}
	if ctx.Urgent {
		elevate("urgency_flag")
	}
	if len(ctx.AffectedSystems) > manyAffectedSystems {
		elevate("many_affected_systems")
	}

	assessment.Score = a.blendScore(assessment.Level, assessment.Factors)

	assessment.RequiresApproval = assessment.Level.Rank() >= intent.RiskHigh.Rank() || policy.RequiresApproval
	switch {
	case assessment.Level == intent.RiskCritical:
		assessment.ApprovalType = "multi"
	case assessment.Level == intent.RiskHigh:
		assessment.ApprovalType = "single"
	case policy.RequiresApproval && policy.ApprovalType != "":
		assessment.ApprovalType = policy.ApprovalType
	default:
		assessment.ApprovalType = "none"
	}

	assessment.Reasoning = a.reasoning(policy.ID, assessment)

	metrics.RecordRiskAssessment(string(assessment.Level), assessment.RequiresApproval)
	return assessment
}

func (a *Assessor) collectFactors(decision *intent.RoutingDecision, ctx Context) []Factor {
	factors := []Factor{{
		Name:   "intent_category",
		Weight: categoryWeight[decision.IntentCategory],
		Value:  string(decision.IntentCategory),
		Impact: "increase",
	}}

	if decision.SubIntent != "" {
		factors = append(factors, Factor{
			Name: "sub_intent", Weight: 0.5, Value: decision.SubIntent, Impact: "increase",
		})
	}
	if ctx.Production {
		factors = append(factors, Factor{
			Name: "production_environment", Weight: 0.9, Value: "true", Impact: "increase",
		})
	}
	if ctx.Weekend {
		factors = append(factors, Factor{
			Name: "weekend_window", Weight: 0.6, Value: "true", Impact: "increase",
		})
	}
	if ctx.Urgent {
		factors = append(factors, Factor{
			Name: "urgency_flag", Weight: 0.8, Value: "true", Impact: "increase",
		})
	}
	if n := len(ctx.AffectedSystems); n > 0 {
		weight := float64(n) / 5.0
		if weight > 1 {
			weight = 1
		}
		factors = append(factors, Factor{
			Name: "affected_system_count", Weight: weight,
			Value: fmt.Sprintf("%d", n), Impact: "increase",
		})
	}
	if decision.Confidence < 0.5 {
		factors = append(factors, Factor{
			Name: "low_classification_confidence", Weight: 0.7,
			Value: fmt.Sprintf("%.2f", decision.Confidence), Impact: "increase",
		})
	}
	if ctx.BusinessHours {
		// Inside business hours operators are around to react; the only
		// risk-reducing factor.
		factors = append(factors, Factor{
			Name: "business_hours", Weight: 0.3, Value: "true", Impact: "decrease",
		})
	}
	for name, weight := range ctx.Extra {
		factors = append(factors, Factor{
			Name: name, Weight: intent.ClampScore(weight), Value: "context", Impact: "increase",
		})
	}

	return factors
}

// blendScore combines the final level's base score with the directional
// weighted factor average, clamped to [0,1].
func (a *Assessor) blendScore(level intent.RiskLevel, factors []Factor) float64 {
	base := levelBaseScore[level]
	if len(factors) == 0 {
		return intent.ClampScore(base)
	}

	sum := 0.0
	for _, f := range factors {
		if f.Impact == "decrease" {
			sum -= f.Weight
		} else {
			sum += f.Weight
		}
	}
	// Directional average in [-1,1], mapped onto [0,1].
	directional := 0.5 + sum/float64(len(factors))/2

	return intent.ClampScore(0.6*base + 0.4*intent.ClampScore(directional))
}

func (a *Assessor) reasoning(policyID string, assessment Assessment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "policy %s resolved level %s (score %.2f)", policyID, assessment.Level, assessment.Score)
	if len(assessment.AdjustmentsApplied) > 0 {
		fmt.Fprintf(&sb, "; adjustments: %s", strings.Join(assessment.AdjustmentsApplied, ", "))
	}
	if assessment.RequiresApproval {
		fmt.Fprintf(&sb, "; requires %s approval", assessment.ApprovalType)
	}
	return sb.String()
}
