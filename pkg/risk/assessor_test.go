package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
)

func testPolicies() []config.RiskPolicy {
	return []config.RiskPolicy{
		{ID: "global-default", Category: "*", SubIntent: "*", RiskLevel: "medium"},
		{ID: "incident-default", Category: "incident", SubIntent: "*", RiskLevel: "high"},
		{ID: "incident-db", Category: "incident", SubIntent: "database_outage", RiskLevel: "critical", RequiresApproval: true, ApprovalType: "multi"},
		{ID: "query-default", Category: "query", SubIntent: "*", RiskLevel: "low"},
	}
}

func decisionFor(category intent.Category, subIntent string, confidence float64) *intent.RoutingDecision {
	d := intent.NewRoutingDecision()
	d.IntentCategory = category
	d.SubIntent = subIntent
	d.Confidence = confidence
	return d
}

func TestLookupThreeTierPrecedence(t *testing.T) {
	table := NewPolicyTable(testPolicies())

	tests := []struct {
		name      string
		category  intent.Category
		subIntent string
		wantID    string
	}{
		{"exact match", intent.CategoryIncident, "database_outage", "incident-db"},
		{"category wildcard", intent.CategoryIncident, "etl_failure", "incident-default"},
		{"global default", intent.CategoryChange, "deployment", "global-default"},
		{"empty sub-intent uses category tier", intent.CategoryQuery, "", "query-default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := table.Lookup(tt.category, tt.subIntent)
			assert.Equal(t, tt.wantID, policy.ID)
		})
	}
}

func TestLookupBuiltinDefaultWithoutGlobal(t *testing.T) {
	table := NewPolicyTable([]config.RiskPolicy{
		{ID: "only-incident", Category: "incident", SubIntent: "*", RiskLevel: "high"},
	})

	policy := table.Lookup(intent.CategoryRequest, "anything")
	assert.Equal(t, "builtin-default", policy.ID)
	assert.Equal(t, string(intent.RiskMedium), policy.RiskLevel)
}

func TestLookupHigherPriorityWinsWithinTier(t *testing.T) {
	table := NewPolicyTable([]config.RiskPolicy{
		{ID: "low-prio", Category: "incident", SubIntent: "*", RiskLevel: "medium", Priority: 1},
		{ID: "high-prio", Category: "incident", SubIntent: "*", RiskLevel: "high", Priority: 10},
	})

	policy := table.Lookup(intent.CategoryIncident, "x")
	assert.Equal(t, "high-prio", policy.ID)
}

func TestAssessBaseline(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	assessment := a.Assess(decisionFor(intent.CategoryQuery, "how_to", 0.9), Context{BusinessHours: true})
	assert.Equal(t, intent.RiskLow, assessment.Level)
	assert.False(t, assessment.RequiresApproval)
	assert.Equal(t, "none", assessment.ApprovalType)
	assert.Empty(t, assessment.AdjustmentsApplied)
	assert.Equal(t, "query-default", assessment.PolicyID)
}

func TestAssessProductionElevation(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	assessment := a.Assess(decisionFor(intent.CategoryIncident, "etl_failure", 0.93), Context{Production: true})
	assert.Equal(t, intent.RiskCritical, assessment.Level)
	require.Len(t, assessment.AdjustmentsApplied, 1)
	assert.Contains(t, assessment.AdjustmentsApplied[0], "production_environment")
	assert.True(t, assessment.RequiresApproval)
	assert.Equal(t, "multi", assessment.ApprovalType)
}

func TestAssessElevationCappedAtCritical(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	// Starts at CRITICAL; every elevation is a no-op and none is recorded.
	assessment := a.Assess(decisionFor(intent.CategoryIncident, "database_outage", 0.95), Context{
		Production:      true,
		Weekend:         true,
		Urgent:          true,
		AffectedSystems: []string{"a", "b", "c", "d"},
	})
	assert.Equal(t, intent.RiskCritical, assessment.Level)
	assert.Empty(t, assessment.AdjustmentsApplied)
}

func TestAssessOneElevationPerCondition(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	// query starts LOW: production + weekend + urgent lifts it three steps.
	assessment := a.Assess(decisionFor(intent.CategoryQuery, "how_to", 0.9), Context{
		Production: true,
		Weekend:    true,
		Urgent:     true,
	})
	assert.Equal(t, intent.RiskCritical, assessment.Level)
	assert.Len(t, assessment.AdjustmentsApplied, 3)
}

func TestAssessAffectedSystemsThreshold(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	exactlyThree := a.Assess(decisionFor(intent.CategoryQuery, "how_to", 0.9), Context{
		AffectedSystems: []string{"a", "b", "c"},
	})
	assert.Empty(t, exactlyThree.AdjustmentsApplied)

	four := a.Assess(decisionFor(intent.CategoryQuery, "how_to", 0.9), Context{
		AffectedSystems: []string{"a", "b", "c", "d"},
	})
	require.Len(t, four.AdjustmentsApplied, 1)
	assert.Contains(t, four.AdjustmentsApplied[0], "many_affected_systems")
}

func TestAssessScoreBounds(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	contexts := []Context{
		{},
		{Production: true, Weekend: true, Urgent: true, AffectedSystems: []string{"a", "b", "c", "d", "e", "f"}},
		{BusinessHours: true},
		{Extra: map[string]float64{"custom": 2.5}},
	}
	for _, ctx := range contexts {
		for _, category := range []intent.Category{intent.CategoryIncident, intent.CategoryQuery, intent.CategoryUnknown} {
			assessment := a.Assess(decisionFor(category, "s", 0.1), ctx)
			assert.GreaterOrEqual(t, assessment.Score, 0.0)
			assert.LessOrEqual(t, assessment.Score, 1.0)
		}
	}
}

func TestAssessApprovalTypeByLevel(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	high := a.Assess(decisionFor(intent.CategoryIncident, "etl_failure", 0.93), Context{})
	assert.Equal(t, intent.RiskHigh, high.Level)
	assert.True(t, high.RequiresApproval)
	assert.Equal(t, "single", high.ApprovalType)

	critical := a.Assess(decisionFor(intent.CategoryIncident, "database_outage", 0.95), Context{})
	assert.Equal(t, intent.RiskCritical, critical.Level)
	assert.Equal(t, "multi", critical.ApprovalType)
}

func TestAssessLowConfidenceFactorRecorded(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	assessment := a.Assess(decisionFor(intent.CategoryQuery, "how_to", 0.2), Context{})
	var found bool
	for _, f := range assessment.Factors {
		if f.Name == "low_classification_confidence" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAssessReasoningMentionsPolicyAndAdjustments(t *testing.T) {
	a := NewAssessor(NewPolicyTable(testPolicies()))

	assessment := a.Assess(decisionFor(intent.CategoryIncident, "etl_failure", 0.93), Context{Production: true})
	assert.Contains(t, assessment.Reasoning, "incident-default")
	assert.Contains(t, assessment.Reasoning, "production_environment")
}

func TestReplaceTableSwapsPolicies(t *testing.T) {
	a := NewAssessor(NewPolicyTable([]config.RiskPolicy{
		{ID: "global-low", Category: "*", SubIntent: "*", RiskLevel: "low"},
	}))

	first := a.Assess(decisionFor(intent.CategoryRequest, "access_request", 0.95), Context{BusinessHours: true})
	assert.Equal(t, intent.RiskLow, first.Level)
	assert.Equal(t, "global-low", first.PolicyID)

	a.ReplaceTable(NewPolicyTable([]config.RiskPolicy{
		{ID: "global-high", Category: "*", SubIntent: "*", RiskLevel: "high"},
	}))

	second := a.Assess(decisionFor(intent.CategoryRequest, "access_request", 0.95), Context{BusinessHours: true})
	assert.Equal(t, intent.RiskHigh, second.Level)
	assert.Equal(t, "global-high", second.PolicyID)
}

func TestNewApprovalRequest(t *testing.T) {
	decision := decisionFor(intent.CategoryChange, "deployment", 0.9)
	assessment := Assessment{Level: intent.RiskHigh, RequiresApproval: true, ApprovalType: "single"}

	req := NewApprovalRequest("corr-1", decision, assessment)
	assert.Equal(t, "corr-1", req.CorrelationID)
	assert.Equal(t, decision, req.Decision)
	assert.False(t, req.RequestedAt.IsZero())
}
