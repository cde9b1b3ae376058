// Package risk implements the policy table and the situational risk
// assessor that gates execution behind human approval.
package risk

import (
	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// builtinDefaultPolicy guarantees lookup always terminates even when the
// config carries no global default.
var builtinDefaultPolicy = config.RiskPolicy{
	ID:           "builtin-default",
	Category:     "*",
	SubIntent:    "*",
	RiskLevel:    string(intent.RiskMedium),
	ApprovalType: "none",
}

// PolicyTable resolves risk policies with a fixed three-tier precedence:
// exact (category, sub_intent), then (category, "*"), then the global
// default. Lookup always resolves to exactly one policy.
type PolicyTable struct {
	exact         map[string]config.RiskPolicy
	categoryWide  map[string]config.RiskPolicy
	globalDefault config.RiskPolicy
}

// NewPolicyTable indexes the configured policies. Within one tier a higher
// Priority wins; equal priorities keep the first declaration.
func NewPolicyTable(policies []config.RiskPolicy) *PolicyTable {
	t := &PolicyTable{
		exact:         make(map[string]config.RiskPolicy),
		categoryWide:  make(map[string]config.RiskPolicy),
		globalDefault: builtinDefaultPolicy,
	}

	haveGlobal := false
	for _, policy := range policies {
		switch {
		case policy.Category == "*":
			if !haveGlobal || policy.Priority > t.globalDefault.Priority {
				t.globalDefault = policy
				haveGlobal = true
			}
		case policy.SubIntent == "*" || policy.SubIntent == "":
			key := policy.Category
			if existing, ok := t.categoryWide[key]; !ok || policy.Priority > existing.Priority {
				t.categoryWide[key] = policy
			}
		default:
			key := policy.Category + "/" + policy.SubIntent
			if existing, ok := t.exact[key]; !ok || policy.Priority > existing.Priority {
				t.exact[key] = policy
			}
		}
	}

	if !haveGlobal {
		logging.Warnf("No global default risk policy configured, using builtin default (%s)", builtinDefaultPolicy.RiskLevel)
	}
	logging.Infof("Risk policy table loaded: %d exact, %d category-wide, global default %q",
		len(t.exact), len(t.categoryWide), t.globalDefault.ID)
	return t
}

// Lookup resolves the policy for the given (category, sub_intent). It never
// fails: the chain terminates at the global default.
func (t *PolicyTable) Lookup(category intent.Category, subIntent string) config.RiskPolicy {
	if subIntent != "" {
		if policy, ok := t.exact[string(category)+"/"+subIntent]; ok {
			return policy
		}
	}
	if policy, ok := t.categoryWide[string(category)]; ok {
		return policy
	}
	return t.globalDefault
}
