package dialog

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// Refiner applies refinement rules to narrow a sub-intent from collected
// fields. It is consulted only by the dialog engine, never by the
// classifier cascade. The rule slice sits behind an atomic pointer so a
// config reload can replace it between turns.
type Refiner struct {
	rules atomic.Pointer[[]config.RefinementRule]
}

// NewRefiner sorts the enabled rules by descending priority.
func NewRefiner(cfgRules []config.RefinementRule) *Refiner {
	r := &Refiner{}
	r.Replace(cfgRules)
	return r
}

// Replace swaps in a rebuilt rule set: enabled rules only, sorted by
// descending priority. Turns already evaluating finish against the rules
// they started with.
func (r *Refiner) Replace(cfgRules []config.RefinementRule) {
	rules := make([]config.RefinementRule, 0, len(cfgRules))
	for _, rule := range cfgRules {
		if rule.Enabled {
			rules = append(rules, rule)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	r.rules.Store(&rules)
}

// Refine returns the highest-priority rule whose category matches, whose
// source sub-intent matches the current one (or is the wildcard), and whose
// field conditions are all satisfied. At most one rule applies per call.
func (r *Refiner) Refine(category intent.Category, currentSubIntent string, fields map[string]string) (config.RefinementRule, bool) {
	for _, rule := range *r.rules.Load() {
		if rule.Category != string(category) {
			continue
		}
		if rule.SourceSubIntent != "*" && rule.SourceSubIntent != currentSubIntent {
			continue
		}
		if !conditionsSatisfied(rule.Conditions, fields) {
			continue
		}
		logging.Debugf("Refinement rule %s: %s -> %s", rule.ID, currentSubIntent, rule.TargetSubIntent)
		return rule, true
	}
	return config.RefinementRule{}, false
}

func conditionsSatisfied(conditions []config.FieldCondition, fields map[string]string) bool {
	for _, cond := range conditions {
		value, present := fields[cond.Field]
		switch cond.Operator {
		case "", "present":
			if !present || value == "" {
				return false
			}
		case "equals":
			if !present || !strings.EqualFold(value, cond.Value) {
				return false
			}
		case "contains":
			if !present || !strings.Contains(strings.ToLower(value), strings.ToLower(cond.Value)) {
				return false
			}
		default:
			// Unknown operators were flagged by config validation; treat
			// as non-matching rather than guessing.
			return false
		}
	}
	return true
}
