package classification

import (
	"regexp"
	"sort"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// Confidence blend weights. The base dominates: a curated rule match is a
// high-precision signal, the remaining terms only rank competing matches.
const (
	patternBaseConfidence = 0.90
	coverageWeight        = 0.05
	priorityWeight        = 0.03
	positionWeight        = 0.02
)

// MatchResult is the outcome of one pattern-layer match attempt.
type MatchResult struct {
	Matched      bool
	Category     intent.Category
	SubIntent    string
	RuleID       string
	Pattern      string
	Position     int
	Confidence   float64
	WorkflowType intent.WorkflowType
	RiskLevel    intent.RiskLevel
}

// preppedPatternRule stores a rule with its pre-compiled patterns. Patterns
// are compiled once at load time, never per request.
type preppedPatternRule struct {
	rule     config.PatternRule
	compiled []*regexp.Regexp
	sources  []string
}

// PatternMatcher evaluates priority-ordered regex rules against input text.
// It is a pure function over loaded state and safe for concurrent use.
type PatternMatcher struct {
	rules       []preppedPatternRule
	maxPriority int
}

// NewPatternMatcher compiles the given rules, highest priority first.
// Malformed individual patterns are skipped with a warning and never abort
// loading of the remaining rules; a rule whose patterns all fail to compile
// is dropped entirely.
func NewPatternMatcher(cfgRules []config.PatternRule) *PatternMatcher {
	sorted := make([]config.PatternRule, len(cfgRules))
	copy(sorted, cfgRules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	m := &PatternMatcher{}
	for _, rule := range sorted {
		if !rule.Enabled {
			continue
		}

		prepped := preppedPatternRule{rule: rule}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				logging.Warnf("Skipping malformed pattern %q in rule %q: %v", pattern, rule.ID, err)
				continue
			}
			prepped.compiled = append(prepped.compiled, re)
			prepped.sources = append(prepped.sources, pattern)
		}
		if len(prepped.compiled) == 0 {
			logging.Warnf("Rule %q has no valid patterns, dropping", rule.ID)
			continue
		}

		m.rules = append(m.rules, prepped)
		if rule.Priority > m.maxPriority {
			m.maxPriority = rule.Priority
		}
	}

	logging.Infof("Pattern matcher loaded %d rules (max priority %d)", len(m.rules), m.maxPriority)
	return m
}

// RuleCount returns the number of loaded, enabled rules.
func (m *PatternMatcher) RuleCount() int {
	return len(m.rules)
}

// Match returns the highest-priority rule whose any pattern matches the
// text. Rules are evaluated in descending priority order and each rule is
// counted at most once: the first matching pattern within a rule wins.
// No match across all rules yields a zero-confidence no-match result.
func (m *PatternMatcher) Match(text string) MatchResult {
	for _, prepped := range m.rules {
		if result, ok := m.matchRule(text, prepped); ok {
			return result
		}
	}
	return MatchResult{Confidence: 0}
}

// MatchAll returns up to topN matching rules in priority order, for
// inspection and debugging endpoints.
func (m *PatternMatcher) MatchAll(text string, topN int) []MatchResult {
	var results []MatchResult
	for _, prepped := range m.rules {
		if topN > 0 && len(results) >= topN {
			break
		}
		if result, ok := m.matchRule(text, prepped); ok {
			results = append(results, result)
		}
	}
	return results
}

func (m *PatternMatcher) matchRule(text string, prepped preppedPatternRule) (MatchResult, bool) {
	for i, re := range prepped.compiled {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}

		rule := prepped.rule
		return MatchResult{
			Matched:      true,
			Category:     intent.ParseCategory(rule.Category),
			SubIntent:    rule.SubIntent,
			RuleID:       rule.ID,
			Pattern:      prepped.sources[i],
			Position:     loc[0],
			Confidence:   m.confidence(text, loc, rule.Priority),
			WorkflowType: intent.ParseWorkflowType(rule.WorkflowType),
			RiskLevel:    intent.ParseRiskLevel(rule.RiskLevel),
		}, true
	}
	return MatchResult{}, false
}

// confidence blends the fixed base with match-length coverage, normalized
// rule priority, and a small bonus for earlier match position.
func (m *PatternMatcher) confidence(text string, loc []int, priority int) float64 {
	textLen := len([]rune(text))
	if textLen == 0 {
		return 0
	}

	matchLen := len([]rune(text[loc[0]:loc[1]]))
	coverage := float64(matchLen) / float64(textLen)

	normPriority := 1.0
	if m.maxPriority > 0 {
		normPriority = float64(priority) / float64(m.maxPriority)
	}

	prefixLen := len([]rune(text[:loc[0]]))
	positionBonus := 1.0 - float64(prefixLen)/float64(textLen)

	score := patternBaseConfidence +
		coverageWeight*coverage +
		priorityWeight*normPriority +
		positionWeight*positionBonus
	return intent.ClampScore(score)
}
