package config

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError describes one structural problem in the configuration.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates field-level errors. In strict mode it aborts
// loading; otherwise it is logged and the offending entries are skipped.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return "config validation failed: " + strings.Join(msgs, "; ")
}

var validCategories = map[string]bool{
	"incident": true, "request": true, "change": true, "query": true, "unknown": true,
}

var validWorkflows = map[string]bool{
	"": true, "simple": true, "sequential": true, "concurrent": true, "magentic": true, "handoff": true,
}

var validRiskLevels = map[string]bool{
	"": true, "low": true, "medium": true, "high": true, "critical": true,
}

var validApprovalTypes = map[string]bool{
	"": true, "none": true, "single": true, "multi": true,
}

// Validate checks the structural integrity of a parsed configuration and
// returns a field-level error list, or nil when the config is clean.
// Individual malformed regex patterns are NOT validation errors here: the
// pattern matcher skips them with a warning at compile time.
func Validate(cfg *RouterConfig) *ValidationError {
	var errs []FieldError

	add := func(field, format string, args ...interface{}) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Classifier.PatternThreshold < 0 || cfg.Classifier.PatternThreshold > 1 {
		add("classifier.pattern_threshold", "must be in [0,1], got %v", cfg.Classifier.PatternThreshold)
	}
	if cfg.Classifier.SemanticThreshold < 0 || cfg.Classifier.SemanticThreshold > 1 {
		add("classifier.semantic_threshold", "must be in [0,1], got %v", cfg.Classifier.SemanticThreshold)
	}

	seenRuleIDs := make(map[string]bool)
	for i, rule := range cfg.PatternRules {
		field := fmt.Sprintf("pattern_rules[%d]", i)
		if rule.ID == "" {
			add(field+".id", "must not be empty")
		} else if seenRuleIDs[rule.ID] {
			add(field+".id", "duplicate rule id %q", rule.ID)
		}
		seenRuleIDs[rule.ID] = true
		if !validCategories[rule.Category] {
			add(field+".category", "unknown category %q", rule.Category)
		}
		if len(rule.Patterns) == 0 {
			add(field+".patterns", "must contain at least one pattern")
		}
		if !validWorkflows[rule.WorkflowType] {
			add(field+".workflow_type", "unknown workflow type %q", rule.WorkflowType)
		}
		if !validRiskLevels[rule.RiskLevel] {
			add(field+".risk_level", "unknown risk level %q", rule.RiskLevel)
		}
	}

	for i, route := range cfg.SemanticRoutes {
		field := fmt.Sprintf("semantic_routes[%d]", i)
		if route.Name == "" {
			add(field+".name", "must not be empty")
		}
		if !validCategories[route.Category] {
			add(field+".category", "unknown category %q", route.Category)
		}
		if len(route.Utterances) == 0 {
			add(field+".utterances", "must contain at least one example utterance")
		}
	}

	for category, fields := range cfg.FieldDefinitions {
		fieldBase := fmt.Sprintf("field_definitions[%s]", category)
		if !validCategories[category] {
			add(fieldBase, "unknown category %q", category)
		}
		if t := fields.Threshold(); t < 0 || t > 1 {
			add(fieldBase+".completeness_threshold", "must be in [0,1], got %v", t)
		}
		for j, def := range fields.RequiredFields {
			if def.Name == "" {
				add(fmt.Sprintf("%s.required_fields[%d].name", fieldBase, j), "must not be empty")
			}
		}
	}

	var hasGlobalDefault bool
	seenPolicyKeys := make(map[string]bool)
	for i, policy := range cfg.RiskPolicies {
		field := fmt.Sprintf("risk_policies[%d]", i)
		if policy.ID == "" {
			add(field+".id", "must not be empty")
		}
		if policy.Category == "*" {
			hasGlobalDefault = true
		} else if !validCategories[policy.Category] {
			add(field+".category", "unknown category %q", policy.Category)
		}
		if !validRiskLevels[policy.RiskLevel] {
			add(field+".risk_level", "unknown risk level %q", policy.RiskLevel)
		}
		if !validApprovalTypes[policy.ApprovalType] {
			add(field+".approval_type", "unknown approval type %q", policy.ApprovalType)
		}
		key := policy.Category + "/" + policy.SubIntent
		if seenPolicyKeys[key] {
			add(field, "duplicate policy key %q", key)
		}
		seenPolicyKeys[key] = true
	}
	if len(cfg.RiskPolicies) > 0 && !hasGlobalDefault {
		// Not fatal: the policy table falls back to a built-in default,
		// but an explicit one is expected in production configs.
		add("risk_policies", "no global default policy (category \"*\")")
	}

	for i, rule := range cfg.RefinementRules {
		field := fmt.Sprintf("refinement_rules[%d]", i)
		if rule.ID == "" {
			add(field+".id", "must not be empty")
		}
		if !validCategories[rule.Category] {
			add(field+".category", "unknown category %q", rule.Category)
		}
		if rule.TargetSubIntent == "" {
			add(field+".target_sub_intent", "must not be empty")
		}
		for j, cond := range rule.Conditions {
			switch cond.Operator {
			case "", "present", "equals", "contains":
			default:
				add(fmt.Sprintf("%s.conditions[%d].operator", field, j), "unknown operator %q", cond.Operator)
			}
		}
	}

	for i, mapping := range cfg.Gateway.AlertMappings {
		field := fmt.Sprintf("gateway.alert_mappings[%d]", i)
		if _, err := regexp.Compile(mapping.Pattern); err != nil {
			add(field+".pattern", "invalid regex: %v", err)
		}
		if !validCategories[mapping.Intent] {
			add(field+".intent", "unknown category %q", mapping.Intent)
		}
	}

	for i, mapping := range cfg.Gateway.ServiceNowMappings {
		field := fmt.Sprintf("gateway.servicenow_mappings[%d]", i)
		if mapping.Category == "" {
			add(field+".category", "must not be empty")
		}
		if !validCategories[mapping.Intent] {
			add(field+".intent", "unknown category %q", mapping.Intent)
		}
	}

	switch cfg.Dialog.Store {
	case "", "memory", "redis":
	default:
		add("dialog.store", "unknown store %q (valid: memory, redis)", cfg.Dialog.Store)
	}
	if cfg.Dialog.Store == "redis" && cfg.Dialog.Redis.Addr == "" {
		add("dialog.redis.addr", "must be set when dialog.store is redis")
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}
