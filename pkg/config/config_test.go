package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
classifier:
  pattern_threshold: 0.90
pattern_rules:
  - id: "etl-failure"
    category: "incident"
    sub_intent: "etl_failure"
    patterns: ["(?i)etl.*fail"]
    priority: 100
    workflow_type: "sequential"
    risk_level: "high"
    enabled: true
risk_policies:
  - id: "global-default"
    category: "*"
    sub_intent: "*"
    risk_level: "medium"
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 0.90, cfg.Classifier.PatternThreshold)
	assert.Equal(t, 0.85, cfg.Classifier.SemanticThreshold)
	assert.True(t, cfg.Classifier.LLMFallbackEnabled())
	assert.True(t, cfg.Classifier.CompletenessEnabled())
	assert.Equal(t, 5, cfg.Dialog.MaxTurns)
	assert.Equal(t, 30, cfg.Dialog.ConversationTTLMinutes)
	assert.Equal(t, "memory", cfg.Dialog.Store)
	assert.Equal(t, "user", cfg.Gateway.DefaultSource)
	assert.Equal(t, 4000, cfg.Gateway.MaxInputLength)
	assert.Equal(t, 200, cfg.Audit.TruncateInputAt)
}

func TestParseExplicitDisableSurvivesDefaults(t *testing.T) {
	cfg, err := Parse(writeConfig(t, `
classifier:
  enable_llm_fallback: false
  enable_completeness: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Classifier.LLMFallbackEnabled())
	assert.False(t, cfg.Classifier.CompletenessEnabled())
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse(writeConfig(t, "pattern_rules: [unclosed"))
	assert.Error(t, err)
}

func TestParseLenientModeToleratesValidationIssues(t *testing.T) {
	cfg, err := Parse(writeConfig(t, `
pattern_rules:
  - id: ""
    category: "martian"
    patterns: []
    enabled: true
`))
	require.NoError(t, err)
	require.Len(t, cfg.PatternRules, 1)
}

func TestParseStrictModeRejectsValidationIssues(t *testing.T) {
	_, err := Parse(writeConfig(t, `
strict_validation: true
pattern_rules:
  - id: ""
    category: "martian"
    patterns: []
    enabled: true
`))
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.NotEmpty(t, verr.Fields)
}

func TestValidateCleanConfig(t *testing.T) {
	cfg, err := Parse(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Nil(t, Validate(cfg))
}

func TestValidateCatchesDuplicateRuleIDs(t *testing.T) {
	cfg := &RouterConfig{
		PatternRules: []PatternRule{
			{ID: "dup", Category: "incident", Patterns: []string{"a"}},
			{ID: "dup", Category: "incident", Patterns: []string{"b"}},
		},
	}
	applyDefaults(cfg)

	verr := Validate(cfg)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Error(), "duplicate rule id")
}

func TestValidateCatchesThresholdOutOfRange(t *testing.T) {
	cfg := &RouterConfig{}
	applyDefaults(cfg)
	cfg.Classifier.PatternThreshold = 1.5

	verr := Validate(cfg)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Error(), "pattern_threshold")
}

func TestValidateCatchesBadAlertMappingRegex(t *testing.T) {
	cfg := &RouterConfig{
		Gateway: GatewayConfig{
			AlertMappings: []AlertMapping{{Pattern: "([", Intent: "incident"}},
		},
	}
	applyDefaults(cfg)

	verr := Validate(cfg)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Error(), "invalid regex")
}

func TestValidateFlagsMissingGlobalPolicy(t *testing.T) {
	cfg := &RouterConfig{
		RiskPolicies: []RiskPolicy{
			{ID: "x", Category: "incident", SubIntent: "*", RiskLevel: "high"},
		},
	}
	applyDefaults(cfg)

	verr := Validate(cfg)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Error(), "no global default policy")
}

func TestValidateDialogStore(t *testing.T) {
	cfg := &RouterConfig{Dialog: DialogConfig{Store: "cassandra"}}
	applyDefaults(cfg)

	verr := Validate(cfg)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Error(), "dialog.store")
}

func TestReplaceAndGet(t *testing.T) {
	cfg, err := Parse(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	Replace(cfg)
	assert.Same(t, cfg, Get())
}
