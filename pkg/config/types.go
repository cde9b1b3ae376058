package config

// RouterConfig is the root of the YAML configuration. Rule, route, policy
// and field tables are static data: loaded at startup, replaced atomically
// on hot reload, never mutated per request.
type RouterConfig struct {
	Classifier       ClassifierConfig          `yaml:"classifier"`
	Backends         BackendsConfig            `yaml:"backends"`
	PatternRules     []PatternRule             `yaml:"pattern_rules"`
	SemanticRoutes   []SemanticRoute           `yaml:"semantic_routes"`
	FieldDefinitions map[string]CategoryFields `yaml:"field_definitions"`
	RiskPolicies     []RiskPolicy              `yaml:"risk_policies"`
	RefinementRules  []RefinementRule          `yaml:"refinement_rules"`
	Dialog           DialogConfig              `yaml:"dialog"`
	Gateway          GatewayConfig             `yaml:"gateway"`
	Audit            AuditConfig               `yaml:"audit"`
	StrictValidation bool                      `yaml:"strict_validation"`
}

// ClassifierConfig holds the cascade thresholds and feature switches.
type ClassifierConfig struct {
	// PatternThreshold is the minimum pattern-layer confidence to accept
	// without escalating. Default 0.90.
	PatternThreshold float64 `yaml:"pattern_threshold"`

	// SemanticThreshold is the minimum semantic similarity to accept.
	// Default 0.85.
	SemanticThreshold float64 `yaml:"semantic_threshold"`

	// EnableLLMFallback controls the terminal LLM layer. Default true.
	EnableLLMFallback *bool `yaml:"enable_llm_fallback"`

	// EnableCompleteness controls completeness scoring on accepted
	// decisions. Default true.
	EnableCompleteness *bool `yaml:"enable_completeness"`

	// MatchTopN bounds MatchAll results for inspection endpoints.
	MatchTopN int `yaml:"match_top_n"`
}

// LLMFallbackEnabled resolves the pointer default.
func (c ClassifierConfig) LLMFallbackEnabled() bool {
	return c.EnableLLMFallback == nil || *c.EnableLLMFallback
}

// CompletenessEnabled resolves the pointer default.
func (c ClassifierConfig) CompletenessEnabled() bool {
	return c.EnableCompleteness == nil || *c.EnableCompleteness
}

// BackendsConfig configures the external scoring services. Both are
// OpenAI-compatible endpoints; the API key is read from the named
// environment variable, never from the config file.
type BackendsConfig struct {
	LLM       LLMBackendConfig       `yaml:"llm"`
	Embedding EmbeddingBackendConfig `yaml:"embedding"`
}

// LLMBackendConfig configures the chat-completion classifier backend.
type LLMBackendConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EmbeddingBackendConfig configures the embedding encoder backend.
// An empty endpoint selects the in-process lexical fallback.
type EmbeddingBackendConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PatternRule is one priority-ordered regex rule for the pattern layer.
type PatternRule struct {
	ID        string   `yaml:"id"`
	Category  string   `yaml:"category"`
	SubIntent string   `yaml:"sub_intent"`
	Patterns  []string `yaml:"patterns"`
	// Priority orders rules; higher is checked first.
	Priority     int    `yaml:"priority"`
	WorkflowType string `yaml:"workflow_type"`
	RiskLevel    string `yaml:"risk_level"`
	Enabled      bool   `yaml:"enabled"`
}

// SemanticRoute is one labeled route for the semantic layer.
type SemanticRoute struct {
	Name         string   `yaml:"name"`
	Category     string   `yaml:"category"`
	SubIntent    string   `yaml:"sub_intent"`
	Utterances   []string `yaml:"utterances"`
	WorkflowType string   `yaml:"workflow_type"`
	RiskLevel    string   `yaml:"risk_level"`
}

// FieldDefinition describes one extractable information field.
type FieldDefinition struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
	// Question is the follow-up asked when the field is missing.
	Question string `yaml:"question"`
}

// CategoryFields lists the required and optional fields for one intent
// category plus its completeness threshold.
type CategoryFields struct {
	RequiredFields []FieldDefinition `yaml:"required_fields"`
	OptionalFields []FieldDefinition `yaml:"optional_fields"`
	// CompletenessThreshold is the minimum score to be considered
	// complete. Default 1.0 (all required fields present).
	CompletenessThreshold *float64 `yaml:"completeness_threshold"`
	// SuggestionTemplate formats missing-field suggestions; %s receives
	// the field name.
	SuggestionTemplate string `yaml:"suggestion_template"`
}

// Threshold resolves the pointer default.
func (c CategoryFields) Threshold() float64 {
	if c.CompletenessThreshold == nil {
		return 1.0
	}
	return *c.CompletenessThreshold
}

// RiskPolicy maps an (category, sub_intent) key to a default risk level and
// approval requirement. SubIntent "*" matches any sub-intent; a policy with
// Category "*" is the global default.
type RiskPolicy struct {
	ID               string `yaml:"id"`
	Category         string `yaml:"category"`
	SubIntent        string `yaml:"sub_intent"`
	RiskLevel        string `yaml:"risk_level"`
	RequiresApproval bool   `yaml:"requires_approval"`
	// ApprovalType is one of none, single, multi.
	ApprovalType string   `yaml:"approval_type"`
	Factors      []string `yaml:"factors"`
	Priority     int      `yaml:"priority"`
}

// FieldCondition is one collected-field predicate of a refinement rule.
type FieldCondition struct {
	Field string `yaml:"field"`
	// Operator is one of present, equals, contains. Default present.
	Operator string `yaml:"operator"`
	Value    string `yaml:"value"`
}

// RefinementRule refines a sub-intent during guided dialog. Consulted only
// by the dialog engine, never by the classifier cascade.
type RefinementRule struct {
	ID       string `yaml:"id"`
	Category string `yaml:"category"`
	// SourceSubIntent "*" matches any current sub-intent.
	SourceSubIntent string           `yaml:"source_sub_intent"`
	TargetSubIntent string           `yaml:"target_sub_intent"`
	Conditions      []FieldCondition `yaml:"conditions"`
	Priority        int              `yaml:"priority"`
	Enabled         bool             `yaml:"enabled"`
}

// DialogConfig bounds guided dialog cost and selects the state store.
type DialogConfig struct {
	// MaxTurns forces a handoff once reached. Default 5.
	MaxTurns int `yaml:"max_turns"`
	// ConversationTTLMinutes expires abandoned conversations. Default 30.
	ConversationTTLMinutes int `yaml:"conversation_ttl_minutes"`
	// Store is memory or redis. Default memory.
	Store string      `yaml:"store"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional Redis dialog-state store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServiceNowMapping maps a ServiceNow (category, subcategory) pair to an
// intent. Empty Subcategory matches any subcategory of the category.
type ServiceNowMapping struct {
	Category     string `yaml:"category"`
	Subcategory  string `yaml:"subcategory"`
	Intent       string `yaml:"intent"`
	SubIntent    string `yaml:"sub_intent"`
	WorkflowType string `yaml:"workflow_type"`
	RiskLevel    string `yaml:"risk_level"`
}

// AlertMapping maps an alert-name regex to an intent for the Prometheus
// fast path. Mappings are evaluated in declaration order.
type AlertMapping struct {
	Pattern      string `yaml:"pattern"`
	Intent       string `yaml:"intent"`
	SubIntent    string `yaml:"sub_intent"`
	WorkflowType string `yaml:"workflow_type"`
}

// GatewayConfig configures source identification and the fast-path tables.
type GatewayConfig struct {
	// DefaultSource is assumed when no marker header or declared source
	// type is present. Default user.
	DefaultSource string `yaml:"default_source"`
	// MaxInputLength caps normalized user input. Default 4000.
	MaxInputLength int `yaml:"max_input_length"`

	ServiceNowMappings []ServiceNowMapping `yaml:"servicenow_mappings"`
	AlertMappings      []AlertMapping      `yaml:"alert_mappings"`
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	// TruncateInputAt bounds user input stored in audit records. Default 200.
	TruncateInputAt int `yaml:"truncate_input_at"`
}

// applyDefaults fills zero values with documented defaults after parsing.
func applyDefaults(cfg *RouterConfig) {
	if cfg.Classifier.PatternThreshold == 0 {
		cfg.Classifier.PatternThreshold = 0.90
	}
	if cfg.Classifier.SemanticThreshold == 0 {
		cfg.Classifier.SemanticThreshold = 0.85
	}
	if cfg.Classifier.MatchTopN == 0 {
		cfg.Classifier.MatchTopN = 5
	}
	if cfg.Backends.LLM.TimeoutSeconds == 0 {
		cfg.Backends.LLM.TimeoutSeconds = 30
	}
	if cfg.Backends.Embedding.TimeoutSeconds == 0 {
		cfg.Backends.Embedding.TimeoutSeconds = 10
	}
	if cfg.Dialog.MaxTurns == 0 {
		cfg.Dialog.MaxTurns = 5
	}
	if cfg.Dialog.ConversationTTLMinutes == 0 {
		cfg.Dialog.ConversationTTLMinutes = 30
	}
	if cfg.Dialog.Store == "" {
		cfg.Dialog.Store = "memory"
	}
	if cfg.Gateway.DefaultSource == "" {
		cfg.Gateway.DefaultSource = "user"
	}
	if cfg.Gateway.MaxInputLength == 0 {
		cfg.Gateway.MaxInputLength = 4000
	}
	if cfg.Audit.TruncateInputAt == 0 {
		cfg.Audit.TruncateInputAt = 200
	}
}
