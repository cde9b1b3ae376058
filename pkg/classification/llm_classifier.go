package classification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// LLMResult is the outcome of the terminal LLM classification layer.
type LLMResult struct {
	Category         intent.Category
	SubIntent        string
	Confidence       float64
	Reasoning        string
	CompletenessHint string
}

// IntentClassifier is the terminal-fallback contract. Implementations must
// absorb transport and parse faults: a failure is reported as an UNKNOWN
// result with zero confidence, never as a propagated error, so the cascade
// always ends with a usable decision.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) LLMResult
}

const classificationPrompt = `You are an IT service management intent classifier.
Classify the user input into exactly one intent category and reply with a single JSON object:

{"intent_category": "incident|request|change|query|unknown",
 "sub_intent": "<snake_case sub intent or empty>",
 "confidence": <0.0-1.0>,
 "reasoning": "<one sentence>",
 "completeness_hint": "<information still missing, or empty>"}

Reply with the JSON object only. User input:
`

// LLMClassifier sends input to an OpenAI-compatible chat-completion backend
// with a structured prompt and parses the response tolerantly.
type LLMClassifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewLLMClassifier builds a classifier against the configured backend. The
// API key, if any, is read from the environment variable named in config.
func NewLLMClassifier(cfg config.LLMBackendConfig) *LLMClassifier {
	opts := []option.RequestOption{option.WithBaseURL(cfg.Endpoint)}
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			opts = append(opts, option.WithAPIKey(key))
		}
	}
	return &LLMClassifier{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Classify queries the model with a bounded timeout. Cancelling ctx cancels
// the in-flight call. Any transport failure degrades to UNKNOWN.
func (c *LLMClassifier) Classify(ctx context.Context, text string) LLMResult {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(classificationPrompt + text),
		},
	})
	if err != nil {
		logging.Warnf("LLM classification call failed: %v", err)
		return LLMResult{
			Category:  intent.CategoryUnknown,
			Reasoning: fmt.Sprintf("llm backend unavailable: %v", err),
		}
	}
	if len(resp.Choices) == 0 {
		return LLMResult{
			Category:  intent.CategoryUnknown,
			Reasoning: "llm backend returned no choices",
		}
	}

	return ParseLLMResponse(resp.Choices[0].Message.Content)
}

// llmPayload is the structured response shape requested from the model.
type llmPayload struct {
	IntentCategory   string  `json:"intent_category"`
	SubIntent        string  `json:"sub_intent"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	CompletenessHint string  `json:"completeness_hint"`
}

// ParseLLMResponse parses a model response tolerantly: strict JSON first,
// then an embedded JSON object located inside wrapping text (markdown
// fences, prose), then keyword-based category inference from the raw text.
func ParseLLMResponse(raw string) LLMResult {
	trimmed := strings.TrimSpace(raw)

	var payload llmPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.IntentCategory != "" {
		return payloadToResult(payload)
	}

	// Attempt to locate an embedded object in wrapped or partial output.
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err == nil && payload.IntentCategory != "" {
				return payloadToResult(payload)
			}
		}
	}

	logging.Debugf("LLM response not parseable as JSON, falling back to keyword inference")
	result := InferCategoryFromText(trimmed)
	result.Reasoning = "keyword inference from unstructured llm output"
	return result
}

func payloadToResult(p llmPayload) LLMResult {
	return LLMResult{
		Category:         intent.ParseCategory(strings.ToLower(strings.TrimSpace(p.IntentCategory))),
		SubIntent:        strings.TrimSpace(p.SubIntent),
		Confidence:       intent.ClampScore(p.Confidence),
		Reasoning:        p.Reasoning,
		CompletenessHint: p.CompletenessHint,
	}
}

// categoryKeywords drives the deterministic keyword inference used both as
// the parse fallback and by the offline classifier variant.
var categoryKeywords = []struct {
	category intent.Category
	keywords []string
}{
	{intent.CategoryIncident, []string{
		"fail", "failed", "error", "down", "crash", "outage", "broken", "incident",
		"失敗", "失败", "报错", "錯誤", "故障", "掛了", "宕機",
	}},
	{intent.CategoryChange, []string{
		"change", "deploy", "release", "upgrade", "rollback", "migrate",
		"變更", "变更", "部署", "升級", "上線",
	}},
	{intent.CategoryRequest, []string{
		"request", "need access", "apply", "provision", "grant", "permission",
		"申請", "申请", "權限", "开通",
	}},
	{intent.CategoryQuery, []string{
		"how", "what", "why", "status", "query", "check",
		"查詢", "查询", "狀態", "怎麼", "如何",
	}},
}

// InferCategoryFromText performs deterministic keyword-based category
// inference. First category with a keyword hit wins; incident keywords are
// checked first since misrouting an incident is the costliest mistake.
func InferCategoryFromText(text string) LLMResult {
	lower := strings.ToLower(text)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return LLMResult{
					Category:   entry.category,
					Confidence: 0.5,
					Reasoning:  fmt.Sprintf("keyword %q suggests %s", kw, entry.category),
				}
			}
		}
	}
	return LLMResult{
		Category:  intent.CategoryUnknown,
		Reasoning: "no category keywords found",
	}
}

// OfflineClassifier is the deterministic variant used in tests and in
// environments without live model access.
type OfflineClassifier struct{}

// Classify infers the category from keywords only. Deterministic and
// repeatable by construction.
func (OfflineClassifier) Classify(_ context.Context, text string) LLMResult {
	result := InferCategoryFromText(text)
	if result.Category != intent.CategoryUnknown {
		result.Reasoning = "offline keyword classification: " + result.Reasoning
	}
	return result
}
