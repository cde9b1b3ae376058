package semantic

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
)

// OpenAIEncoder embeds text through an OpenAI-compatible embedding
// endpoint. Any embedding provider exposing that API shape works.
type OpenAIEncoder struct {
	client  openai.EmbeddingService
	model   string
	timeout time.Duration
}

// NewOpenAIEncoder builds an encoder against the configured backend, or
// returns nil when no endpoint is configured so the caller selects the
// lexical fallback.
func NewOpenAIEncoder(cfg config.EmbeddingBackendConfig) *OpenAIEncoder {
	if cfg.Endpoint == "" {
		return nil
	}
	opts := []option.RequestOption{option.WithBaseURL(cfg.Endpoint)}
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			opts = append(opts, option.WithAPIKey(key))
		}
	}
	return &OpenAIEncoder{
		client:  openai.NewEmbeddingService(opts...),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Embed encodes a single input with a bounded timeout. Cancelling ctx
// cancels the in-flight call.
func (e *OpenAIEncoder) Embed(ctx context.Context, text string) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.client.New(callCtx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating embedding: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("embedding backend returned no data")
	}
	return res.Data[0].Embedding, nil
}
