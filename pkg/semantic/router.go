// Package semantic implements the similarity layer of the classifier
// cascade: input is compared against labeled example utterances, either
// through an external embedding encoder or through a pure in-process
// lexical fallback.
package semantic

import (
	"context"
	"math"
	"sync"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// Encoder embeds text through an external embedding provider.
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Result is the outcome of one semantic-layer attempt. Similarity is always
// populated, also on no-match, for diagnostics.
type Result struct {
	Matched      bool
	RouteName    string
	Category     intent.Category
	SubIntent    string
	Similarity   float64
	WorkflowType intent.WorkflowType
	RiskLevel    intent.RiskLevel
}

type indexedUtterance struct {
	routeIdx  int
	utterance string
	vector    []float64
}

// Router holds the semantic routes and compares input against their example
// utterances. With a nil encoder it scores lexically in-process; with an
// encoder it builds an embedding index on first use.
type Router struct {
	routes    []config.SemanticRoute
	threshold float64
	encoder   Encoder

	buildOnce sync.Once
	index     []indexedUtterance
	degraded  bool
}

// NewRouter creates a semantic router. encoder may be nil, which selects
// the lexical fallback so the similarity contract holds without an external
// backend.
func NewRouter(routes []config.SemanticRoute, threshold float64, encoder Encoder) *Router {
	return &Router{
		routes:    routes,
		threshold: threshold,
		encoder:   encoder,
	}
}

// Route returns the best-scoring route when its similarity meets the
// threshold, else a no-match result carrying the observed similarity.
// Index construction failure degrades this layer to a permanent no-match
// state rather than erroring: the cascade must continue past it.
func (r *Router) Route(ctx context.Context, text string) Result {
	if len(r.routes) == 0 {
		return Result{}
	}

	if r.encoder == nil {
		return r.routeLexical(text)
	}

	r.buildOnce.Do(func() { r.buildIndex(ctx) })
	if r.degraded {
		return Result{}
	}

	query, err := r.encoder.Embed(ctx, text)
	if err != nil {
		logging.Warnf("Semantic layer: query embedding failed: %v", err)
		return Result{}
	}

	bestIdx := -1
	bestSim := 0.0
	for i := range r.index {
		sim := cosineSimilarity(query, r.index[i].vector)
		if sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Result{}
	}
	return r.resultFor(r.index[bestIdx].routeIdx, bestSim)
}

// Threshold returns the configured acceptance threshold.
func (r *Router) Threshold() float64 {
	return r.threshold
}

// Degraded reports whether the embedding index failed to build.
func (r *Router) Degraded() bool {
	return r.degraded
}

// buildIndex embeds every utterance of every route. A single failed
// utterance fails the whole build: a partial index would silently bias
// matching toward the routes that happened to encode first.
func (r *Router) buildIndex(ctx context.Context) {
	for i, route := range r.routes {
		for _, utterance := range route.Utterances {
			vector, err := r.encoder.Embed(ctx, utterance)
			if err != nil {
				logging.Errorf("Semantic layer degraded: failed to embed utterance for route %q: %v", route.Name, err)
				r.degraded = true
				r.index = nil
				return
			}
			r.index = append(r.index, indexedUtterance{routeIdx: i, utterance: utterance, vector: vector})
		}
	}
	logging.Infof("Semantic index built: %d utterances across %d routes", len(r.index), len(r.routes))
}

// routeLexical scores with the in-process keyword/character-overlap blend.
func (r *Router) routeLexical(text string) Result {
	bestIdx := -1
	bestSim := 0.0
	for i, route := range r.routes {
		for _, utterance := range route.Utterances {
			sim := LexicalSimilarity(text, utterance)
			if sim > bestSim {
				bestSim = sim
				bestIdx = i
			}
		}
	}
	if bestIdx < 0 {
		return Result{}
	}
	return r.resultFor(bestIdx, bestSim)
}

func (r *Router) resultFor(routeIdx int, similarity float64) Result {
	similarity = intent.ClampScore(similarity)
	route := r.routes[routeIdx]
	result := Result{
		RouteName:    route.Name,
		Category:     intent.ParseCategory(route.Category),
		SubIntent:    route.SubIntent,
		Similarity:   similarity,
		WorkflowType: intent.ParseWorkflowType(route.WorkflowType),
		RiskLevel:    intent.ParseRiskLevel(route.RiskLevel),
	}
	result.Matched = similarity >= r.threshold
	return result
}

// cosineSimilarity maps the cosine of the two vectors into [0,1]; negative
// cosines clamp to 0 so the similarity contract holds for any backend.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
