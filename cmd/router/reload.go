package main

import (
	"context"
	"sync/atomic"

	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/gateway"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/semantic"
)

// Swappable wrappers around the rule-driven components. Readers always see
// either the old prepped table or the new one, never a partial rebuild.

type patternLayer struct {
	p atomic.Pointer[classification.PatternMatcher]
}

func (l *patternLayer) swap(m *classification.PatternMatcher) { l.p.Store(m) }

func (l *patternLayer) Match(text string) classification.MatchResult {
	return l.p.Load().Match(text)
}

func (l *patternLayer) MatchAll(text string, topN int) []classification.MatchResult {
	return l.p.Load().MatchAll(text, topN)
}

type semanticLayer struct {
	p atomic.Pointer[semantic.Router]
}

func (l *semanticLayer) swap(r *semantic.Router) { l.p.Store(r) }

func (l *semanticLayer) Route(ctx context.Context, text string) semantic.Result {
	return l.p.Load().Route(ctx, text)
}

type completenessLayer struct {
	p atomic.Pointer[classification.CompletenessChecker]
}

func (l *completenessLayer) swap(c *classification.CompletenessChecker) { l.p.Store(c) }

func (l *completenessLayer) Check(category intent.Category, text string, collected map[string]string) (intent.CompletenessInfo, map[string]string) {
	return l.p.Load().Check(category, text, collected)
}

type swapHandler struct {
	h atomic.Value // gateway.SourceHandler
}

func (s *swapHandler) swap(h gateway.SourceHandler) { s.h.Store(h) }

func (s *swapHandler) Handle(ctx context.Context, req *intent.IncomingRequest) *intent.RoutingDecision {
	return s.h.Load().(gateway.SourceHandler).Handle(ctx, req)
}
