package gateway

import (
	"context"
	"strings"

	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// IntentRouter is the classifier cascade the user path delegates to.
type IntentRouter interface {
	Route(ctx context.Context, text, correlationID string) *intent.RoutingDecision
}

// UserHandler normalizes free-form user text and delegates to the full
// classifier cascade. It never classifies on its own.
type UserHandler struct {
	router         IntentRouter
	maxInputLength int
}

// NewUserHandler builds the user-source handler. maxInputLength caps the
// normalized input in runes; zero or negative disables the cap.
func NewUserHandler(router IntentRouter, maxInputLength int) *UserHandler {
	return &UserHandler{router: router, maxInputLength: maxInputLength}
}

// Handle normalizes the content and routes it through the cascade.
func (h *UserHandler) Handle(ctx context.Context, req *intent.IncomingRequest) *intent.RoutingDecision {
	text, truncated := h.normalize(req.Content)

	decision := h.router.Route(ctx, text, req.CorrelationID)
	if truncated {
		logging.Warnf("User input truncated to %d runes for request %s", h.maxInputLength, req.CorrelationID)
		decision.Metadata["input_truncated"] = "true"
	}
	return decision
}

// normalize collapses internal whitespace runs to single spaces, trims, and
// caps the length. Whitespace collapse keeps regex patterns and lexical
// similarity stable across copy-pasted tickets with odd formatting.
func (h *UserHandler) normalize(content string) (string, bool) {
	text := strings.Join(strings.Fields(content), " ")
	runes := []rune(text)
	if h.maxInputLength > 0 && len(runes) > h.maxInputLength {
		return string(runes[:h.maxInputLength]), true
	}
	return text, false
}
