package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/laitim2001/itsm-intent-router/pkg/audit"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/metrics"
)

// Known source types. Machine sources take deterministic fast paths; the
// user source goes through the full classifier cascade.
const (
	SourceUser       = "user"
	SourceServiceNow = "servicenow"
	SourcePrometheus = "prometheus"
)

// Marker headers, checked in this order. A marker header wins over the
// request's declared source type so a mislabeled webhook still lands on
// the right fast path.
var markerHeaders = []struct {
	header string
	source string
}{
	{"X-ServiceNow-Instance", SourceServiceNow},
	{"X-Alertmanager-Instance", SourcePrometheus},
}

// SourceHandler turns one source's envelope into a routing decision.
// Handlers never return nil.
type SourceHandler interface {
	Handle(ctx context.Context, req *intent.IncomingRequest) *intent.RoutingDecision
}

// Gateway is the single entry point for all inbound signals. It identifies
// the source, dispatches to the matching handler, and guarantees a decision
// comes back even when a handler panics.
type Gateway struct {
	handlers      map[string]SourceHandler
	defaultSource string
	auditor       *audit.Logger
}

// New builds a gateway over the given handlers. defaultSource is assumed
// when neither a marker header nor a declared source type is present.
func New(handlers map[string]SourceHandler, defaultSource string, auditor *audit.Logger) *Gateway {
	if defaultSource == "" {
		defaultSource = SourceUser
	}
	return &Gateway{
		handlers:      handlers,
		defaultSource: defaultSource,
		auditor:       auditor,
	}
}

// Process routes one incoming request. It never returns nil and never
// panics: any handler failure degrades to an UNKNOWN/handoff decision with
// routing layer gateway_error.
func (g *Gateway) Process(ctx context.Context, req *intent.IncomingRequest) (decision *intent.RoutingDecision) {
	start := time.Now()
	source := g.identifySource(req)

	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("Gateway handler panic for source %s: %v", source, r)
			decision = intent.UnknownDecision(intent.LayerGatewayErr, "internal gateway error")
			metrics.RecordRequestError(source, "handler_panic")
		}
		elapsed := time.Since(start)
		decision.ProcessingTimeMs = elapsed.Milliseconds()
		decision.Metadata["source"] = source
		metrics.RecordGatewayRequest(source, handlingStatus(decision.RoutingLayer), elapsed.Seconds())
		if g.auditor != nil {
			g.auditor.RecordDecision(req.CorrelationID, req.Content, decision)
		}
	}()

	handler, ok := g.handlers[source]
	if !ok {
		logging.Warnf("No handler registered for source %s, falling back to %s", source, g.defaultSource)
		handler, ok = g.handlers[g.defaultSource]
		if !ok {
			return intent.UnknownDecision(intent.LayerGatewayErr, "no handler for source "+source)
		}
	}

	return handler.Handle(ctx, req)
}

// identifySource resolves the request source: marker headers first, then
// the declared source type, then the configured default.
func (g *Gateway) identifySource(req *intent.IncomingRequest) string {
	for _, marker := range markerHeaders {
		if headerValue(req.Headers, marker.header) != "" {
			return marker.source
		}
	}
	if req.SourceType != "" {
		return strings.ToLower(strings.TrimSpace(req.SourceType))
	}
	return g.defaultSource
}

func handlingStatus(layer string) string {
	switch layer {
	case intent.LayerServiceNow, intent.LayerPrometheus:
		return "fast_path"
	case intent.LayerGatewayErr:
		return "error"
	default:
		return "routed"
	}
}

// headerValue does a case-insensitive lookup; webhook senders are not
// consistent about header casing.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
