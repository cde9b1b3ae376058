// Package audit records every routing decision, layer escalation, and
// error as a structured entry keyed by correlation id. Entries are written
// for traceability only and are never read back by the decision logic.
package audit

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

// EventType classifies an audit entry.
type EventType string

const (
	EventDecision          EventType = "decision"
	EventPatternMatch      EventType = "pattern_match"
	EventLayerEscalation   EventType = "layer_escalation"
	EventDialogTurn        EventType = "dialog_turn"
	EventApprovalRequested EventType = "approval_requested"
	EventError             EventType = "error"
)

// Entry is one append-only audit record.
type Entry struct {
	CorrelationID    string                  `json:"correlation_id"`
	Timestamp        time.Time               `json:"timestamp"`
	EventType        EventType               `json:"event_type"`
	UserInput        string                  `json:"user_input,omitempty"`
	Decision         *intent.RoutingDecision `json:"routing_decision,omitempty"`
	Layer            string                  `json:"layer,omitempty"`
	ProcessingTimeMs int64                   `json:"processing_time_ms,omitempty"`
	Metadata         map[string]string       `json:"metadata,omitempty"`
}

// Logger writes audit entries through the structured logger. Construct one
// instance at process start and pass it to the components that audit;
// lifecycle is owned by the top-level assembly.
type Logger struct {
	logger     *zap.Logger
	truncateAt int
}

// NewLogger creates an audit logger with the configured input truncation.
func NewLogger(cfg config.AuditConfig) *Logger {
	return &Logger{
		logger:     logging.Logger().Named("audit"),
		truncateAt: cfg.TruncateInputAt,
	}
}

// Record writes one entry. User input is truncated to the configured bound
// so audit records never balloon on pasted logs.
func (l *Logger) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.UserInput = l.truncate(entry.UserInput)

	fields := []zap.Field{
		zap.String("correlation_id", entry.CorrelationID),
		zap.String("event_type", string(entry.EventType)),
		zap.Time("timestamp", entry.Timestamp),
	}
	if entry.UserInput != "" {
		fields = append(fields, zap.String("user_input", entry.UserInput))
	}
	if entry.Layer != "" {
		fields = append(fields, zap.String("layer", entry.Layer))
	}
	if entry.ProcessingTimeMs > 0 {
		fields = append(fields, zap.Int64("processing_time_ms", entry.ProcessingTimeMs))
	}
	if entry.Decision != nil {
		fields = append(fields,
			zap.String("intent_category", string(entry.Decision.IntentCategory)),
			zap.String("sub_intent", entry.Decision.SubIntent),
			zap.Float64("confidence", entry.Decision.Confidence),
			zap.String("risk_level", string(entry.Decision.RiskLevel)),
		)
	}
	if len(entry.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", entry.Metadata))
	}

	l.logger.Info("audit", fields...)
}

// RecordDecision audits an emitted routing decision.
func (l *Logger) RecordDecision(correlationID, input string, decision *intent.RoutingDecision) {
	l.Record(Entry{
		CorrelationID:    correlationID,
		EventType:        EventDecision,
		UserInput:        input,
		Decision:         decision,
		Layer:            decision.RoutingLayer,
		ProcessingTimeMs: decision.ProcessingTimeMs,
	})
}

// RecordPatternMatch audits an accepted pattern-layer match with the rule
// and pattern that produced it.
func (l *Logger) RecordPatternMatch(correlationID, ruleID, pattern string, confidence float64) {
	l.Record(Entry{
		CorrelationID: correlationID,
		EventType:     EventPatternMatch,
		Layer:         intent.LayerPattern,
		Metadata: map[string]string{
			"rule_id":    ruleID,
			"pattern":    pattern,
			"confidence": fmt.Sprintf("%.2f", confidence),
		},
	})
}

// RecordApprovalRequested audits a decision entering the human approval
// gate.
func (l *Logger) RecordApprovalRequested(correlationID string, decision *intent.RoutingDecision, approvalType string) {
	l.Record(Entry{
		CorrelationID: correlationID,
		EventType:     EventApprovalRequested,
		Decision:      decision,
		Metadata:      map[string]string{"approval_type": approvalType},
	})
}

// RecordEscalation audits a cascade layer escalation.
func (l *Logger) RecordEscalation(correlationID, fromLayer, toLayer, reason string) {
	l.Record(Entry{
		CorrelationID: correlationID,
		EventType:     EventLayerEscalation,
		Layer:         fromLayer,
		Metadata:      map[string]string{"next_layer": toLayer, "reason": reason},
	})
}

// RecordError audits a processing error.
func (l *Logger) RecordError(correlationID, stage string, err error) {
	l.Record(Entry{
		CorrelationID: correlationID,
		EventType:     EventError,
		Layer:         stage,
		Metadata:      map[string]string{"error": err.Error()},
	})
}

func (l *Logger) truncate(s string) string {
	if l.truncateAt <= 0 || len(s) <= l.truncateAt {
		return s
	}
	runes := []rune(s)
	if len(runes) <= l.truncateAt {
		return s
	}
	return string(runes[:l.truncateAt]) + "..."
}
