package risk

import (
	"context"
	"time"

	"github.com/laitim2001/itsm-intent-router/pkg/intent"
)

// ApprovalRequest is the envelope handed to the external human-in-the-loop
// gate when an assessment requires sign-off. Delivery mechanics (chat,
// email) are the gate's concern, not the router's.
type ApprovalRequest struct {
	CorrelationID string                  `json:"correlation_id"`
	Decision      *intent.RoutingDecision `json:"decision"`
	Assessment    Assessment              `json:"assessment"`
	RequestedAt   time.Time               `json:"requested_at"`
}

// ApprovalResult is the gate's verdict.
type ApprovalResult struct {
	Approved   bool      `json:"approved"`
	ApprovedBy []string  `json:"approved_by,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// ApprovalGate is the external HITL collaborator contract. Implementations
// block until a verdict or ctx cancellation.
type ApprovalGate interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResult, error)
}

// NewApprovalRequest pairs a decision with its assessment for the gate.
func NewApprovalRequest(correlationID string, decision *intent.RoutingDecision, assessment Assessment) ApprovalRequest {
	return ApprovalRequest{
		CorrelationID: correlationID,
		Decision:      decision,
		Assessment:    assessment,
		RequestedAt:   time.Now().UTC(),
	}
}
