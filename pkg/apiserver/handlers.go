package apiserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/dialog"
	"github.com/laitim2001/itsm-intent-router/pkg/gateway"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/risk"
)

// RouteRequest is the body of POST /api/v1/route.
type RouteRequest struct {
	Content    string                 `json:"content" binding:"required"`
	SourceType string                 `json:"source_type"`
	Payload    map[string]interface{} `json:"payload"`
	Context    *RiskContextRequest    `json:"context"`
}

// RiskContextRequest is the caller-supplied situational context for risk
// assessment. Weekend and business-hours flags are derived server-side.
type RiskContextRequest struct {
	Production      bool     `json:"production"`
	Urgent          bool     `json:"urgent"`
	UserRole        string   `json:"user_role"`
	AffectedSystems []string `json:"affected_systems"`
}

// RouteResponse pairs the routing decision with its risk assessment and,
// when sign-off is required, the approval request for the HITL gate.
type RouteResponse struct {
	Decision        *intent.RoutingDecision `json:"decision"`
	RiskAssessment  risk.Assessment         `json:"risk_assessment"`
	ApprovalRequest *risk.ApprovalRequest   `json:"approval_request,omitempty"`
}

// DialogStartRequest is the body of POST /api/v1/dialog/start.
type DialogStartRequest struct {
	Content string `json:"content" binding:"required"`
}

// DialogRespondRequest is the body of POST /api/v1/dialog/:id/respond.
type DialogRespondRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	incoming := intent.NewIncomingRequest(req.Content)
	incoming.SourceType = req.SourceType
	if req.Payload != nil {
		incoming.Payload = req.Payload
	}
	copyHeaders(incoming, c)

	decision := s.gw.Process(c.Request.Context(), incoming)
	c.JSON(http.StatusOK, s.assess(incoming.CorrelationID, decision, req.Context))
}

// assess runs the risk assessment over a decision and, when approval is
// required, builds the HITL envelope.
func (s *Server) assess(correlationID string, decision *intent.RoutingDecision, reqCtx *RiskContextRequest) RouteResponse {
	riskCtx := deriveRiskContext(reqCtx)
	assessment := s.assessor.Assess(decision, riskCtx)

	resp := RouteResponse{Decision: decision, RiskAssessment: assessment}
	if assessment.RequiresApproval {
		approval := risk.NewApprovalRequest(correlationID, decision, assessment)
		resp.ApprovalRequest = &approval
		if s.auditor != nil {
			s.auditor.RecordApprovalRequested(correlationID, decision, assessment.ApprovalType)
		}
	}
	return resp
}

// deriveRiskContext fills the time-derived flags and folds in the caller's
// declared context.
func deriveRiskContext(reqCtx *RiskContextRequest) risk.Context {
	now := time.Now()
	weekday := now.Weekday()
	riskCtx := risk.Context{
		Weekend:       weekday == time.Saturday || weekday == time.Sunday,
		BusinessHours: weekday != time.Saturday && weekday != time.Sunday && now.Hour() >= 9 && now.Hour() < 18,
	}
	if reqCtx != nil {
		riskCtx.Production = reqCtx.Production
		riskCtx.Urgent = reqCtx.Urgent
		riskCtx.UserRole = reqCtx.UserRole
		riskCtx.AffectedSystems = reqCtx.AffectedSystems
	}
	return riskCtx
}

// ExplainRequest is the body of POST /api/v1/route/explain.
type ExplainRequest struct {
	Content string `json:"content" binding:"required"`
}

// handleRouteExplain returns the pattern layer's ranked candidate matches
// for an input without emitting a decision. Intended for rule authoring and
// debugging.
func (s *Server) handleRouteExplain(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	candidates := []classification.MatchResult{}
	if s.inspector != nil {
		if found := s.inspector.MatchAll(req.Content, s.matchTopN); found != nil {
			candidates = found
		}
	}
	c.JSON(http.StatusOK, gin.H{"pattern_candidates": candidates})
}

// handleServiceNowWebhook accepts the raw ticket payload. The declared
// source pins the fast path even without the marker header.
func (s *Server) handleServiceNowWebhook(c *gin.Context) {
	s.handleWebhook(c, gateway.SourceServiceNow, "short_description")
}

// handleAlertmanagerWebhook accepts the raw Alertmanager payload.
func (s *Server) handleAlertmanagerWebhook(c *gin.Context) {
	s.handleWebhook(c, gateway.SourcePrometheus, "")
}

func (s *Server) handleWebhook(c *gin.Context, source, contentKey string) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	content := ""
	if contentKey != "" {
		if v, ok := payload[contentKey].(string); ok {
			content = v
		}
	}

	incoming := intent.NewIncomingRequest(content)
	incoming.SourceType = source
	incoming.Payload = payload
	copyHeaders(incoming, c)

	decision := s.gw.Process(c.Request.Context(), incoming)
	c.JSON(http.StatusOK, s.assess(incoming.CorrelationID, decision, nil))
}

func (s *Server) handleDialogStart(c *gin.Context) {
	var req DialogStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	resp, err := s.engine.StartDialog(c.Request.Context(), req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDialogRespond(c *gin.Context) {
	var req DialogRespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	resp, err := s.engine.ProcessResponse(c.Request.Context(), c.Param("conversation_id"), req.Content)
	if err != nil {
		if errors.Is(err, dialog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDialogGet(c *gin.Context) {
	state, err := s.engine.Get(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		if errors.Is(err, dialog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleDialogReset(c *gin.Context) {
	if err := s.engine.Reset(c.Request.Context(), c.Param("conversation_id")); err != nil {
		if errors.Is(err, dialog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) handleLayerStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

func copyHeaders(incoming *intent.IncomingRequest, c *gin.Context) {
	for name, values := range c.Request.Header {
		if len(values) > 0 {
			incoming.Headers[name] = values[0]
		}
	}
}
