package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/laitim2001/itsm-intent-router/pkg/audit"
	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/dialog"
	"github.com/laitim2001/itsm-intent-router/pkg/gateway"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
	"github.com/laitim2001/itsm-intent-router/pkg/risk"
	"github.com/laitim2001/itsm-intent-router/pkg/router"
)

// PatternInspector exposes the pattern layer's ranked candidates for the
// explain endpoint.
type PatternInspector interface {
	MatchAll(text string, topN int) []classification.MatchResult
}

// Server is the HTTP surface of the router: routing, webhook fast paths,
// guided dialog, and operational introspection.
type Server struct {
	gw        *gateway.Gateway
	engine    *dialog.Engine
	assessor  *risk.Assessor
	stats     *router.LayerStats
	inspector PatternInspector
	matchTopN int
	auditor   *audit.Logger
	http      *http.Server
}

// New assembles the server and its routes.
func New(gw *gateway.Gateway, engine *dialog.Engine, assessor *risk.Assessor, stats *router.LayerStats, inspector PatternInspector, matchTopN int, auditor *audit.Logger, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		gw:        gw,
		engine:    engine,
		assessor:  assessor,
		stats:     stats,
		inspector: inspector,
		matchTopN: matchTopN,
		auditor:   auditor,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/route", s.handleRoute)
		v1.POST("/route/explain", s.handleRouteExplain)
		v1.POST("/webhook/servicenow", s.handleServiceNowWebhook)
		v1.POST("/webhook/alertmanager", s.handleAlertmanagerWebhook)

		v1.POST("/dialog/start", s.handleDialogStart)
		v1.POST("/dialog/:conversation_id/respond", s.handleDialogRespond)
		v1.GET("/dialog/:conversation_id", s.handleDialogGet)
		v1.DELETE("/dialog/:conversation_id", s.handleDialogReset)

		v1.GET("/metrics/layers", s.handleLayerStats)
	}

	return s
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	logging.Infof("API server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestLogger logs one line per request after completion.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debugf("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
