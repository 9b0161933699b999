// Package api exposes the engine over HTTP: message submission, session
// inspection, a WebSocket event stream, health, and metrics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/events"
	"github.com/triad-ai/triad/pkg/session"
	"github.com/triad-ai/triad/pkg/version"
)

// Server is the HTTP front of the engine.
type Server struct {
	svc      *session.Service
	bus      *events.Bus
	cfg      *config.Config
	registry *prometheus.Registry
	logger   *slog.Logger

	httpServer *http.Server
}

// NewServer wires the HTTP server. The prometheus registry may be nil, in
// which case /metrics is not mounted.
func NewServer(svc *session.Service, bus *events.Bus, cfg *config.Config, registry *prometheus.Registry, logger *slog.Logger) *Server {
	return &Server{
		svc:      svc,
		bus:      bus,
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/messages", s.postMessage)
		apiGroup.POST("/sessions/:id/messages", s.postSessionMessage)
		apiGroup.GET("/sessions/:id", s.getSession)
	}
	r.GET("/ws", s.handleWS)

	return r
}

// Start runs the HTTP server on the configured address. Blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// MessageRequest is the body for message submission.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
	AskID     string `json:"ask_id"`
}

// MessageResponse acknowledges an accepted message. Results arrive on the
// session's event stream.
type MessageResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// postMessage handles POST /api/messages. An empty session_id creates a
// fresh session.
func (s *Server) postMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.accept(c, req.SessionID, req.Message, req.AskID)
}

// postSessionMessage handles POST /api/sessions/:id/messages.
func (s *Server) postSessionMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.accept(c, c.Param("id"), req.Message, req.AskID)
}

func (s *Server) accept(c *gin.Context, sessionID, message, askID string) {
	id, err := s.svc.HandleMessage(sessionID, message, askID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrSessionBusy):
			status = http.StatusConflict
		case errors.Is(err, session.ErrAskMismatch):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "session_id": id})
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{SessionID: id, Status: "accepted"})
}

// SessionSummary is the inspection view of a session.
type SessionSummary struct {
	ID             string               `json:"id"`
	History        []SessionHistoryItem `json:"history"`
	PendingAskID   string               `json:"pending_ask_id,omitempty"`
	Questions      []string             `json:"questions,omitempty"`
	ActiveTaskID   string               `json:"active_task_id,omitempty"`
	PlanIterations int                  `json:"plan_iterations,omitempty"`
	TotalToolCalls int                  `json:"total_tool_calls,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	LastActivity   time.Time            `json:"last_activity"`
}

// SessionHistoryItem is one conversation turn in the summary.
type SessionHistoryItem struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// getSession handles GET /api/sessions/:id.
func (s *Server) getSession(c *gin.Context) {
	sess, err := s.svc.Manager().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	summary := SessionSummary{
		ID:           sess.ID,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
	}
	for _, h := range sess.History {
		summary.History = append(summary.History, SessionHistoryItem{Role: h.Role, Content: h.Content, At: h.At})
	}
	if sess.PendingAsk != nil {
		summary.PendingAskID = sess.PendingAsk.AskID
		summary.Questions = sess.PendingAsk.Questions
	}
	if sess.ActiveTask != nil {
		summary.ActiveTaskID = sess.ActiveTask.TaskID
		summary.PlanIterations = sess.ActiveTask.PlanIterations
		summary.TotalToolCalls = sess.ActiveTask.TotalToolCalls
	}
	c.JSON(http.StatusOK, summary)
}

// health handles GET /healthz.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  version.Full(),
		"sessions": s.svc.Manager().Count(),
	})
}
