// Package server exposes the assistant over HTTP: the chat and history
// endpoints, customer validation, and the health and stats probes.
package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/msi-gate/assistant/internal/assistant"
	"github.com/msi-gate/assistant/internal/dblink"
	"github.com/msi-gate/assistant/internal/metrics"
	"github.com/msi-gate/assistant/internal/validation"
)

// Server wires the HTTP surface to the orchestrator and validation service.
type Server struct {
	engine    *gin.Engine
	orch      *assistant.Orchestrator
	validator *validation.Service
	collector *metrics.Collector
	link      *dblink.Manager
	logger    *slog.Logger
}

// Options configures the server. Validator and Link are optional; their
// endpoints degrade when absent.
type Options struct {
	Orchestrator *assistant.Orchestrator
	Validator    *validation.Service
	Collector    *metrics.Collector
	Link         *dblink.Manager
	Logger       *slog.Logger
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		orch:      opts.Orchestrator,
		validator: opts.Validator,
		collector: opts.Collector,
		link:      opts.Link,
		logger:    opts.Logger,
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for mounting and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(s.requestID())

	api := s.engine.Group("/api")
	api.POST("/assistant/chat", s.handleChat)
	api.GET("/assistant/history/:sessionId", s.handleHistory)
	api.DELETE("/assistant/history/:sessionId", s.handleClearHistory)
	api.POST("/customer-validation/validate", s.handleValidate)

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/stats", s.handleStats)
}

// requestID tags every request so log lines across the tool loop correlate.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

type chatPayload struct {
	Message        string   `json:"message"`
	SessionID      string   `json:"sessionId"`
	AllowedModules []string `json:"allowedModules"`
}

func (s *Server) handleChat(c *gin.Context) {
	var payload chatPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		fail(c, http.StatusBadRequest, "message is required")
		return
	}

	token := bearerToken(c.GetHeader("Authorization"))
	caller := callerFromToken(token)
	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = newSessionID(caller)
	}

	result, err := s.orch.Chat(c.Request.Context(), assistant.ChatRequest{
		CallerID:       caller,
		SessionID:      sessionID,
		Message:        payload.Message,
		AllowedModules: payload.AllowedModules,
		Token:          token,
	})
	if err != nil {
		s.logger.Error("chat failed", "session_id", sessionID, "error", err)
		fail(c, http.StatusInternalServerError, "the assistant could not process this message")
		return
	}

	ok(c, result)
}

func (s *Server) handleHistory(c *gin.Context) {
	sessionID := c.Param("sessionId")
	turns, err := s.orch.History(c.Request.Context(), sessionID)
	if err != nil {
		s.logger.Error("history load failed", "session_id", sessionID, "error", err)
		fail(c, http.StatusInternalServerError, "conversation history is unavailable")
		return
	}
	ok(c, gin.H{"session_id": sessionID, "turns": turns})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if err := s.orch.Clear(c.Request.Context(), sessionID); err != nil {
		s.logger.Error("history delete failed", "session_id", sessionID, "error", err)
		fail(c, http.StatusInternalServerError, "conversation history could not be deleted")
		return
	}
	ok(c, gin.H{"session_id": sessionID})
}

type validatePayload struct {
	CustomerName string `json:"customerName"`
}

func (s *Server) handleValidate(c *gin.Context) {
	if s.validator == nil {
		fail(c, http.StatusServiceUnavailable, "customer validation is not configured")
		return
	}

	var payload validatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.CustomerName) == "" {
		fail(c, http.StatusBadRequest, "customerName is required")
		return
	}

	started := time.Now()
	result, err := s.validator.ValidateCustomer(c.Request.Context(), payload.CustomerName)
	if err != nil {
		s.collector.RecordError(metrics.OpLinkQuery, time.Since(started))
		s.logger.Error("customer validation failed", "error", err)
		// The link manager's error text names the remote host and the usual
		// causes, which is what operators need to see.
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.collector.RecordTiming(metrics.OpLinkQuery, time.Since(started))

	ok(c, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.link != nil {
		body["link"] = s.link.State().String()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.collector.Snapshot())
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
