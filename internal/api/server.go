// internal/api/server.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/empathy"
	"github.com/user/gardencalm/internal/reply"
	"github.com/user/gardencalm/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Generator produces the companion's reply for one analyzed message.
type Generator interface {
	Reply(ctx context.Context, text string, rc types.ReplyContext) (string, error)
}

// Server exposes the session engine over REST and websocket.
type Server struct {
	engine   *gin.Engine
	orch     *empathy.Orchestrator
	gen      Generator
	fallback *reply.TemplateGenerator
	hub      *Hub
	log      *slog.Logger
	http     *http.Server
}

func NewServer(orch *empathy.Orchestrator, gen Generator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		orch:     orch,
		gen:      gen,
		fallback: reply.NewTemplateGenerator(),
		hub:      NewHub(logger),
		log:      logger.With("component", "api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.POST("/chat", s.handleChat)
	api.POST("/meditation/accept", s.handleAccept)
	api.POST("/meditation/decline", s.handleDecline)
	api.GET("/readiness/:user_id", s.handleReadiness)
	api.GET("/recommendations/:user_id", s.handleRecommendations)
	api.GET("/scores/:user_id", s.handleScores)
	api.GET("/summary/:user_id", s.handleSummary)
	api.GET("/stats", s.handleStats)

	s.engine.GET("/ws/:user_id", s.handleWebSocket)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub exposes the websocket hub so deep-analysis results can be pushed to
// connected clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run blocks serving HTTP until Shutdown is called.
func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("http server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// DeliverInsight is registered with the delivery registry under the "api:"
// prefix. Insights reach the user's open websocket connections, if any.
func (s *Server) DeliverInsight(userID types.UserID, insight string) error {
	if n := s.hub.Push(userID, Event{Type: "insight", Text: insight}); n == 0 {
		s.log.Debug("insight had no connected recipients", "user", userID)
	}
	return nil
}

// apiUserID namespaces raw client ids so the delivery registry can route
// results back to this transport.
func apiUserID(raw string) types.UserID {
	if strings.Contains(raw, ":") {
		return types.UserID(raw)
	}
	return types.UserID("api:" + raw)
}

type chatRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

type chatResponse struct {
	Reply       string  `json:"reply"`
	Emotion     string  `json:"emotion"`
	EmotionName string  `json:"emotion_name"`
	Confidence  float64 `json:"confidence"`
	Fallback    bool    `json:"fallback,omitempty"`
	Suggestion  string  `json:"suggestion,omitempty"`
	Escalated   bool    `json:"escalated"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and text are required"})
		return
	}

	userID := apiUserID(req.UserID)
	result, err := s.orch.AnalyzeMessage(c.Request.Context(), userID, req.Text)
	if err != nil {
		s.log.Error("analyze failed", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	c.JSON(http.StatusOK, s.renderChat(c.Request.Context(), req.Text, result))
}

func (s *Server) renderChat(ctx context.Context, text string, result empathy.AnalysisResult) chatResponse {
	out, err := s.gen.Reply(ctx, text, result.Reply)
	if err != nil {
		s.log.Warn("reply generation failed, using template", "error", err)
		out, _ = s.fallback.Reply(ctx, text, result.Reply)
	}

	resp := chatResponse{
		Reply:       out,
		Emotion:     string(result.Classification.Code),
		EmotionName: emotion.Name(result.Classification.Code),
		Confidence:  result.Classification.Confidence,
		Fallback:    result.Classification.Fallback,
		Escalated:   result.Escalation.Escalate,
	}
	if result.Suggestion.Suggest {
		resp.Suggestion = reply.SuggestionText(result.Suggestion.Code)
	}
	return resp
}

type userRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) handleAccept(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	summary := s.orch.OnMeditationAccepted(c.Request.Context(), apiUserID(req.UserID))
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (s *Server) handleDecline(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	s.orch.OnMeditationDeclined(apiUserID(req.UserID))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadiness(c *gin.Context) {
	r := s.orch.Readiness(apiUserID(c.Param("user_id")))
	c.JSON(http.StatusOK, gin.H{
		"ready":  r.Ready,
		"reason": r.Reason,
		"score":  r.Score,
	})
}

func (s *Server) handleRecommendations(c *gin.Context) {
	limit := 3
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	recs := s.orch.Recommended(apiUserID(c.Param("user_id")), limit)
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (s *Server) handleScores(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scores": s.orch.Scores(apiUserID(c.Param("user_id")))})
}

func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"summary": s.orch.RequestLongSummary(apiUserID(c.Param("user_id")))})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.orch.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
