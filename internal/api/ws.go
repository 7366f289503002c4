// internal/api/ws.go
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/gardencalm/internal/reply"
	"github.com/user/gardencalm/internal/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 1 << 16
)

type wsFrame struct {
	Text string `json:"text"`
}

func (s *Server) handleWebSocket(c *gin.Context) {
	userID := apiUserID(c.Param("user_id"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "user", userID, "error", err)
		return
	}

	cl := &client{conn: conn, send: make(chan Event, clientSendBuffer)}
	s.hub.register(userID, cl)
	s.log.Info("websocket connected", "user", userID)

	go s.writePump(cl)
	s.readPump(userID, cl)
}

func (s *Server) writePump(cl *client) {
	for ev := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := cl.conn.WriteJSON(ev); err != nil {
			break
		}
	}
	cl.conn.Close()
}

func (s *Server) readPump(userID types.UserID, cl *client) {
	defer func() {
		s.hub.unregister(userID, cl)
		cl.conn.Close()
		s.log.Info("websocket disconnected", "user", userID)
	}()

	cl.conn.SetReadLimit(wsReadLimit)
	for {
		var frame wsFrame
		if err := cl.conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Text == "" {
			continue
		}
		s.handleWSMessage(userID, frame.Text)
	}
}

func (s *Server) handleWSMessage(userID types.UserID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := s.orch.AnalyzeMessage(ctx, userID, text)
	if err != nil {
		s.log.Error("analyze failed", "user", userID, "error", err)
		s.hub.Push(userID, Event{Type: "error", Text: "analysis failed"})
		return
	}

	resp := s.renderChat(ctx, text, result)
	s.hub.Push(userID, Event{
		Type:       "reply",
		Text:       resp.Reply,
		Emotion:    resp.Emotion,
		Confidence: resp.Confidence,
	})
	if result.Suggestion.Suggest {
		s.hub.Push(userID, Event{Type: "suggestion", Text: reply.SuggestionText(result.Suggestion.Code)})
	}
}
