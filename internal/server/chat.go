package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type    string `json:"type"` // "message", "ask" or "claim"
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type     string             `json:"type"` // "response" or "error"
	UserID   string             `json:"user_id"`
	Content  string             `json:"content"`
	Route    pipeline.Route     `json:"route,omitempty"`
	Decision *decision.Decision `json:"decision,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendWS(conn, wsResponse{Type: "error", Content: "invalid message format"})
			continue
		}
		if req.Content == "" {
			s.sendWS(conn, wsResponse{Type: "error", UserID: req.UserID, Content: "content is required"})
			continue
		}
		if req.UserID == "" {
			req.UserID = defaultChatUser
		}

		preq := pipeline.Request{UserID: req.UserID, Query: req.Content}
		var res *pipeline.Result
		switch req.Type {
		case "", "message":
			res, err = s.orch.Handle(r.Context(), preq)
		case "ask":
			res, err = s.orch.Ask(r.Context(), preq)
		case "claim":
			res, err = s.orch.Adjudicate(r.Context(), preq)
		default:
			s.sendWS(conn, wsResponse{Type: "error", UserID: req.UserID, Content: "unknown message type: " + req.Type})
			continue
		}
		if err != nil {
			s.logger.Error("websocket request failed", zap.Error(err))
			s.sendWS(conn, wsResponse{Type: "error", UserID: req.UserID, Content: "internal error"})
			continue
		}

		s.sendWS(conn, wsResponse{
			Type:     "response",
			UserID:   req.UserID,
			Content:  reply(res),
			Route:    res.Route,
			Decision: res.Decision,
		})
	}
}

func (s *Server) sendWS(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
	}
}
