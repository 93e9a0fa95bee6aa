package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/history"
	"github.com/ziadkadry99/claimwise/internal/pipeline"
	"github.com/ziadkadry99/claimwise/internal/query"
)

// queryRequest accepts the question under either key.
type queryRequest struct {
	Question string `json:"question"`
	Query    string `json:"query"`
	UserID   string `json:"user_id"`
}

func (q queryRequest) text() string {
	if q.Question != "" {
		return q.Question
	}
	return q.Query
}

type queryResponse struct {
	Answer         string                `json:"answer"`
	ParsedQuery    query.StructuredQuery `json:"parsed_query"`
	SearchStrategy []string              `json:"search_strategy"`
}

type claimResponse struct {
	Decision decision.Decision `json:"decision"`
	Summary  string            `json:"summary"`
	Status   string            `json:"status"`
}

type comprehensiveResponse struct {
	Type     string             `json:"type"`
	Answer   string             `json:"answer"`
	Decision *decision.Decision `json:"decision,omitempty"`
	Summary  string             `json:"summary,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id"`
}

type historyResponse struct {
	UserID        string            `json:"user_id"`
	History       []history.Message `json:"history"`
	TotalMessages int               `json:"total_messages"`
}

type clearResponse struct {
	UserID  string `json:"user_id"`
	Cleared bool   `json:"cleared"`
	Message string `json:"message"`
}

type usersResponse struct {
	ActiveUsers []string `json:"active_users"`
	TotalUsers  int      `json:"total_users"`
}

const defaultChatUser = "default"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "claimwise policy assistant is running",
		"status":  "active",
		"model":   s.cfg.Model,
		"health":  "/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"model":     s.cfg.Model,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.orch.Ask(r.Context(), pipeline.Request{UserID: req.UserID, Query: req.text()})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:         res.Answer,
		ParsedQuery:    res.Structured,
		SearchStrategy: res.Phrases,
	})
}

func (s *Server) handleClaimDecision(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.orch.Adjudicate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		Decision: *res.Decision,
		Summary:  res.Summary,
		Status:   "success",
	})
}

func (s *Server) handleQueryWithDecision(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.orch.HandleWithDecision(r.Context(), pipeline.Request{UserID: req.UserID, Query: req.text()})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comprehensiveResponse{
		Type:     res.Type,
		Answer:   res.Answer,
		Decision: res.Decision,
		Summary:  res.Summary,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = defaultChatUser
	}

	res, err := s.orch.Handle(r.Context(), pipeline.Request{UserID: req.UserID, Query: req.Message})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  reply(res),
		Timestamp: time.Now().Format(time.RFC3339),
		UserID:    req.UserID,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	store := s.orch.History()
	if store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history not configured"})
		return
	}
	userID := chi.URLParam(r, "user_id")

	msgs, err := store.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		UserID:        userID,
		History:       msgs,
		TotalMessages: len(msgs),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	store := s.orch.History()
	if store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history not configured"})
		return
	}
	userID := chi.URLParam(r, "user_id")

	cleared, err := store.Clear(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	msg := "No history found for user"
	if cleared {
		msg = "Conversation history cleared successfully!"
	}
	writeJSON(w, http.StatusOK, clearResponse{UserID: userID, Cleared: cleared, Message: msg})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users := []string{}
	if store := s.orch.History(); store != nil {
		list, err := store.Users(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		users = append(users, list...)
	}

	writeJSON(w, http.StatusOK, usersResponse{ActiveUsers: users, TotalUsers: len(users)})
}

// reply is the text shown to a chat user for a result.
func reply(res *pipeline.Result) string {
	if res.Answer != "" {
		return res.Answer
	}
	return res.Summary
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrEmptyQuery) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
