package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"budgetf/internal/core"
)

type chatRequest struct {
	SessionID int64  `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID int64  `json:"session_id"`
	Reply     string `json:"reply"`
}

type sessionSummary struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type messageView struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type sessionDetailView struct {
	Session  sessionSummary `json:"session"`
	Messages []messageView  `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := s.chat.Ask(r.Context(), userID, req.SessionID, req.Message)
	switch {
	case errors.Is(err, core.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	case errors.Is(err, core.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{SessionID: reply.SessionID, Reply: reply.Reply})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	sessions, err := s.chat.ListSessions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionSummary(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	sessionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sess, msgs, err := s.chat.SessionDetail(r.Context(), sessionID, userID)
	if errors.Is(err, core.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	view := sessionDetailView{Session: toSessionSummary(*sess)}
	for _, m := range msgs {
		view.Messages = append(view.Messages, messageView{
			ID:        m.ID,
			Sender:    m.Sender,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func toSessionSummary(sess core.ChatSession) sessionSummary {
	return sessionSummary{
		ID:        sess.ID,
		Title:     sess.Title,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt: sess.UpdatedAt.Format(time.RFC3339),
	}
}
