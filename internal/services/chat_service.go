// Package services orchestrates the chat flow: session bookkeeping,
// assistant invocation and the budget watcher side effect.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budgetf/internal/assistant"
	"budgetf/internal/core"
	"budgetf/internal/ledger"
	"budgetf/internal/log"
)

const (
	sessionTitleMax = 60
	historyDepth    = 20
)

// Assistant answers one user question given recent conversation turns.
// Both the Gemini orchestrator and the pattern fallback satisfy it.
type Assistant interface {
	Answer(ctx context.Context, userID int64, history []assistant.Message, latest string) string
}

// ChatReply is the outcome of one chat turn.
type ChatReply struct {
	SessionID int64
	Reply     string
}

// ChatService runs a chat turn end to end: validate the session, persist
// the user message, ask the assistant and persist its reply.
type ChatService struct {
	store     ledger.ChatStore
	assistant Assistant
	watcher   *BudgetWatcher
	timeout   time.Duration
}

func NewChatService(store ledger.ChatStore, asst Assistant, watcher *BudgetWatcher, timeout time.Duration) *ChatService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatService{store: store, assistant: asst, watcher: watcher, timeout: timeout}
}

// Ask processes one message. sessionID 0 starts a new session titled with
// the message's first words.
func (s *ChatService) Ask(ctx context.Context, userID, sessionID int64, message string) (ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatReply{}, core.ErrEmptyMessage
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if sessionID == 0 {
		id, err := s.store.CreateSession(ctx, userID, sessionTitle(message))
		if err != nil {
			return ChatReply{}, fmt.Errorf("create session: %w", err)
		}
		sessionID = id
	} else {
		owned, err := s.store.SessionOwnedBy(ctx, sessionID, userID)
		if err != nil {
			return ChatReply{}, fmt.Errorf("check session owner: %w", err)
		}
		if !owned {
			return ChatReply{}, core.ErrSessionNotFound
		}
	}

	history, err := s.store.RecentMessages(ctx, sessionID, historyDepth)
	if err != nil {
		return ChatReply{}, fmt.Errorf("load history: %w", err)
	}

	if err := s.store.AppendMessage(ctx, sessionID, "user", message); err != nil {
		return ChatReply{}, fmt.Errorf("save user message: %w", err)
	}

	reply := s.assistant.Answer(ctx, userID, toAssistantHistory(history), message)

	if err := s.store.AppendMessage(ctx, sessionID, "assistant", reply); err != nil {
		return ChatReply{}, fmt.Errorf("save assistant message: %w", err)
	}
	if err := s.store.TouchSession(ctx, sessionID); err != nil {
		slog.WarnContext(ctx, "Failed to touch session", log.FieldSessionID, sessionID, log.FieldError, err)
	}

	// Budget check runs after the reply and never blocks or fails it.
	if s.watcher != nil {
		go s.watcher.Check(context.WithoutCancel(ctx), userID)
	}

	return ChatReply{SessionID: sessionID, Reply: reply}, nil
}

// ListSessions returns the user's sessions, most recently active first.
func (s *ChatService) ListSessions(ctx context.Context, userID int64) ([]core.ChatSession, error) {
	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// SessionDetail returns one session with its full transcript.
func (s *ChatService) SessionDetail(ctx context.Context, sessionID, userID int64) (*core.ChatSession, []core.ChatMessage, error) {
	return s.store.SessionDetail(ctx, sessionID, userID)
}

func sessionTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= sessionTitleMax {
		return message
	}
	return string(runes[:sessionTitleMax])
}

func toAssistantHistory(msgs []core.ChatMessage) []assistant.Message {
	out := make([]assistant.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Sender == "assistant" {
			role = "model"
		}
		out = append(out, assistant.Message{Role: role, Text: m.Content})
	}
	return out
}
