// Package memory is an in-memory ledger and chat store. It backs unit
// tests and the "memory" data backend used for local development without
// SQLite.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"budgetf/internal/core"
)

type Store struct {
	mu sync.RWMutex

	Categories   []core.Category
	Wallets      []core.Wallet
	Transactions []core.Transaction
	Budgets      []core.Budget

	sessions  map[int64]*core.ChatSession
	messages  map[int64][]core.ChatMessage
	nextID    int64
	nextMsgID int64
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*core.ChatSession),
		messages: make(map[int64][]core.ChatMessage),
		nextID:   1,
	}
}

func (s *Store) TransactionsInRange(ctx context.Context, userID int64, r core.DateRange) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.Transactions {
		if tx.UserID == userID && tx.Date.InRange(r.Start, r.End) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) CategoriesVisibleTo(ctx context.Context, userID int64) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Category
	for _, c := range s.Categories {
		if c.VisibleTo(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) WalletsOf(ctx context.Context, userID int64) ([]core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Wallet
	for _, w := range s.Wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) GlobalBudget(ctx context.Context, userID int64, monthStart core.Date) (*core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.Budgets {
		if b.UserID == userID && b.Month.ISO() == monthStart.ISO() {
			budget := b
			return &budget, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateSession(ctx context.Context, userID int64, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	now := time.Now()
	s.sessions[id] = &core.ChatSession{ID: id, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (s *Store) SessionOwnedBy(ctx context.Context, sessionID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return ok && sess.UserID == userID, nil
}

func (s *Store) AppendMessage(ctx context.Context, sessionID int64, sender, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMsgID++
	s.messages[sessionID] = append(s.messages[sessionID], core.ChatMessage{
		ID:        s.nextMsgID,
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, sessionID int64, limit int) ([]core.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]core.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *Store) ListSessions(ctx context.Context, userID int64) ([]core.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ChatSession
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) SessionDetail(ctx context.Context, sessionID, userID int64) (*core.ChatSession, []core.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, nil, core.ErrSessionNotFound
	}
	copySess := *sess
	msgs := make([]core.ChatMessage, len(s.messages[sessionID]))
	copy(msgs, s.messages[sessionID])
	return &copySess, msgs, nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.UpdatedAt = time.Now()
	}
	return nil
}
