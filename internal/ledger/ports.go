// Package ledger computes the read-only aggregates the assistant answers
// from. Arithmetic stays in decimal form end to end; stores only filter
// and fetch rows.
package ledger

import (
	"context"

	"budgetf/internal/core"
)

// Reader is the outbound port every ledger store implements. All methods
// are scoped by owning user and must exclude soft-deleted transactions.
type Reader interface {
	// TransactionsInRange returns the user's non-deleted transactions
	// with civil date in the half-open interval [r.Start, r.End).
	TransactionsInRange(ctx context.Context, userID int64, r core.DateRange) ([]core.Transaction, error)

	// CategoriesVisibleTo returns global categories plus the user's own.
	CategoriesVisibleTo(ctx context.Context, userID int64) ([]core.Category, error)

	// WalletsOf returns the user's wallets, archived ones included.
	WalletsOf(ctx context.Context, userID int64) ([]core.Wallet, error)

	// GlobalBudget returns the user's global budget row for the month
	// starting at monthStart, or nil when none is set.
	GlobalBudget(ctx context.Context, userID int64, monthStart core.Date) (*core.Budget, error)
}

// ChatStore persists conversation state around the assistant call.
type ChatStore interface {
	CreateSession(ctx context.Context, userID int64, title string) (int64, error)
	SessionOwnedBy(ctx context.Context, sessionID, userID int64) (bool, error)
	AppendMessage(ctx context.Context, sessionID int64, sender, content string) error
	RecentMessages(ctx context.Context, sessionID int64, limit int) ([]core.ChatMessage, error)
	ListSessions(ctx context.Context, userID int64) ([]core.ChatSession, error)
	SessionDetail(ctx context.Context, sessionID, userID int64) (*core.ChatSession, []core.ChatMessage, error)
	TouchSession(ctx context.Context, sessionID int64) error
}
