// Package storage is the SQLite persistence layer. Money columns are
// stored as decimal strings and summed in Go; SQLite's numeric SUM works
// in floats and would drift on large VND amounts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"budgetf/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// TransactionsInRange implements ledger.Reader. ISO dates compare
// lexicographically, so the half-open interval maps straight to >= and <.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, userID int64, rng core.DateRange) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, wallet_id, amount, date, description
		FROM transactions
		WHERE user_id = ? AND deleted_at IS NULL AND date >= ? AND date < ?
		ORDER BY date, id`,
		userID, rng.Start.ISO(), rng.End.ISO())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx      core.Transaction
			amount  string
			dateISO string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.CategoryID, &tx.WalletID, &amount, &dateISO, &tx.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount of transaction %d: %w", tx.ID, err)
		}
		if tx.Date, err = core.ParseDate(dateISO); err != nil {
			return nil, fmt.Errorf("parse date of transaction %d: %w", tx.ID, err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CategoriesVisibleTo(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, parent_id, user_id
		FROM categories
		WHERE user_id IS NULL OR user_id = ?
		ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c        core.Category
			typ      string
			parentID sql.NullInt64
			ownerID  sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &parentID, &ownerID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(typ)
		if parentID.Valid {
			c.ParentID = &parentID.Int64
		}
		if ownerID.Valid {
			c.UserID = &ownerID.Int64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) WalletsOf(ctx context.Context, userID int64) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, balance, archived
		FROM wallets
		WHERE user_id = ?
		ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		var (
			w       core.Wallet
			balance string
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &balance, &w.Archived); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		if w.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse balance of wallet %d: %w", w.ID, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GlobalBudget(ctx context.Context, userID int64, monthStart core.Date) (*core.Budget, error) {
	var (
		b        core.Budget
		monthISO string
		limit    string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, month, limit_amount, alert_threshold, notify_in_app, notify_email
		FROM budgets
		WHERE user_id = ? AND month = ?`,
		userID, monthStart.ISO()).
		Scan(&b.ID, &b.UserID, &monthISO, &limit, &b.AlertThreshold, &b.NotifyInApp, &b.NotifyEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query budget: %w", err)
	}
	if b.Month, err = core.ParseDate(monthISO); err != nil {
		return nil, fmt.Errorf("parse budget month: %w", err)
	}
	if b.LimitAmount, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("parse budget limit: %w", err)
	}
	return &b, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, userID int64, title string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		userID, title, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) SessionOwnedBy(ctx context.Context, sessionID, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query session owner: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) AppendMessage(ctx context.Context, sessionID int64, sender, content string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, sender, content, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, sender, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecentMessages returns the last limit messages in chronological order.
func (r *SQLiteRepository) RecentMessages(ctx context.Context, sessionID int64, limit int) ([]core.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, sender, content, created_at FROM (
			SELECT id, session_id, sender, content, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, userID int64) ([]core.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []core.ChatSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SessionDetail(ctx context.Context, sessionID, userID int64) (*core.ChatSession, []core.ChatMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions
		WHERE id = ? AND user_id = ?`,
		sessionID, userID)

	var (
		sess      core.ChatSession
		createdAt string
		updatedAt string
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, sender, content, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, nil, err
	}
	return &sess, msgs, nil
}

func (r *SQLiteRepository) TouchSession(ctx context.Context, sessionID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

type sessionScanner interface {
	Scan(dest ...any) error
}

func scanSession(row sessionScanner) (core.ChatSession, error) {
	var (
		sess      core.ChatSession
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &createdAt, &updatedAt); err != nil {
		return core.ChatSession{}, fmt.Errorf("scan session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return sess, nil
}

func scanMessages(rows *sql.Rows) ([]core.ChatMessage, error) {
	var out []core.ChatMessage
	for rows.Next() {
		var (
			m         core.ChatMessage
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
