package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

type (
	CategoryType string

	// Date is a civil date: year, month, day with no time-of-day attached.
	// "Today" computations interpret it against one configured reference
	// timezone, never the host's local zone.
	Date struct {
		time.Time
	}

	// Category is a node in the category tree. ParentID is nil for roots.
	// UserID is nil for global/shared categories visible to every user.
	Category struct {
		ID       int64
		Name     string
		Type     CategoryType
		ParentID *int64
		UserID   *int64
	}

	Wallet struct {
		ID       int64
		UserID   int64
		Name     string
		Balance  decimal.Decimal
		Archived bool
	}

	// Transaction is one ledger row. Soft-deleted rows never reach this
	// type: stores exclude them at read time.
	Transaction struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		WalletID    int64
		Amount      decimal.Decimal
		Date        Date
		Description string
	}

	// Budget is the global monthly budget row (no category or wallet
	// scope). Month is the first civil day of the budgeted month.
	Budget struct {
		ID             int64
		UserID         int64
		Month          Date
		LimitAmount    decimal.Decimal
		AlertThreshold int
		NotifyInApp    bool
		NotifyEmail    bool
	}

	ChatMessage struct {
		ID        int64
		SessionID int64
		Sender    string // "user" or "assistant"
		Content   string
		CreatedAt time.Time
	}

	ChatSession struct {
		ID        int64
		UserID    int64
		Title     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

var (
	ErrInvalidMonth    = errors.New("month must be between 1 and 12")
	ErrInvalidYear     = errors.New("year out of range")
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrInvalidRange    = errors.New("range end must be after start")
	ErrEmptyMessage    = errors.New("empty message")
	ErrSessionNotFound = errors.New("chat session not found")
)

// NewDate builds a civil date. The zone carried on the inner time.Time is
// always UTC; range comparisons only ever use the Y/M/D triple.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a strict ISO YYYY-MM-DD civil date. Anything else,
// including coercible variants like "2024-1-5", is rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Before reports whether d falls strictly before other in civil order.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// InRange reports whether d lies in the half-open interval [start, end).
func (d Date) InRange(start, end Date) bool {
	return !d.Time.Before(start.Time) && d.Time.Before(end.Time)
}

// AddDays returns the civil date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Time.Format("2006-01-02")
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("empty category name")
	}
	switch c.Type {
	case Income, Expense:
		return nil
	default:
		return errors.New("invalid category type")
	}
}

// VisibleTo reports whether the category belongs to the user's candidate
// set: global categories plus the user's own.
func (c Category) VisibleTo(userID int64) bool {
	return c.UserID == nil || *c.UserID == userID
}
