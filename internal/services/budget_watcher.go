package services

import (
	"context"
	"log/slog"
	"time"

	"budgetf/internal/amqp"
	"budgetf/internal/core"
	"budgetf/internal/ledger"
	"budgetf/internal/log"
)

// AlertPublisher pushes budget alert events toward the notification
// worker. The AMQP client satisfies it.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// BudgetWatcher checks the current month's budget usage after a chat
// turn and publishes an alert when spend crossed the user's threshold.
// Everything here is best effort: failures are logged and swallowed.
type BudgetWatcher struct {
	agg       *ledger.Aggregator
	publisher AlertPublisher
	now       func() time.Time
	loc       *time.Location
}

func NewBudgetWatcher(agg *ledger.Aggregator, publisher AlertPublisher, now func() time.Time, loc *time.Location) *BudgetWatcher {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BudgetWatcher{agg: agg, publisher: publisher, now: now, loc: loc}
}

// Check evaluates the current month and publishes at most one alert.
func (w *BudgetWatcher) Check(ctx context.Context, userID int64) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rng := core.MonthRange(w.now(), w.loc, 0)
	usage, err := w.agg.GlobalBudgetUsage(ctx, userID, rng)
	if err != nil {
		slog.ErrorContext(ctx, "Budget check failed", log.FieldUserID, userID, log.FieldError, err)
		return
	}
	if usage == nil || !usage.OverThreshold {
		return
	}
	if !usage.Budget.NotifyInApp && !usage.Budget.NotifyEmail {
		return
	}

	if w.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping budget alert",
			log.FieldUserID, userID)
		return
	}

	msg := amqp.NewBudgetAlertMessage(
		userID,
		rng.Month,
		rng.Year,
		usage.Budget.LimitAmount.String(),
		usage.Spent.String(),
		usage.UsedPercent,
		usage.Budget.AlertThreshold,
		usage.OverLimit,
	)
	if err := w.publisher.PublishBudgetAlert(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alert",
			log.FieldUserID, userID, log.FieldError, err)
	}
}
