// Package worker turns budget alert events into user notifications.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"budgetf/internal/amqp"
	"budgetf/internal/core"
	"budgetf/internal/log"
)

// Notifier delivers one rendered alert to the user. Delivery channels
// (in-app feed, email) implement it.
type Notifier interface {
	Notify(ctx context.Context, userID int64, title, body string) error
}

// AlertWorker handles budget alert messages from AMQP
type AlertWorker struct {
	notifier Notifier
}

func NewAlertWorker(notifier Notifier) *AlertWorker {
	return &AlertWorker{notifier: notifier}
}

// HandleAlertMessage renders and delivers a single budget alert.
func (w *AlertWorker) HandleAlertMessage(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	slog.InfoContext(ctx, "Processing budget alert",
		log.FieldUserID, msg.UserID,
		log.FieldMonth, msg.Month,
		log.FieldYear, msg.Year,
		"used_percent", msg.UsedPercent)

	title, body := renderAlert(msg)

	if w.notifier == nil {
		slog.WarnContext(ctx, "No notifier configured, logging alert only",
			log.FieldUserID, msg.UserID, "title", title)
		return nil
	}

	if err := w.notifier.Notify(ctx, msg.UserID, title, body); err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}

	slog.InfoContext(ctx, "Budget alert delivered",
		log.FieldUserID, msg.UserID,
		log.FieldMonth, msg.Month,
		log.FieldYear, msg.Year)
	return nil
}

func renderAlert(msg *amqp.BudgetAlertMessage) (title, body string) {
	label := fmt.Sprintf("tháng %d/%d", msg.Month, msg.Year)
	spent := formatAmount(msg.SpentAmount)
	limit := formatAmount(msg.LimitAmount)

	if msg.OverLimit {
		title = fmt.Sprintf("Vượt ngân sách %s", label)
		body = fmt.Sprintf("Bạn đã chi %s, vượt hạn mức %s của %s.", spent, limit, label)
		return title, body
	}
	title = fmt.Sprintf("Sắp chạm ngân sách %s", label)
	body = fmt.Sprintf("Bạn đã chi %s (%.1f%%) trên hạn mức %s của %s.",
		spent, msg.UsedPercent, limit, label)
	return title, body
}

// formatAmount renders a decimal string as VND, falling back to the raw
// string when the payload carries something unparsable.
func formatAmount(raw string) string {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return core.FormatVND(d)
}
