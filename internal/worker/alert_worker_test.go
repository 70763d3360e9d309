package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"budgetf/internal/amqp"
)

type fakeNotifier struct {
	err    error
	userID int64
	title  string
	body   string
	calls  int
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, title, body string) error {
	f.calls++
	f.userID = userID
	f.title = title
	f.body = body
	return f.err
}

func TestHandleAlertMessageThreshold(t *testing.T) {
	n := &fakeNotifier{}
	w := NewAlertWorker(n)
	msg := amqp.NewBudgetAlertMessage(7, 3, 2025, "1000000", "850000", 85.0, 80, false)

	if err := w.HandleAlertMessage(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.calls != 1 || n.userID != 7 {
		t.Fatalf("notifier calls=%d user=%d", n.calls, n.userID)
	}
	if !strings.Contains(n.title, "Sắp chạm") || !strings.Contains(n.title, "tháng 3/2025") {
		t.Errorf("title = %q", n.title)
	}
	if !strings.Contains(n.body, "850.000₫") || !strings.Contains(n.body, "85.0%") {
		t.Errorf("body = %q", n.body)
	}
}

func TestHandleAlertMessageOverLimit(t *testing.T) {
	n := &fakeNotifier{}
	w := NewAlertWorker(n)
	msg := amqp.NewBudgetAlertMessage(7, 3, 2025, "1000000", "1200000", 120.0, 80, true)

	if err := w.HandleAlertMessage(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(n.title, "Vượt ngân sách") {
		t.Errorf("title = %q", n.title)
	}
	if !strings.Contains(n.body, "1.200.000₫") || !strings.Contains(n.body, "1.000.000₫") {
		t.Errorf("body = %q", n.body)
	}
}

func TestHandleAlertMessageDeliveryFailure(t *testing.T) {
	n := &fakeNotifier{err: errors.New("smtp down")}
	w := NewAlertWorker(n)
	msg := amqp.NewBudgetAlertMessage(7, 3, 2025, "1000000", "900000", 90.0, 80, false)

	if err := w.HandleAlertMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error so the delivery gets requeued")
	}
}

func TestHandleAlertMessageWithoutNotifier(t *testing.T) {
	w := NewAlertWorker(nil)
	msg := amqp.NewBudgetAlertMessage(7, 3, 2025, "1000000", "900000", 90.0, 80, false)

	if err := w.HandleAlertMessage(context.Background(), msg); err != nil {
		t.Fatalf("nil notifier should log and succeed, got %v", err)
	}
}
