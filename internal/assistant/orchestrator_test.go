package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"budgetf/internal/log"
)

type fakeBackend struct {
	turns []Turn
	err   error
	reqs  []GenerateRequest
}

func (f *fakeBackend) Generate(_ context.Context, req GenerateRequest) (Turn, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return Turn{}, f.err
	}
	if len(f.turns) == 0 {
		return Turn{Text: "hết lượt"}, nil
	}
	t := f.turns[0]
	f.turns = f.turns[1:]
	return t, nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{
		Component: log.ComponentAssistant,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

func newTestOrchestrator(b Backend) *Orchestrator {
	reg, _ := registryFixture()
	return NewOrchestrator(b, reg, "trợ lý tài chính", quietLogger())
}

func TestAnswerToolRoundThenText(t *testing.T) {
	backend := &fakeBackend{turns: []Turn{
		{Calls: []ToolCall{{ID: "1", Name: ToolMonthlyIncomeExpense, Args: []byte(`{}`)}}},
		{Text: "Tháng này bạn chi 70.000₫."},
	}}
	o := newTestOrchestrator(backend)

	got := o.Answer(context.Background(), 1, nil, "tháng này chi bao nhiêu?")
	if got != "Tháng này bạn chi 70.000₫." {
		t.Errorf("answer = %q", got)
	}
	if len(backend.reqs) != 2 {
		t.Fatalf("backend called %d times, want 2", len(backend.reqs))
	}

	second := backend.reqs[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != "tool" || len(last.Results) != 1 {
		t.Errorf("last message should carry the tool result, got role=%q results=%d", last.Role, len(last.Results))
	}
	if last.Results[0].Payload["total_expense"] != "70000" {
		t.Errorf("tool payload not fed back: %v", last.Results[0].Payload)
	}
}

func TestAnswerParallelCallsKeepOrder(t *testing.T) {
	backend := &fakeBackend{turns: []Turn{
		{Calls: []ToolCall{
			{ID: "1", Name: ToolTotalBalance, Args: []byte(`{}`)},
			{ID: "2", Name: ToolMonthlyIncomeExpense, Args: []byte(`{}`)},
		}},
		{Text: "xong"},
	}}
	o := newTestOrchestrator(backend)

	o.Answer(context.Background(), 1, nil, "tổng quan tài chính?")
	results := backend.reqs[1].Messages[len(backend.reqs[1].Messages)-1].Results
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Call.Name != ToolTotalBalance || results[1].Call.Name != ToolMonthlyIncomeExpense {
		t.Errorf("results out of call order: %s, %s", results[0].Call.Name, results[1].Call.Name)
	}
}

func TestAnswerRoundCap(t *testing.T) {
	loop := Turn{Calls: []ToolCall{{ID: "1", Name: ToolTotalBalance, Args: []byte(`{}`)}}}
	backend := &fakeBackend{turns: []Turn{loop, loop, loop, loop}}
	o := newTestOrchestrator(backend)

	got := o.Answer(context.Background(), 1, nil, "vòng lặp")
	if got != replyRoundCap {
		t.Errorf("answer = %q, want round-cap apology", got)
	}
	if len(backend.reqs) != maxToolRounds {
		t.Errorf("backend called %d times, want %d", len(backend.reqs), maxToolRounds)
	}
}

func TestAnswerQuotaWithRetryDelay(t *testing.T) {
	backend := &fakeBackend{err: &QuotaError{RetryAfter: 53 * time.Second, Err: errors.New("429")}}
	o := newTestOrchestrator(backend)

	got := o.Answer(context.Background(), 1, nil, "?")
	if got != fmt.Sprintf(replyQuota, 53) {
		t.Errorf("answer = %q", got)
	}
}

func TestAnswerQuotaDefaultDelay(t *testing.T) {
	backend := &fakeBackend{err: &QuotaError{Err: errors.New("429")}}
	o := newTestOrchestrator(backend)

	got := o.Answer(context.Background(), 1, nil, "?")
	if !strings.Contains(got, "60 giây") {
		t.Errorf("answer = %q, want default 60s delay", got)
	}
}

func TestAnswerWrappedQuotaError(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("generate: %w", &QuotaError{RetryAfter: 10 * time.Second, Err: errors.New("quota")})}
	o := newTestOrchestrator(backend)

	got := o.Answer(context.Background(), 1, nil, "?")
	if got != fmt.Sprintf(replyQuota, 10) {
		t.Errorf("wrapped quota error not classified: %q", got)
	}
}

func TestAnswerGenericError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	o := newTestOrchestrator(backend)

	got := o.Answer(context.Background(), 1, nil, "?")
	if got != replyModelErr {
		t.Errorf("answer = %q", got)
	}
}

func TestAnswerEmptyModelText(t *testing.T) {
	backend := &fakeBackend{turns: []Turn{{Text: ""}}}
	o := newTestOrchestrator(backend)

	got := o.Answer(context.Background(), 1, nil, "?")
	if got != replyEmptyText {
		t.Errorf("answer = %q", got)
	}
}
