package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetf/internal/log"
)

// maxToolRounds bounds the generate -> execute -> feed-back loop. Three
// rounds cover every question the tool set can answer; anything deeper
// gets an apology instead of an unbounded model bill.
const maxToolRounds = 3

const defaultQuotaDelaySeconds = 60

// Vietnamese replies for the failure paths. These go to the user as-is.
const (
	replyQuota     = "Bạn đang bị giới hạn lượt gọi AI (quota). Vui lòng thử lại sau khoảng %d giây nhé."
	replyModelErr  = "Xin lỗi, hệ thống trợ lý đang gặp lỗi. Bạn thử lại sau nhé."
	replyRoundCap  = "Xin lỗi, câu hỏi này cần nhiều bước xử lý hơn. Bạn thử hỏi cụ thể hơn (tháng/năm, danh mục, ví) nhé."
	replyEmptyText = "Xin lỗi, mình chưa xử lý được câu hỏi này."
)

type (
	// Message is one turn of a conversation as the backend sees it. A
	// model turn may carry tool calls; a tool turn carries their results.
	Message struct {
		Role    string // "user", "model" or "tool"
		Text    string
		Calls   []ToolCall
		Results []ToolResult
	}

	// Turn is one model response: free text, tool calls, or both.
	Turn struct {
		Text  string
		Calls []ToolCall
	}

	// GenerateRequest is everything a backend needs for one generation.
	GenerateRequest struct {
		System   string
		Messages []Message
		Tools    []ToolSpec
	}
)

// Backend generates model turns. Implementations must return a
// *QuotaError (possibly wrapped) when the provider rejects the call for
// rate or quota reasons so the orchestrator can tell the user when to
// retry.
type Backend interface {
	Generate(ctx context.Context, req GenerateRequest) (Turn, error)
}

// QuotaError marks a provider-side rate or quota rejection. RetryAfter
// is zero when the provider did not say how long to wait.
type QuotaError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("model quota exhausted (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// Orchestrator drives the tool-calling conversation: it hands the model
// the closed tool set, executes whatever the model asks for, feeds the
// results back and stops at the first text-only turn.
type Orchestrator struct {
	backend Backend
	tools   *Registry
	system  string
	logger  *log.Logger
}

func NewOrchestrator(backend Backend, tools *Registry, system string, logger *log.Logger) *Orchestrator {
	return &Orchestrator{backend: backend, tools: tools, system: system, logger: logger}
}

// Answer resolves one user question. It never returns an error to the
// caller: every failure path collapses into a user-facing Vietnamese
// reply, because a chat box with a stack trace in it helps nobody.
func (o *Orchestrator) Answer(ctx context.Context, userID int64, history []Message, latest string) string {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Text: latest})

	specs := o.tools.Specs()
	for round := 0; round < maxToolRounds; round++ {
		turn, err := o.backend.Generate(ctx, GenerateRequest{
			System:   o.system,
			Messages: msgs,
			Tools:    specs,
		})
		if err != nil {
			return o.replyForError(ctx, err)
		}

		if len(turn.Calls) == 0 {
			if turn.Text == "" {
				return replyEmptyText
			}
			return turn.Text
		}

		results := o.executeAll(ctx, userID, turn.Calls)
		msgs = append(msgs,
			Message{Role: "model", Text: turn.Text, Calls: turn.Calls},
			Message{Role: "tool", Results: results},
		)
	}
	return replyRoundCap
}

// executeAll runs one round's tool calls concurrently, keeping results
// aligned with call order. Registry.Execute never fails, so the group
// never does either.
func (o *Orchestrator) executeAll(ctx context.Context, userID int64, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range calls {
		g.Go(func() error {
			o.logger.DebugContext(gctx, "executing tool call", log.FieldTool, c.Name)
			results[i] = o.tools.Execute(gctx, userID, c)
			return nil
		})
	}
	g.Wait()
	return results
}

func (o *Orchestrator) replyForError(ctx context.Context, err error) string {
	var quota *QuotaError
	if errors.As(err, &quota) {
		delay := defaultQuotaDelaySeconds
		if quota.RetryAfter > 0 {
			delay = int(quota.RetryAfter.Seconds())
		}
		o.logger.WarnContext(ctx, "model quota exhausted", "retry_after_s", delay)
		return fmt.Sprintf(replyQuota, delay)
	}
	o.logger.ErrorContext(ctx, "model generation failed", log.FieldError, err)
	return replyModelErr
}
