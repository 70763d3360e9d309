package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"budgetf/internal/core"
	"budgetf/internal/ledger"
)

// Names of every tool the model may call. The set is closed: the registry
// is built once at startup and Execute rejects anything else.
const (
	ToolMonthlyIncomeExpense = "get_monthly_income_expense"
	ToolBudgetStatusMonth    = "get_budget_status_total_month"
	ToolTotalBalance         = "get_total_balance"
	ToolWalletBalanceByName  = "get_wallet_balance_by_name"
	ToolTopExpenseCategories = "get_top_expense_categories"
	ToolExpenseInRange       = "get_expense_in_range"
	ToolSpendingByCategories = "get_spending_by_categories"
	ToolTopBigExpenses       = "get_top_big_expenses"
	ToolTopBigIncomes        = "get_top_big_incomes"
	ToolTopSpendingWallet    = "get_top_spending_wallet"
)

const (
	defaultTopCategories   = 5
	defaultTopTransactions = 3
	maxListLimit           = 20
	maxMonthOffset         = 240
)

type (
	// ToolCall is one function call requested by the model.
	ToolCall struct {
		ID   string
		Name string
		Args json.RawMessage
	}

	// ToolResult pairs a call with its JSON-safe payload. Execute never
	// fails a conversation: tool-level problems become error payloads the
	// model can read and explain.
	ToolResult struct {
		Call    ToolCall
		Payload map[string]any
	}

	// Param describes one tool parameter for the model-facing schema.
	Param struct {
		Name        string
		Type        string
		Description string
		Items       string
	}

	// ToolSpec is the declaration of one tool.
	ToolSpec struct {
		Name        string
		Description string
		Params      []Param
	}
)

// Registry owns the closed tool set and executes calls against the
// aggregation layer on behalf of one user.
type Registry struct {
	agg      *ledger.Aggregator
	resolver *Resolver
	now      func() time.Time
	loc      *time.Location
}

func NewRegistry(agg *ledger.Aggregator, resolver *Resolver, now func() time.Time, loc *time.Location) *Registry {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{agg: agg, resolver: resolver, now: now, loc: loc}
}

// Specs returns the declarations handed to the model. The descriptions
// are part of the prompt surface: they steer which tool gets picked.
func (r *Registry) Specs() []ToolSpec {
	monthParams := []Param{
		{Name: "month", Type: "integer", Description: "Tháng (1-12). Bỏ trống nếu hỏi tháng hiện tại."},
		{Name: "year", Type: "integer", Description: "Năm, ví dụ 2025."},
		{Name: "month_offset", Type: "integer", Description: "Độ lệch tháng so với hiện tại: 0 = tháng này, -1 = tháng trước."},
	}
	return []ToolSpec{
		{
			Name:        ToolMonthlyIncomeExpense,
			Description: "Tổng thu nhập và chi tiêu của một tháng.",
			Params:      monthParams,
		},
		{
			Name:        ToolBudgetStatusMonth,
			Description: "Tình trạng ngân sách tổng của một tháng: hạn mức, đã chi, phần trăm đã dùng.",
			Params:      monthParams,
		},
		{
			Name:        ToolTotalBalance,
			Description: "Tổng số dư hiện tại của tất cả ví đang hoạt động.",
		},
		{
			Name:        ToolWalletBalanceByName,
			Description: "Số dư của một ví theo tên (tên gần đúng cũng được).",
			Params: []Param{
				{Name: "wallet_name", Type: "string", Description: "Tên ví, ví dụ 'tiền mặt' hoặc 'momo'."},
			},
		},
		{
			Name:        ToolTopExpenseCategories,
			Description: "Các danh mục chi tiêu nhiều nhất trong một tháng.",
			Params: append([]Param{
				{Name: "limit", Type: "integer", Description: "Số danh mục muốn xem, mặc định 5, tối đa 20."},
			}, monthParams...),
		},
		{
			Name:        ToolExpenseInRange,
			Description: "Tổng chi tiêu trong một khoảng ngày tùy ý.",
			Params: []Param{
				{Name: "start_date", Type: "string", Description: "Ngày bắt đầu, định dạng YYYY-MM-DD."},
				{Name: "end_date", Type: "string", Description: "Ngày kết thúc (bao gồm), định dạng YYYY-MM-DD."},
			},
		},
		{
			Name:        ToolSpendingByCategories,
			Description: "Chi tiêu theo từng danh mục nêu tên trong một tháng.",
			Params: append([]Param{
				{Name: "category_names", Type: "array", Items: "string", Description: "Tên các danh mục người dùng nhắc đến."},
				{Name: "include_subtree", Type: "boolean", Description: "Cộng cả danh mục con. Mặc định true."},
			}, monthParams...),
		},
		{
			Name:        ToolTopBigExpenses,
			Description: "Các khoản chi lớn nhất trong một tháng hoặc một khoảng ngày.",
			Params: append([]Param{
				{Name: "limit", Type: "integer", Description: "Số khoản muốn xem, mặc định 3, tối đa 20."},
				{Name: "start_date", Type: "string", Description: "Ngày bắt đầu YYYY-MM-DD (tùy chọn)."},
				{Name: "end_date", Type: "string", Description: "Ngày kết thúc YYYY-MM-DD (tùy chọn)."},
			}, monthParams...),
		},
		{
			Name:        ToolTopBigIncomes,
			Description: "Các khoản thu lớn nhất trong một tháng hoặc một khoảng ngày.",
			Params: append([]Param{
				{Name: "limit", Type: "integer", Description: "Số khoản muốn xem, mặc định 3, tối đa 20."},
				{Name: "start_date", Type: "string", Description: "Ngày bắt đầu YYYY-MM-DD (tùy chọn)."},
				{Name: "end_date", Type: "string", Description: "Ngày kết thúc YYYY-MM-DD (tùy chọn)."},
			}, monthParams...),
		},
		{
			Name:        ToolTopSpendingWallet,
			Description: "Ví chi tiêu nhiều nhất trong một tháng.",
			Params:      monthParams,
		},
	}
}

// rangeArgs is the shared time-selection argument block. Field semantics
// follow core.RangeRequest; the model sends whichever subset it derived
// from the question.
type rangeArgs struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	MonthOffset *int   `json:"month_offset"`
}

func (a rangeArgs) request() core.RangeRequest {
	off := a.MonthOffset
	if off != nil {
		v := clampInt(*off, -maxMonthOffset, maxMonthOffset)
		off = &v
	}
	return core.RangeRequest{
		StartDate:   a.StartDate,
		EndDate:     a.EndDate,
		Month:       a.Month,
		Year:        a.Year,
		MonthOffset: off,
	}
}

// Execute runs one tool call for userID. The returned payload is always
// non-nil; unknown tools and bad arguments come back as error payloads.
func (r *Registry) Execute(ctx context.Context, userID int64, call ToolCall) ToolResult {
	payload, err := r.dispatch(ctx, userID, call)
	if err != nil {
		payload = errPayload(err)
	}
	return ToolResult{Call: call, Payload: payload}
}

func (r *Registry) dispatch(ctx context.Context, userID int64, call ToolCall) (map[string]any, error) {
	switch call.Name {
	case ToolMonthlyIncomeExpense:
		return r.monthlyIncomeExpense(ctx, userID, call.Args)
	case ToolBudgetStatusMonth:
		return r.budgetStatus(ctx, userID, call.Args)
	case ToolTotalBalance:
		return r.totalBalance(ctx, userID)
	case ToolWalletBalanceByName:
		return r.walletBalance(ctx, userID, call.Args)
	case ToolTopExpenseCategories:
		return r.topExpenseCategories(ctx, userID, call.Args)
	case ToolExpenseInRange:
		return r.expenseInRange(ctx, userID, call.Args)
	case ToolSpendingByCategories:
		return r.spendingByCategories(ctx, userID, call.Args)
	case ToolTopBigExpenses:
		return r.topTransactions(ctx, userID, call.Args, core.Expense)
	case ToolTopBigIncomes:
		return r.topTransactions(ctx, userID, call.Args, core.Income)
	case ToolTopSpendingWallet:
		return r.topSpendingWallet(ctx, userID, call.Args)
	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (r *Registry) deriveRange(raw json.RawMessage) (core.DateRange, error) {
	var args rangeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return core.DateRange{}, err
	}
	return core.DeriveRange(r.now(), r.loc, args.request())
}

func (r *Registry) monthlyIncomeExpense(ctx context.Context, userID int64, raw json.RawMessage) (map[string]any, error) {
	rng, err := r.deriveRange(raw)
	if err != nil {
		return nil, err
	}
	income, expense, err := r.agg.IncomeExpense(ctx, userID, rng)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"label":         rng.Label,
		"total_income":  income.String(),
		"total_expense": expense.String(),
		"net":           income.Sub(expense).String(),
	}, nil
}

func (r *Registry) budgetStatus(ctx context.Context, userID int64, raw json.RawMessage) (map[string]any, error) {
	rng, err := r.deriveRange(raw)
	if err != nil {
		return nil, err
	}
	usage, err := r.agg.GlobalBudgetUsage(ctx, userID, rng)
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return map[string]any{"exists": false, "label": rng.Label}, nil
	}
	return map[string]any{
		"exists":         true,
		"label":          rng.Label,
		"limit_amount":   usage.Budget.LimitAmount.String(),
		"spent_amount":   usage.Spent.String(),
		"used_percent":   usage.UsedPercent,
		"threshold":      usage.Budget.AlertThreshold,
		"over_threshold": usage.OverThreshold,
		"over_limit":     usage.OverLimit,
	}, nil
}

func (r *Registry) totalBalance(ctx context.Context, userID int64) (map[string]any, error) {
	total, wallets, err := r.agg.TotalBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(wallets))
	for _, w := range wallets {
		items = append(items, map[string]any{
			"name":    w.Name,
			"balance": w.Balance.String(),
		})
	}
	return map[string]any{
		"total_balance": total.String(),
		"wallets":       items,
	}, nil
}

func (r *Registry) walletBalance(ctx context.Context, userID int64, raw json.RawMessage) (map[string]any, error) {
	var args struct {
		WalletName string `json:"wallet_name"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.WalletName == "" {
		return map[string]any{"found": false, "need_wallet_name": true}, nil
	}
	res, err := r.resolver.ResolveWallets(ctx, userID, []string{args.WalletName})
	if err != nil {
		return nil, err
	}
	if len(res.Resolved) == 0 {
		return map[string]any{"found": false, "wallet_name": args.WalletName}, nil
	}
	matched := res.Resolved[0]
	_, wallets, err := r.agg.TotalBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if w.ID == matched.ID {
			return map[string]any{
				"found":       true,
				"wallet_name": w.Name,
				"balance":     w.Balance.String(),
			}, nil
		}
	}
	return map[string]any{"found": false, "wallet_name": args.WalletName}, nil
}

func (r *Registry) topExpenseCategories(ctx context.Context, userID int64, raw json.RawMessage) (map[string]any, error) {
	var args struct {
		rangeArgs
		Limit int `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	rng, err := core.DeriveRange(r.now(), r.loc, args.request())
	if err != nil {
		return nil, err
	}
	limit := clampLimit(args.Limit, defaultTopCategories)
	top, err := r.agg.TopCategoriesBySpend(ctx, userID, rng, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(top))
	for _, c := range top {
		items = append(items, map[string]any{
			"category_name": c.Name,
			"total":         c.Total.String(),
		})
	}
	return map[string]any{"label": rng.Label, "items": items}, nil
}

func (r *Registry) expenseInRange(ctx context.Context, userID int64, raw json.RawMessage) (map[string]any, error) {
	var args struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	start, err := core.ParseDate(args.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	end, err := core.ParseDate(args.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}
	rng, err := core.ExplicitRange(start, end)
	if err != nil {
		return nil, err
	}
	total, err := r.agg.SumByType(ctx, userID, core.Expense, rng, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"label":         rng.Label,
		"total_expense": total.String(),
	}, nil
}

func (r *Registry) spendingByCategories(ctx context.Context, userID int64, raw json.RawMessage) (map[string]any, error) {
	var args struct {
		rangeArgs
		CategoryNames  []string `json:"category_names"`
		IncludeSubtree *bool    `json:"include_subtree"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	rng, err := core.DeriveRange(r.now(), r.loc, args.request())
	if err != nil {
		return nil, err
	}
	res, err := r.resolver.ResolveCategories(ctx, userID, args.CategoryNames, core.Expense)
	if err != nil {
		return nil, err
	}
	includeSubtree := args.IncludeSubtree == nil || *args.IncludeSubtree
	spends, err := r.agg.SumByCategoryRoots(ctx, userID, res.IDs(), rng, nil, includeSubtree)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(spends))
	for _, s := range spends {
		items = append(items, map[string]any{
			"category_name": s.Name,
			"total":         s.Total.String(),
		})
	}
	payload := map[string]any{"label": rng.Label, "items": items}
	if len(res.Unresolved) > 0 {
		payload["unresolved"] = res.Unresolved
	}
	return payload, nil
}

func (r *Registry) topTransactions(ctx context.Context, userID int64, raw json.RawMessage, typ core.CategoryType) (map[string]any, error) {
	var args struct {
		rangeArgs
		Limit int `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	rng, err := core.DeriveRange(r.now(), r.loc, args.request())
	if err != nil {
		return nil, err
	}
	limit := clampLimit(args.Limit, defaultTopTransactions)
	txs, err := r.agg.TopTransactions(ctx, userID, typ, rng, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(txs))
	for _, tx := range txs {
		items = append(items, map[string]any{
			"amount":        tx.Amount.String(),
			"date":          tx.Date.ISO(),
			"description":   tx.Description,
			"category_name": tx.CategoryName,
			"wallet_name":   tx.WalletName,
		})
	}
	return map[string]any{"label": rng.Label, "items": items}, nil
}

func (r *Registry) topSpendingWallet(ctx context.Context, userID int64, raw json.RawMessage) (map[string]any, error) {
	rng, err := r.deriveRange(raw)
	if err != nil {
		return nil, err
	}
	top, err := r.agg.TopSpendingWallet(ctx, userID, rng)
	if err != nil {
		return nil, err
	}
	if top == nil {
		return map[string]any{"found": false, "label": rng.Label}, nil
	}
	return map[string]any{
		"found":          true,
		"label":          rng.Label,
		"wallet_name":    top.WalletName,
		"total_expense":  top.TotalExpense.String(),
		"share_of_total": top.ShareOfTotal,
		"balance":        top.Balance.String(),
	}, nil
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("bad tool arguments: %w", err)
	}
	return nil
}

func errPayload(err error) map[string]any {
	return map[string]any{"error": true, "message": err.Error()}
}

func clampLimit(n, def int) int {
	if n == 0 {
		return def
	}
	return clampInt(n, 1, maxListLimit)
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
