package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"budgetf/internal/core"
	"budgetf/internal/ledger"
	"budgetf/internal/log"
	"budgetf/internal/match"
)

// SmallTalker answers questions that carry no financial intent.
type SmallTalker interface {
	Chat(ctx context.Context, history []Message, latest string) (string, error)
}

// Fallback answers a fixed set of question shapes without a cloud model.
// It runs the same aggregation layer as the tool registry, keyed off
// normalized keyword patterns instead of model-chosen tool calls, so the
// assistant keeps working when no Gemini key is configured.
type Fallback struct {
	agg      *ledger.Aggregator
	resolver *Resolver
	now      func() time.Time
	loc      *time.Location
	small    SmallTalker
	logger   *log.Logger
}

func NewFallback(agg *ledger.Aggregator, resolver *Resolver, now func() time.Time, loc *time.Location, small SmallTalker, logger *log.Logger) *Fallback {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Fallback{agg: agg, resolver: resolver, now: now, loc: loc, small: small, logger: logger}
}

type intentRule struct {
	name   string
	match  func(norm string) bool
	handle func(ctx context.Context, userID int64, norm, raw string) (string, error)
}

// rules is evaluated in order; the first match wins, so specific shapes
// (wallet balance, budget) sit above the broad month summary.
func (f *Fallback) rules() []intentRule {
	return []intentRule{
		{
			name: "budget_status",
			match: func(n string) bool {
				return strings.Contains(n, "ngan sach") || strings.Contains(n, "han muc")
			},
			handle: f.handleBudget,
		},
		{
			name: "wallet_balance",
			match: func(n string) bool {
				return strings.Contains(n, "so du") && strings.Contains(n, "vi ") && extractWalletName(n) != ""
			},
			handle: f.handleWalletBalance,
		},
		{
			name: "total_balance",
			match: func(n string) bool {
				return strings.Contains(n, "so du") ||
					strings.Contains(n, "con bao nhieu tien") ||
					strings.Contains(n, "tong tien")
			},
			handle: f.handleTotalBalance,
		},
		{
			name: "top_spending_wallet",
			match: func(n string) bool {
				return strings.Contains(n, "vi") && strings.Contains(n, "chi") &&
					(strings.Contains(n, "nhieu nhat") || strings.Contains(n, "nhat"))
			},
			handle: f.handleTopSpendingWallet,
		},
		{
			name: "top_expense_categories",
			match: func(n string) bool {
				return strings.Contains(n, "danh muc") &&
					(strings.Contains(n, "nhieu nhat") || strings.Contains(n, "top"))
			},
			handle: f.handleTopCategories,
		},
		{
			name: "spending_by_categories",
			match: func(n string) bool {
				return (strings.Contains(n, "chi") && strings.Contains(n, "cho")) ||
					(strings.Contains(n, "tieu") && strings.Contains(n, "cho"))
			},
			handle: f.handleSpendingByCategories,
		},
		{
			name: "top_big_expenses",
			match: func(n string) bool {
				return strings.Contains(n, "khoan chi") && strings.Contains(n, "lon nhat")
			},
			handle: func(ctx context.Context, userID int64, norm, raw string) (string, error) {
				return f.handleTopTransactions(ctx, userID, norm, core.Expense)
			},
		},
		{
			name: "top_big_incomes",
			match: func(n string) bool {
				return strings.Contains(n, "khoan thu") && strings.Contains(n, "lon nhat")
			},
			handle: func(ctx context.Context, userID int64, norm, raw string) (string, error) {
				return f.handleTopTransactions(ctx, userID, norm, core.Income)
			},
		},
		{
			name: "today_spend",
			match: func(n string) bool {
				return strings.Contains(n, "hom nay") &&
					(strings.Contains(n, "chi") || strings.Contains(n, "tieu"))
			},
			handle: func(ctx context.Context, userID int64, norm, raw string) (string, error) {
				return f.handleExpenseInRange(ctx, userID, core.DayRange(f.now(), f.loc))
			},
		},
		{
			name: "week_spend",
			match: func(n string) bool {
				return (strings.Contains(n, "7 ngay") || strings.Contains(n, "bay ngay") ||
					strings.Contains(n, "tuan qua") || strings.Contains(n, "tuan nay")) &&
					(strings.Contains(n, "chi") || strings.Contains(n, "tieu"))
			},
			handle: func(ctx context.Context, userID int64, norm, raw string) (string, error) {
				return f.handleExpenseInRange(ctx, userID, core.LastNDaysRange(f.now(), f.loc, 7))
			},
		},
		{
			name: "monthly_income_expense",
			match: func(n string) bool {
				return strings.Contains(n, "thu nhap") || strings.Contains(n, "chi tieu") ||
					strings.Contains(n, "chi bao nhieu") || strings.Contains(n, "thu bao nhieu") ||
					strings.Contains(n, "thu chi")
			},
			handle: f.handleIncomeExpense,
		},
	}
}

// Answer resolves one question against the rule chain. Like the
// orchestrator it always returns user-facing text.
func (f *Fallback) Answer(ctx context.Context, userID int64, history []Message, latest string) string {
	norm := match.Normalize(latest)
	for _, rule := range f.rules() {
		if !rule.match(norm) {
			continue
		}
		f.logger.DebugContext(ctx, "fallback intent matched", "intent", rule.name)
		reply, err := rule.handle(ctx, userID, norm, latest)
		if err != nil {
			f.logger.ErrorContext(ctx, "fallback handler failed", "intent", rule.name, log.FieldError, err)
			return replyModelErr
		}
		return reply
	}

	if f.small != nil {
		reply, err := f.small.Chat(ctx, history, latest)
		if err == nil && reply != "" {
			return reply
		}
		if err != nil {
			f.logger.WarnContext(ctx, "small talk backend failed", log.FieldError, err)
		}
	}
	return replyEmptyText
}

func (f *Fallback) monthRange(norm string) core.DateRange {
	return core.MonthRange(f.now(), f.loc, detectMonthOffset(norm))
}

func (f *Fallback) handleBudget(ctx context.Context, userID int64, norm, _ string) (string, error) {
	rng := f.monthRange(norm)
	usage, err := f.agg.GlobalBudgetUsage(ctx, userID, rng)
	if err != nil {
		return "", err
	}
	if usage == nil {
		return fmt.Sprintf("Bạn chưa đặt ngân sách cho %s.", rng.Label), nil
	}
	reply := fmt.Sprintf("Ngân sách %s: hạn mức %s, đã chi %s (%.1f%%).",
		rng.Label,
		core.FormatVND(usage.Budget.LimitAmount),
		core.FormatVND(usage.Spent),
		usage.UsedPercent)
	switch {
	case usage.OverLimit:
		reply += " Bạn đã vượt hạn mức rồi đó!"
	case usage.OverThreshold:
		reply += " Sắp chạm hạn mức rồi, chi tiêu cẩn thận nhé."
	}
	return reply, nil
}

func (f *Fallback) handleWalletBalance(ctx context.Context, userID int64, norm, _ string) (string, error) {
	name := extractWalletName(norm)
	res, err := f.resolver.ResolveWallets(ctx, userID, []string{name})
	if err != nil {
		return "", err
	}
	if len(res.Resolved) == 0 {
		return fmt.Sprintf("Mình không tìm thấy ví nào tên là %q.", name), nil
	}
	matched := res.Resolved[0]
	_, wallets, err := f.agg.TotalBalance(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, w := range wallets {
		if w.ID == matched.ID {
			return fmt.Sprintf("Ví %s đang có số dư %s.", w.Name, core.FormatVND(w.Balance)), nil
		}
	}
	return fmt.Sprintf("Mình không tìm thấy ví nào tên là %q.", name), nil
}

func (f *Fallback) handleTotalBalance(ctx context.Context, userID int64, _, _ string) (string, error) {
	total, wallets, err := f.agg.TotalBalance(ctx, userID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tổng số dư các ví của bạn là %s.", core.FormatVND(total))
	for _, w := range wallets {
		fmt.Fprintf(&b, "\n- %s: %s", w.Name, core.FormatVND(w.Balance))
	}
	return b.String(), nil
}

func (f *Fallback) handleIncomeExpense(ctx context.Context, userID int64, norm, _ string) (string, error) {
	rng := f.monthRange(norm)
	income, expense, err := f.agg.IncomeExpense(ctx, userID, rng)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Trong %s bạn thu %s và chi %s.",
		rng.Label, core.FormatVND(income), core.FormatVND(expense)), nil
}

func (f *Fallback) handleTopCategories(ctx context.Context, userID int64, norm, _ string) (string, error) {
	rng := f.monthRange(norm)
	top, err := f.agg.TopCategoriesBySpend(ctx, userID, rng, defaultTopCategories)
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return fmt.Sprintf("Bạn chưa có khoản chi nào trong %s.", rng.Label), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Các danh mục chi nhiều nhất trong %s:", rng.Label)
	for _, c := range top {
		fmt.Fprintf(&b, "\n- %s: %s", c.Name, core.FormatVND(c.Total))
	}
	return b.String(), nil
}

func (f *Fallback) handleSpendingByCategories(ctx context.Context, userID int64, norm, raw string) (string, error) {
	names := extractCategoryNames(raw, norm)
	if len(names) == 0 {
		return "Bạn muốn xem chi tiêu cho danh mục nào? Ví dụ: \"tháng này chi cho ăn uống bao nhiêu?\"", nil
	}
	rng := f.monthRange(norm)
	res, err := f.resolver.ResolveCategories(ctx, userID, names, core.Expense)
	if err != nil {
		return "", err
	}
	if len(res.Resolved) == 0 {
		return fmt.Sprintf("Mình không tìm thấy danh mục nào khớp với %q.", strings.Join(names, ", ")), nil
	}
	spends, err := f.agg.SumByCategoryRoots(ctx, userID, res.IDs(), rng, nil, true)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Chi tiêu trong %s:", rng.Label)
	for _, s := range spends {
		fmt.Fprintf(&b, "\n- %s: %s", s.Name, core.FormatVND(s.Total))
	}
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(&b, "\nMình không tìm thấy danh mục: %s.", strings.Join(res.Unresolved, ", "))
	}
	return b.String(), nil
}

func (f *Fallback) handleExpenseInRange(ctx context.Context, userID int64, rng core.DateRange) (string, error) {
	total, err := f.agg.SumByType(ctx, userID, core.Expense, rng, nil)
	if err != nil {
		return "", err
	}
	if total.IsZero() {
		return fmt.Sprintf("Bạn chưa có khoản chi nào %s.", rng.Label), nil
	}
	return fmt.Sprintf("Tổng chi %s là %s.", rng.Label, core.FormatVND(total)), nil
}

func (f *Fallback) handleTopTransactions(ctx context.Context, userID int64, norm string, typ core.CategoryType) (string, error) {
	rng := f.monthRange(norm)
	txs, err := f.agg.TopTransactions(ctx, userID, typ, rng, defaultTopTransactions)
	if err != nil {
		return "", err
	}
	kind := "khoản chi"
	if typ == core.Income {
		kind = "khoản thu"
	}
	if len(txs) == 0 {
		return fmt.Sprintf("Không có %s nào trong %s.", kind, rng.Label), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Các %s lớn nhất trong %s:", kind, rng.Label)
	for _, tx := range txs {
		desc := tx.Description
		if desc == "" {
			desc = tx.CategoryName
		}
		fmt.Fprintf(&b, "\n- %s (%s, ví %s): %s", desc, tx.Date.ISO(), tx.WalletName, core.FormatVND(tx.Amount))
	}
	return b.String(), nil
}

func (f *Fallback) handleTopSpendingWallet(ctx context.Context, userID int64, norm, _ string) (string, error) {
	rng := f.monthRange(norm)
	top, err := f.agg.TopSpendingWallet(ctx, userID, rng)
	if err != nil {
		return "", err
	}
	if top == nil {
		return fmt.Sprintf("Bạn chưa có khoản chi nào trong %s.", rng.Label), nil
	}
	return fmt.Sprintf("Trong %s, ví %s chi nhiều nhất: %s (%.1f%% tổng chi). Số dư hiện tại: %s.",
		rng.Label, top.WalletName, core.FormatVND(top.TotalExpense), top.ShareOfTotal, core.FormatVND(top.Balance)), nil
}

// detectMonthOffset reads relative month phrases from normalized text.
func detectMonthOffset(norm string) int {
	switch {
	case strings.Contains(norm, "thang truoc"):
		return -1
	case strings.Contains(norm, "thang sau"):
		return 1
	default:
		return 0
	}
}

var quotedRe = regexp.MustCompile(`["“'‘](.+?)["”'’]`)

// extractCategoryNames pulls category mentions out of the raw question:
// quoted phrases first, then the words after "cho" as a heuristic
// ("chi cho ăn uống bao nhiêu" -> "ăn uống bao nhiêu", which the fuzzy
// matcher still resolves).
func extractCategoryNames(raw, norm string) []string {
	var names []string
	for _, m := range quotedRe.FindAllStringSubmatch(raw, -1) {
		if s := strings.TrimSpace(m[1]); s != "" {
			names = append(names, s)
		}
	}
	if len(names) > 0 {
		return names
	}
	if after, ok := cutAfterWord(norm, "cho"); ok {
		after = trimTrailingFiller(after)
		if after != "" {
			names = append(names, after)
		}
	}
	return names
}

// extractWalletName pulls a wallet mention from normalized text: a quoted
// phrase, or the words after "vi".
func extractWalletName(norm string) string {
	if m := quotedRe.FindStringSubmatch(norm); m != nil {
		return strings.TrimSpace(m[1])
	}
	if after, ok := cutAfterWord(norm, "vi"); ok {
		return trimTrailingFiller(after)
	}
	return ""
}

// cutAfterWord returns the text after the last whole-word occurrence of w.
func cutAfterWord(s, w string) (string, bool) {
	words := strings.Fields(s)
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] == w && i+1 < len(words) {
			return strings.Join(words[i+1:], " "), true
		}
	}
	return "", false
}

// trimTrailingFiller strips question tails ("bao nhieu", "het bao nhieu
// tien") that ride along after an entity mention.
func trimTrailingFiller(s string) string {
	fillers := []string{
		"het bao nhieu tien", "bao nhieu tien", "het bao nhieu", "bao nhieu",
		"la bao nhieu", "con bao nhieu", "the nao", "ra sao",
	}
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		for _, f := range fillers {
			if strings.HasSuffix(s, f) {
				s = strings.TrimSpace(strings.TrimSuffix(s, f))
				changed = true
			}
		}
	}
	return s
}
