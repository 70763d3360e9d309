package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"budgetf/internal/core"
)

type (
	// CategoryTotal is one aggregation root with its summed spend.
	// Requested roots with no matching transactions keep a zero total
	// instead of being dropped.
	CategoryTotal struct {
		CategoryID int64
		Name       string
		Total      decimal.Decimal
	}

	// TransactionDetail pairs a ledger row with the display names the
	// assistant interpolates into answers.
	TransactionDetail struct {
		core.Transaction
		CategoryName string
		WalletName   string
	}

	// WalletSpend describes the wallet with the greatest expense in a
	// range, its current balance and its share of the period's total.
	WalletSpend struct {
		WalletID     int64
		WalletName   string
		Balance      decimal.Decimal
		TotalExpense decimal.Decimal
		ShareOfTotal float64
	}

	// BudgetUsage pairs the global budget row with actual spend. A nil
	// *BudgetUsage from the aggregator means "budget not set", which is
	// distinct from a usage row with zero spend.
	BudgetUsage struct {
		Budget        core.Budget
		Spent         decimal.Decimal
		UsedPercent   float64
		OverThreshold bool
		OverLimit     bool
	}
)

// Aggregator is the aggregation query layer: pure read functions over a
// ledger store, safe to call concurrently and idempotent against an
// unchanged ledger.
type Aggregator struct {
	store Reader
}

func NewAggregator(store Reader) *Aggregator {
	return &Aggregator{store: store}
}

// SumByType sums transaction amounts whose category has the given type,
// optionally restricted to a wallet set.
func (a *Aggregator) SumByType(ctx context.Context, userID int64, typ core.CategoryType, r core.DateRange, walletIDs []int64) (decimal.Decimal, error) {
	txs, types, _, err := a.load(ctx, userID, r)
	if err != nil {
		return decimal.Zero, err
	}
	filter := idSet(walletIDs)

	total := decimal.Zero
	for _, tx := range txs {
		if types[tx.CategoryID] != typ {
			continue
		}
		if filter != nil && !filter[tx.WalletID] {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total, nil
}

// IncomeExpense sums both types in one pass over the range.
func (a *Aggregator) IncomeExpense(ctx context.Context, userID int64, r core.DateRange) (income, expense decimal.Decimal, err error) {
	txs, types, _, err := a.load(ctx, userID, r)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	income, expense = decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch types[tx.CategoryID] {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense, nil
}

// SumByCategoryRoots totals spend per requested root. With includeSubtree,
// a root's total covers every transaction tagged anywhere in its
// descendant closure; without it, only rows tagged with the root itself.
// Results are ordered by total descending, zero-spend roots last by id.
func (a *Aggregator) SumByCategoryRoots(ctx context.Context, userID int64, rootIDs []int64, r core.DateRange, walletIDs []int64, includeSubtree bool) ([]CategoryTotal, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}
	txs, _, cats, err := a.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	filter := idSet(walletIDs)

	children := map[int64][]int64{}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	// memberOf maps every counted category id to its requested root.
	memberOf := map[int64]int64{}
	for _, root := range rootIDs {
		for _, id := range descendants(root, children, includeSubtree) {
			memberOf[id] = root
		}
	}

	totals := make(map[int64]decimal.Decimal, len(rootIDs))
	for _, root := range rootIDs {
		totals[root] = decimal.Zero
	}
	for _, tx := range txs {
		root, ok := memberOf[tx.CategoryID]
		if !ok {
			continue
		}
		if filter != nil && !filter[tx.WalletID] {
			continue
		}
		totals[root] = totals[root].Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, len(rootIDs))
	seen := map[int64]bool{}
	for _, root := range rootIDs {
		if seen[root] {
			continue
		}
		seen[root] = true
		out = append(out, CategoryTotal{CategoryID: root, Name: names[root], Total: totals[root]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

// TopTransactions returns the n largest transactions of the given type in
// the range, ties broken by most recent id first for determinism.
func (a *Aggregator) TopTransactions(ctx context.Context, userID int64, typ core.CategoryType, r core.DateRange, n int) ([]TransactionDetail, error) {
	txs, types, cats, err := a.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	wallets, err := a.store.WalletsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}
	catNames := make(map[int64]string, len(cats))
	for _, c := range cats {
		catNames[c.ID] = c.Name
	}
	walletNames := make(map[int64]string, len(wallets))
	for _, w := range wallets {
		walletNames[w.ID] = w.Name
	}

	var details []TransactionDetail
	for _, tx := range txs {
		if types[tx.CategoryID] != typ {
			continue
		}
		details = append(details, TransactionDetail{
			Transaction:  tx,
			CategoryName: catNames[tx.CategoryID],
			WalletName:   walletNames[tx.WalletID],
		})
	}
	sort.SliceStable(details, func(i, j int) bool {
		if !details[i].Amount.Equal(details[j].Amount) {
			return details[i].Amount.GreaterThan(details[j].Amount)
		}
		return details[i].ID > details[j].ID
	})
	if len(details) > n {
		details = details[:n]
	}
	return details, nil
}

// TopCategoriesBySpend ranks expense categories by directly tagged spend.
func (a *Aggregator) TopCategoriesBySpend(ctx context.Context, userID int64, r core.DateRange, n int) ([]CategoryTotal, error) {
	txs, types, cats, err := a.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	totals := map[int64]decimal.Decimal{}
	for _, tx := range txs {
		if types[tx.CategoryID] != core.Expense {
			continue
		}
		cur, ok := totals[tx.CategoryID]
		if !ok {
			cur = decimal.Zero
		}
		totals[tx.CategoryID] = cur.Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, len(totals))
	for id, total := range totals {
		out = append(out, CategoryTotal{CategoryID: id, Name: names[id], Total: total})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// TopSpendingWallet returns the wallet with the greatest expense in the
// range, or nil when the range has no expense at all.
func (a *Aggregator) TopSpendingWallet(ctx context.Context, userID int64, r core.DateRange) (*WalletSpend, error) {
	txs, types, _, err := a.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	wallets, err := a.store.WalletsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	perWallet := map[int64]decimal.Decimal{}
	periodTotal := decimal.Zero
	for _, tx := range txs {
		if types[tx.CategoryID] != core.Expense {
			continue
		}
		cur, ok := perWallet[tx.WalletID]
		if !ok {
			cur = decimal.Zero
		}
		perWallet[tx.WalletID] = cur.Add(tx.Amount)
		periodTotal = periodTotal.Add(tx.Amount)
	}
	if len(perWallet) == 0 {
		return nil, nil
	}

	var topID int64
	topSpend := decimal.Zero
	first := true
	for id, spend := range perWallet {
		if first || spend.GreaterThan(topSpend) || (spend.Equal(topSpend) && id < topID) {
			topID, topSpend = id, spend
			first = false
		}
	}

	result := &WalletSpend{
		WalletID:     topID,
		TotalExpense: topSpend,
		ShareOfTotal: core.Percent(topSpend, periodTotal),
	}
	for _, w := range wallets {
		if w.ID == topID {
			result.WalletName = w.Name
			result.Balance = w.Balance
			break
		}
	}
	return result, nil
}

// TotalBalance sums the balances of the user's non-archived wallets. Not
// date-scoped: it reflects current wallet state, not ledger history.
func (a *Aggregator) TotalBalance(ctx context.Context, userID int64) (decimal.Decimal, []core.Wallet, error) {
	wallets, err := a.store.WalletsOf(ctx, userID)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("load wallets: %w", err)
	}
	total := decimal.Zero
	active := make([]core.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.Archived {
			continue
		}
		total = total.Add(w.Balance)
		active = append(active, w)
	}
	return total, active, nil
}

// GlobalBudgetUsage pairs the month's global budget row with actual
// expense. A nil result means no budget is set for that month.
func (a *Aggregator) GlobalBudgetUsage(ctx context.Context, userID int64, r core.DateRange) (*BudgetUsage, error) {
	budget, err := a.store.GlobalBudget(ctx, userID, r.Start)
	if err != nil {
		return nil, fmt.Errorf("load budget: %w", err)
	}
	if budget == nil {
		return nil, nil
	}

	spent, err := a.SumByType(ctx, userID, core.Expense, r, nil)
	if err != nil {
		return nil, err
	}

	usage := &BudgetUsage{Budget: *budget, Spent: spent}
	if budget.LimitAmount.IsPositive() {
		usage.UsedPercent = core.Percent(spent, budget.LimitAmount)
		usage.OverLimit = spent.GreaterThan(budget.LimitAmount)
		threshold := budget.LimitAmount.Mul(decimal.NewFromInt(int64(budget.AlertThreshold))).Div(decimal.NewFromInt(100))
		usage.OverThreshold = spent.GreaterThanOrEqual(threshold)
	}
	return usage, nil
}

// load fetches range transactions plus the visible category set and
// returns a category-id → type lookup alongside.
func (a *Aggregator) load(ctx context.Context, userID int64, r core.DateRange) ([]core.Transaction, map[int64]core.CategoryType, []core.Category, error) {
	txs, err := a.store.TransactionsInRange(ctx, userID, r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load transactions: %w", err)
	}
	cats, err := a.store.CategoriesVisibleTo(ctx, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load categories: %w", err)
	}
	types := make(map[int64]core.CategoryType, len(cats))
	for _, c := range cats {
		types[c.ID] = c.Type
	}
	return txs, types, cats, nil
}

// descendants walks the parent-link tree from root. The category tree is
// acyclic; the visited set guards against bad data anyway.
func descendants(root int64, children map[int64][]int64, includeSubtree bool) []int64 {
	if !includeSubtree {
		return []int64{root}
	}
	var out []int64
	visited := map[int64]bool{}
	stack := []int64{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		out = append(out, id)
		stack = append(stack, children[id]...)
	}
	return out
}

func idSet(ids []int64) map[int64]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
