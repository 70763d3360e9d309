package assistant

import (
	"context"
	"testing"

	"budgetf/internal/core"
	"budgetf/internal/ledger/memory"
)

func resolverFixture() *memory.Store {
	s := memory.NewStore()
	uid := int64(1)
	s.Categories = []core.Category{
		{ID: 1, Name: "Ăn uống", Type: core.Expense},
		{ID: 2, Name: "Đi lại", Type: core.Expense},
		{ID: 3, Name: "Lương", Type: core.Income},
		{ID: 4, Name: "Riêng tư", Type: core.Expense, UserID: &uid},
	}
	s.Wallets = []core.Wallet{
		{ID: 10, UserID: 1, Name: "Tiền mặt"},
		{ID: 11, UserID: 1, Name: "MoMo"},
		{ID: 12, UserID: 1, Name: "Cũ", Archived: true},
	}
	return s
}

func TestResolveCategoriesFuzzy(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.ResolveCategories(context.Background(), 1, []string{"an uogn", "di lai"}, core.Expense)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 2 || len(res.Unresolved) != 0 {
		t.Fatalf("got %d resolved, %d unresolved", len(res.Resolved), len(res.Unresolved))
	}
	if res.Resolved[0].ID != 1 || res.Resolved[1].ID != 2 {
		t.Errorf("resolved ids = %d, %d", res.Resolved[0].ID, res.Resolved[1].ID)
	}
}

func TestResolveCategoriesTypeFilter(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.ResolveCategories(context.Background(), 1, []string{"luong"}, core.Expense)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 0 {
		t.Errorf("income category matched under expense filter: %+v", res.Resolved)
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0] != "luong" {
		t.Errorf("unresolved = %v", res.Unresolved)
	}
}

func TestResolveCategoriesDedupe(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.ResolveCategories(context.Background(), 1, []string{"ăn uống", "an uong"}, core.Expense)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 1 {
		t.Fatalf("expected 1 resolved after dedupe, got %d", len(res.Resolved))
	}
	if res.Resolved[0].Input != "an uong" {
		t.Errorf("last input should win, got %q", res.Resolved[0].Input)
	}
}

func TestResolveWalletsSkipsArchived(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.ResolveWallets(context.Background(), 1, []string{"cu"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 0 {
		t.Errorf("archived wallet matched: %+v", res.Resolved)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.ResolveWallets(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 0 || len(res.Unresolved) != 0 {
		t.Errorf("expected empty resolution, got %+v", res)
	}
}

func TestResolveBelowThresholdUnresolved(t *testing.T) {
	r := NewResolver(resolverFixture())

	res, err := r.ResolveCategories(context.Background(), 1, []string{"xyzabc"}, core.Expense)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Unresolved) != 1 {
		t.Errorf("expected 1 unresolved, got %v", res.Unresolved)
	}
}
