// Package assistant implements the natural-language financial query
// engine: fuzzy entity resolution, the tool registry the model may call,
// the bounded tool-calling conversation loop and the pattern-intent
// fallback used when no structured backend is configured.
package assistant

import (
	"context"
	"fmt"

	"budgetf/internal/core"
	"budgetf/internal/ledger"
	"budgetf/internal/match"
)

// Acceptance thresholds. Wallets are held to a tighter bar: answering
// with the wrong wallet's balance is worse than asking again.
const (
	categoryScoreMin = 0.45
	walletScoreMin   = 0.50
)

type (
	// ResolvedEntity maps one free-text name to a stored entity.
	ResolvedEntity struct {
		Input string  `json:"input"`
		ID    int64   `json:"id"`
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}

	// Resolution is the outcome of resolving a name list. Unresolved
	// names are data, not errors: callers relay them to the user.
	Resolution struct {
		Resolved   []ResolvedEntity
		Unresolved []string
	}
)

// Resolver matches informally typed category and wallet names against the
// entities visible to a user.
type Resolver struct {
	store ledger.Reader
}

func NewResolver(store ledger.Reader) *Resolver {
	return &Resolver{store: store}
}

// ResolveCategories resolves raw names against the user's visible
// categories. When typ is non-empty the candidate set is pre-filtered to
// that type (spending questions only ever target expense categories).
func (r *Resolver) ResolveCategories(ctx context.Context, userID int64, rawNames []string, typ core.CategoryType) (Resolution, error) {
	if len(rawNames) == 0 {
		return Resolution{}, nil
	}
	cats, err := r.store.CategoriesVisibleTo(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load categories: %w", err)
	}
	candidates := make([]match.Candidate, 0, len(cats))
	for _, c := range cats {
		if typ != "" && c.Type != typ {
			continue
		}
		candidates = append(candidates, match.Candidate{ID: c.ID, Name: c.Name})
	}
	return resolveAgainst(rawNames, candidates, categoryScoreMin), nil
}

// ResolveWallets resolves raw names against the user's non-archived
// wallets.
func (r *Resolver) ResolveWallets(ctx context.Context, userID int64, rawNames []string) (Resolution, error) {
	if len(rawNames) == 0 {
		return Resolution{}, nil
	}
	wallets, err := r.store.WalletsOf(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load wallets: %w", err)
	}
	candidates := make([]match.Candidate, 0, len(wallets))
	for _, w := range wallets {
		if w.Archived {
			continue
		}
		candidates = append(candidates, match.Candidate{ID: w.ID, Name: w.Name})
	}
	return resolveAgainst(rawNames, candidates, walletScoreMin), nil
}

// resolveAgainst scores each raw name and deduplicates hits by matched id,
// last-seen name winning, so "ăn uống" and "an uong" collapse to one
// resolved category.
func resolveAgainst(rawNames []string, candidates []match.Candidate, minScore float64) Resolution {
	var res Resolution
	byID := map[int64]int{}
	for _, raw := range rawNames {
		best, score, ok := match.Best(raw, candidates)
		if !ok || score < minScore {
			res.Unresolved = append(res.Unresolved, raw)
			continue
		}
		entity := ResolvedEntity{Input: raw, ID: best.ID, Name: best.Name, Score: score}
		if i, seen := byID[best.ID]; seen {
			res.Resolved[i] = entity
			continue
		}
		byID[best.ID] = len(res.Resolved)
		res.Resolved = append(res.Resolved, entity)
	}
	return res
}

// IDs returns the matched ids in resolution order.
func (r Resolution) IDs() []int64 {
	out := make([]int64, len(r.Resolved))
	for i, e := range r.Resolved {
		out[i] = e.ID
	}
	return out
}
