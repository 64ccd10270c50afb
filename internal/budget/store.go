package budget

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/period"
)

// Store validates and normalizes budget keys before handing them to the
// repository. Writes are last-writer-wins with no versioning.
type Store struct {
	repo BudgetRepository
}

func NewStore(repo BudgetRepository) *Store {
	return &Store{repo: repo}
}

// SetBudget upserts the limit for (period, category). Setting the same
// budget again overwrites the previous amount.
func (s *Store) SetBudget(ctx context.Context, periodKey, category string, amount core.Money) error {
	if strings.TrimSpace(periodKey) == "" {
		return fmt.Errorf("%w: empty period", core.ErrInvalidBudget)
	}
	cat := core.NormalizeCategory(category)
	if cat == "" {
		return fmt.Errorf("%w: empty category", core.ErrInvalidBudget)
	}
	if !amount.Amount.IsPositive() {
		return fmt.Errorf("%w: amount %s must be positive", core.ErrInvalidBudget, amount.Amount)
	}
	k, err := period.Parse(periodKey)
	if err != nil {
		return err
	}
	if err := s.repo.UpsertBudget(ctx, k.String(), cat, amount); err != nil {
		return fmt.Errorf("set budget %s/%s: %w", k, cat, err)
	}
	return nil
}

// SetTotalBudget sets the whole-period budget.
func (s *Store) SetTotalBudget(ctx context.Context, periodKey string, amount core.Money) error {
	return s.SetBudget(ctx, periodKey, core.TotalCategory, amount)
}

// GetBudget returns the limit for (period, category). found is false when
// no limit is configured, which callers treat as "no limit".
func (s *Store) GetBudget(ctx context.Context, periodKey, category string) (core.Money, bool, error) {
	k, err := period.Parse(periodKey)
	if err != nil {
		return core.Money{}, false, err
	}
	amount, found, err := s.repo.GetBudget(ctx, k.String(), core.NormalizeCategory(category))
	if err != nil {
		return core.Money{}, false, fmt.Errorf("get budget %s/%s: %w", k, category, err)
	}
	return amount, found, nil
}

// GetAllBudgets returns every limit of the period keyed by normalized
// category, including the TotalCategory entry when set.
func (s *Store) GetAllBudgets(ctx context.Context, periodKey string) (map[string]core.Money, error) {
	k, err := period.Parse(periodKey)
	if err != nil {
		return nil, err
	}
	budgets, err := s.repo.GetAllBudgets(ctx, k.String())
	if err != nil {
		return nil, fmt.Errorf("get budgets %s: %w", k, err)
	}
	if budgets == nil {
		budgets = map[string]core.Money{}
	}
	return budgets, nil
}

// DeleteBudget removes a limit. Returns core.ErrNotFound when none existed.
func (s *Store) DeleteBudget(ctx context.Context, periodKey, category string) error {
	k, err := period.Parse(periodKey)
	if err != nil {
		return err
	}
	cat := core.NormalizeCategory(category)
	deleted, err := s.repo.DeleteBudget(ctx, k.String(), cat)
	if err != nil {
		return fmt.Errorf("delete budget %s/%s: %w", k, cat, err)
	}
	if !deleted {
		return fmt.Errorf("budget %s/%s: %w", k, cat, core.ErrNotFound)
	}
	return nil
}
