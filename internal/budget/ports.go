package budget

import (
	"context"

	"fintrack/internal/core"
)

// SumQuery selects transactions for an aggregate sum. Start and End are
// inclusive. An empty Category matches every category; a zero ExcludeID
// excludes nothing.
type SumQuery struct {
	Start     core.Date
	End       core.Date
	Category  string
	ExcludeID int64
}

// Ports for the persistence collaborator. Implementations wrap their own
// failures with core.ErrStoreUnavailable.
type (
	SpendReader interface {
		// SumAmounts returns the sum of matching amounts, zero when none match.
		SumAmounts(ctx context.Context, q SumQuery) (core.Money, error)
	}

	BudgetRepository interface {
		UpsertBudget(ctx context.Context, period, category string, amount core.Money) error
		// GetBudget reports found=false when no row exists.
		GetBudget(ctx context.Context, period, category string) (amount core.Money, found bool, err error)
		GetAllBudgets(ctx context.Context, period string) (map[string]core.Money, error)
		DeleteBudget(ctx context.Context, period, category string) (deleted bool, err error)
	}

	Repository interface {
		SpendReader
		BudgetRepository
	}
)
