package storage

import (
	"context"

	"fintrack/internal/budget"
	"fintrack/internal/core"
)

// Ports implemented by every persistence backend. Failures of the
// underlying store are wrapped with core.ErrStoreUnavailable; a missing
// record is core.ErrNotFound.
type (
	ExpenseWriter interface {
		CreateExpense(ctx context.Context, e core.Expense) (id int64, err error)
		// UpdateExpense replaces the full record identified by e.ID.
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id int64) error
	}

	ExpenseReader interface {
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		// ListExpenses returns matches ordered by date descending, then id.
		ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
		// CategoryTotals returns per-category spend, largest first.
		CategoryTotals(ctx context.Context, start, end core.Date) ([]core.CategoryAmount, error)
		// DailyTotals returns the spend of each day that has expenses, in date order.
		DailyTotals(ctx context.Context, start, end core.Date) ([]core.DailyTotal, error)
		// Categories lists distinct expense categories in sorted order.
		Categories(ctx context.Context) ([]string, error)
	}

	Repository interface {
		ExpenseWriter
		ExpenseReader
		budget.Repository
		Ping(ctx context.Context) error
		Close() error
	}
)
