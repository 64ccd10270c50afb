package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/budget"
	"fintrack/internal/core"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://u@localhost/db?x=1", "pgx5://u@localhost/db?x=1"},
		{"pgx5://already@localhost/db", "pgx5://already@localhost/db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in))
	}
}

func TestFilterPlaceholders(t *testing.T) {
	from, _ := core.ParseDate("2025-08-01")
	f := rangeFilter(from, core.Date{}, "Food", 7)
	assert.Equal(t, " WHERE date >= $1 AND category = $2 AND id <> $3", f.where())
	assert.Equal(t, []any{from.Time, "food", int64(7)}, f.args)
	assert.Equal(t, "", (&filter{}).where())
}

// Integration test against a real database, enabled by POSTGRES_TEST_URL.
func TestRepositoryIntegration(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	repo, err := New(ctx, url)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.pool.Exec(ctx, `TRUNCATE expenses, budgets RESTART IDENTITY`)
	require.NoError(t, err)

	d1, _ := core.ParseDate("2025-08-01")
	d2, _ := core.ParseDate("2025-08-15")
	_, err = repo.CreateExpense(ctx, core.Expense{Date: d1, Amount: core.MustMoney("500"), Category: "Food", Description: "groceries"})
	require.NoError(t, err)
	id, err := repo.CreateExpense(ctx, core.Expense{Date: d2, Amount: core.MustMoney("600"), Category: "Food", Description: "dinner"})
	require.NoError(t, err)

	got, err := repo.GetExpense(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-15", got.Date.String())
	assert.Equal(t, "food", got.Category)

	engine := budget.NewEngine(repo)
	require.NoError(t, engine.Budgets().SetBudget(ctx, "2025-08", "Food", core.MustMoney("1000")))
	alerts, err := engine.BuildAlertsForPeriod(ctx, "2025-08")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Ratio.Equal(decimal.RequireFromString("1.1")))

	require.NoError(t, repo.DeleteExpense(ctx, id))
	assert.True(t, errors.Is(repo.DeleteExpense(ctx, id), core.ErrNotFound))
}
