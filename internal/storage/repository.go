// Package storage persists expenses and budgets in SQLite and defines the
// ports shared by every persistence backend.
//
// Amounts are stored as decimal TEXT and summed in Go so that aggregates are
// exact; SQLite's SUM would go through floating point.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/budget"
	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

var _ Repository = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the main pool opens
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (date, amount, category, description) VALUES (?, ?, ?, ?)`,
		e.Date.String(), e.Amount.Amount.String(), core.NormalizeCategory(e.Category), strings.TrimSpace(e.Description))
	if err != nil {
		return 0, unavailable("create expense", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("create expense", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", id,
		"amount", e.Amount.String(),
		"category", e.Category,
		"date", e.Date.String())

	return id, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET date = ?, amount = ?, category = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		e.Date.String(), e.Amount.Amount.String(), core.NormalizeCategory(e.Category), strings.TrimSpace(e.Description), e.ID)
	if err != nil {
		return unavailable("update expense", err)
	}
	return affected(res, "expense", e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete expense", err)
	}
	return affected(res, "expense", id)
}

func affected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return nil
}

const expenseColumns = `id, date, amount, category, description`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e            core.Expense
		date, amount string
	)
	if err := row.Scan(&e.ID, &date, &amount, &e.Category, &e.Description); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d date %q: %w", e.ID, date, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d amount %q: %w", e.ID, amount, err)
	}
	e.Date = d
	e.Amount = core.NewMoney(amt)
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, unavailable("get expense", err)
	}
	return e, nil
}

// whereClause builds the shared range/category predicate.
func whereClause(from, to core.Date, category string, excludeID int64) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, from.String())
	}
	if !to.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, to.String())
	}
	if category != "" {
		conds = append(conds, "category = ?")
		args = append(args, core.NormalizeCategory(category))
	}
	if excludeID != 0 {
		conds = append(conds, "id <> ?")
		args = append(args, excludeID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	where, args := whereClause(f.From, f.To, f.Category, 0)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses`+where+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, unavailable("list expenses", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, unavailable("scan expense", err)
		}
		// Amount comparison happens in Go: the column is TEXT.
		if !f.MinAmount.IsZero() && e.Amount.Amount.LessThan(f.MinAmount.Amount) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list expenses", err)
	}
	return out, nil
}

// SumAmounts implements budget.SpendReader.
func (r *SQLiteRepository) SumAmounts(ctx context.Context, q budget.SumQuery) (core.Money, error) {
	where, args := whereClause(q.Start, q.End, q.Category, q.ExcludeID)
	rows, err := r.db.QueryContext(ctx, `SELECT amount FROM expenses`+where, args...)
	if err != nil {
		return core.Money{}, unavailable("sum amounts", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return core.Money{}, unavailable("sum amounts", err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return core.Money{}, fmt.Errorf("sum amounts: bad amount %q: %w", s, err)
		}
		sum = sum.Add(d)
	}
	if err := rows.Err(); err != nil {
		return core.Money{}, unavailable("sum amounts", err)
	}
	return core.NewMoney(sum), nil
}

func (r *SQLiteRepository) CategoryTotals(ctx context.Context, start, end core.Date) ([]core.CategoryAmount, error) {
	where, args := whereClause(start, end, "", 0)
	rows, err := r.db.QueryContext(ctx, `SELECT category, amount FROM expenses`+where, args...)
	if err != nil {
		return nil, unavailable("category totals", err)
	}
	defer rows.Close()

	totals := map[string]decimal.Decimal{}
	for rows.Next() {
		var cat, s string
		if err := rows.Scan(&cat, &s); err != nil {
			return nil, unavailable("category totals", err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("category totals: bad amount %q: %w", s, err)
		}
		totals[cat] = totals[cat].Add(d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("category totals", err)
	}

	out := make([]core.CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.NewMoney(amount)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Amount.Cmp(out[j].Amount.Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *SQLiteRepository) DailyTotals(ctx context.Context, start, end core.Date) ([]core.DailyTotal, error) {
	where, args := whereClause(start, end, "", 0)
	rows, err := r.db.QueryContext(ctx, `SELECT date, amount FROM expenses`+where+` ORDER BY date`, args...)
	if err != nil {
		return nil, unavailable("daily totals", err)
	}
	defer rows.Close()

	out := make([]core.DailyTotal, 0)
	for rows.Next() {
		var date, s string
		if err := rows.Scan(&date, &s); err != nil {
			return nil, unavailable("daily totals", err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("daily totals: bad amount %q: %w", s, err)
		}
		if n := len(out); n > 0 && out[n-1].Date.String() == date {
			out[n-1].Amount = out[n-1].Amount.Add(core.NewMoney(d))
			continue
		}
		day, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("daily totals: bad date %q: %w", date, err)
		}
		out = append(out, core.DailyTotal{Date: day, Amount: core.NewMoney(d)})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("daily totals", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM expenses ORDER BY category`)
	if err != nil {
		return nil, unavailable("list categories", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, unavailable("list categories", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list categories", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, period, category string, amount core.Money) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (period, category, amount) VALUES (?, ?, ?)
		 ON CONFLICT(period, category) DO UPDATE SET amount = excluded.amount, updated_at = CURRENT_TIMESTAMP`,
		period, category, amount.Amount.String())
	if err != nil {
		return unavailable("upsert budget", err)
	}
	slog.InfoContext(ctx, "Budget saved", "period", period, "category", category, "amount", amount.String())
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, period, category string) (core.Money, bool, error) {
	var s string
	err := r.db.QueryRowContext(ctx,
		`SELECT amount FROM budgets WHERE period = ? AND category = ?`, period, category).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, false, nil
	}
	if err != nil {
		return core.Money{}, false, unavailable("get budget", err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, false, fmt.Errorf("get budget: bad amount %q: %w", s, err)
	}
	return core.NewMoney(d), true, nil
}

func (r *SQLiteRepository) GetAllBudgets(ctx context.Context, period string) (map[string]core.Money, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT category, amount FROM budgets WHERE period = ?`, period)
	if err != nil {
		return nil, unavailable("get budgets", err)
	}
	defer rows.Close()

	out := map[string]core.Money{}
	for rows.Next() {
		var cat, s string
		if err := rows.Scan(&cat, &s); err != nil {
			return nil, unavailable("get budgets", err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("get budgets: bad amount %q: %w", s, err)
		}
		out[cat] = core.NewMoney(d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get budgets", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, period, category string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE period = ? AND category = ?`, period, category)
	if err != nil {
		return false, unavailable("delete budget", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("delete budget", err)
	}
	return n > 0, nil
}
