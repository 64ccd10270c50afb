package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/period"
)

// Meta keys holding the whole-period limits in the legacy schema.
const (
	legacyTotalKey  = "__TOTAL_BUDGET__"
	legacyWeeklyKey = "__WEEKLY_BUDGET__"
)

// ErrAlreadyImported is returned when the legacy source was imported before.
var ErrAlreadyImported = errors.New("legacy database already imported")

// LegacyReport summarizes a legacy import.
type LegacyReport struct {
	Expenses int
	Budgets  int
	Skipped  int
}

// ImportLegacy copies a legacy database into the repository in a single
// transaction. Legacy expenses are copied as-is with new ids. The
// period-less budgets(category, limit_amount) table and the
// __TOTAL_BUDGET__ meta row are assigned to month; __WEEKLY_BUDGET__ is
// assigned to week. A period-aware legacy budgets table is copied with its
// own periods. Non-positive limits are skipped since they mean "no limit".
func (r *SQLiteRepository) ImportLegacy(ctx context.Context, legacyPath string, month, week period.Key) (LegacyReport, error) {
	var report LegacyReport
	if month.Kind != period.Month || week.Kind != period.Week {
		return report, fmt.Errorf("%w: legacy import needs a month and a week key", core.ErrInvalidPeriodFormat)
	}
	source, err := filepath.Abs(legacyPath)
	if err != nil {
		return report, fmt.Errorf("resolve legacy path: %w", err)
	}

	legacy, err := sql.Open("sqlite", "file:"+source+"?mode=ro")
	if err != nil {
		return report, fmt.Errorf("open legacy database: %w", err)
	}
	defer legacy.Close()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return report, unavailable("begin legacy import", err)
	}
	defer tx.Rollback()

	var seen int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM legacy_imports WHERE source = ?`, source).Scan(&seen); err != nil {
		return report, unavailable("check legacy import", err)
	}
	if seen > 0 {
		return report, fmt.Errorf("%s: %w", source, ErrAlreadyImported)
	}

	if err := importLegacyExpenses(ctx, legacy, tx, &report); err != nil {
		return report, err
	}
	if err := importLegacyBudgets(ctx, legacy, tx, month, &report); err != nil {
		return report, err
	}
	if err := importLegacyMeta(ctx, legacy, tx, month, week, &report); err != nil {
		return report, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO legacy_imports (source, expenses, budgets) VALUES (?, ?, ?)`,
		source, report.Expenses, report.Budgets); err != nil {
		return report, unavailable("record legacy import", err)
	}
	if err := tx.Commit(); err != nil {
		return report, unavailable("commit legacy import", err)
	}

	slog.InfoContext(ctx, "Legacy database imported",
		"source", source,
		"expenses", report.Expenses,
		"budgets", report.Budgets,
		"skipped", report.Skipped)
	return report, nil
}

func legacyTableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("inspect legacy table %s: %w", table, err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("inspect legacy table %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

// legacyAmount parses a REAL column read back as text.
func legacyAmount(s string) (core.Money, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return core.Money{}, false
	}
	return core.NewMoney(d), true
}

func importLegacyExpenses(ctx context.Context, legacy *sql.DB, tx *sql.Tx, report *LegacyReport) error {
	cols, err := legacyTableColumns(ctx, legacy, "expenses")
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	rows, err := legacy.QueryContext(ctx,
		`SELECT date, CAST(amount AS TEXT), category, description FROM expenses ORDER BY id`)
	if err != nil {
		return fmt.Errorf("read legacy expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date, amount, category, description string
		if err := rows.Scan(&date, &amount, &category, &description); err != nil {
			return fmt.Errorf("read legacy expenses: %w", err)
		}
		e := core.Expense{Category: category, Description: description}
		d, derr := core.ParseDate(date)
		m, ok := legacyAmount(amount)
		e.Date, e.Amount = d, m
		if derr != nil || !ok || e.Validate() != nil {
			report.Skipped++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (date, amount, category, description) VALUES (?, ?, ?, ?)`,
			e.Date.String(), e.Amount.Amount.String(), core.NormalizeCategory(e.Category), strings.TrimSpace(e.Description)); err != nil {
			return unavailable("import legacy expense", err)
		}
		report.Expenses++
	}
	return rows.Err()
}

func importLegacyBudgets(ctx context.Context, legacy *sql.DB, tx *sql.Tx, month period.Key, report *LegacyReport) error {
	cols, err := legacyTableColumns(ctx, legacy, "budgets")
	if err != nil {
		return err
	}
	var query string
	switch {
	case cols["period"] && cols["amount"]:
		query = `SELECT period, category, CAST(amount AS TEXT) FROM budgets`
	case cols["limit_amount"]:
		query = `SELECT ?, category, CAST(limit_amount AS TEXT) FROM budgets`
	default:
		return nil
	}

	var args []any
	if !cols["period"] {
		args = append(args, month.String())
	}
	rows, err := legacy.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("read legacy budgets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p, category, amount string
		if err := rows.Scan(&p, &category, &amount); err != nil {
			return fmt.Errorf("read legacy budgets: %w", err)
		}
		key, perr := period.Parse(strings.TrimSpace(p))
		m, ok := legacyAmount(amount)
		cat := legacyCategory(category)
		if perr != nil || !ok || cat == "" {
			report.Skipped++
			continue
		}
		if err := upsertBudgetTx(ctx, tx, key.String(), cat, m); err != nil {
			return err
		}
		report.Budgets++
	}
	return rows.Err()
}

// legacyCategory maps the period-aware table's "total" spelling to the
// sentinel.
func legacyCategory(category string) string {
	if c := core.NormalizeCategory(category); c == strings.ToLower(legacyTotalKey) {
		return core.TotalCategory
	}
	return core.BudgetCategory(category)
}

func importLegacyMeta(ctx context.Context, legacy *sql.DB, tx *sql.Tx, month, week period.Key, report *LegacyReport) error {
	cols, err := legacyTableColumns(ctx, legacy, "meta")
	if err != nil {
		return err
	}
	if !cols["key"] || !cols["value"] {
		return nil
	}
	targets := map[string]period.Key{legacyTotalKey: month, legacyWeeklyKey: week}
	for metaKey, key := range targets {
		var value string
		err := legacy.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaKey).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read legacy meta %s: %w", metaKey, err)
		}
		m, ok := legacyAmount(value)
		if !ok {
			report.Skipped++
			continue
		}
		if err := upsertBudgetTx(ctx, tx, key.String(), core.TotalCategory, m); err != nil {
			return err
		}
		report.Budgets++
	}
	return nil
}

func upsertBudgetTx(ctx context.Context, tx *sql.Tx, p, category string, amount core.Money) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO budgets (period, category, amount) VALUES (?, ?, ?)
		 ON CONFLICT(period, category) DO UPDATE SET amount = excluded.amount, updated_at = CURRENT_TIMESTAMP`,
		p, category, amount.Amount.String())
	if err != nil {
		return unavailable("import legacy budget", err)
	}
	return nil
}
