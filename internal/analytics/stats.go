// Package analytics computes summary statistics, spend series, and
// anomaly hints over stored expenses.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/storage"
)

// Reader is the read side of a repository used by analytics.
type Reader interface {
	storage.ExpenseReader
	budget.SpendReader
}

// Summary mirrors the dashboard figures for a filtered set of expenses.
type Summary struct {
	TotalSpent         core.Money `json:"total_spent"`
	TopCategory        string     `json:"top_category,omitempty"`
	TopCategoryAmount  core.Money `json:"top_category_amount"`
	HighestSpend       string     `json:"highest_spend,omitempty"`
	HighestSpendAmount core.Money `json:"highest_spend_amount"`
	AverageDaily       core.Money `json:"average_daily"`
	Count              int        `json:"count"`
}

// MonthTotal is the spend of one calendar month.
type MonthTotal struct {
	Month  string     `json:"month"`
	Amount core.Money `json:"amount"`
}

// Filters lists the months and categories that have data.
type Filters struct {
	Months     []string `json:"months"`
	Categories []string `json:"categories"`
}

// Summarize computes a Summary. Ties on the top category resolve to the
// alphabetically first name; ties on the highest spend to the earliest.
func Summarize(expenses []core.Expense) Summary {
	s := Summary{Count: len(expenses)}
	if len(expenses) == 0 {
		return s
	}

	byCategory := map[string]decimal.Decimal{}
	byDay := map[string]decimal.Decimal{}
	total := decimal.Zero
	highest := expenses[0]
	for _, e := range expenses {
		total = total.Add(e.Amount.Amount)
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount.Amount)
		byDay[e.Date.String()] = byDay[e.Date.String()].Add(e.Amount.Amount)
		if e.Amount.Amount.GreaterThan(highest.Amount.Amount) ||
			(e.Amount.Amount.Equal(highest.Amount.Amount) && e.Date.Before(highest.Date.Time)) {
			highest = e
		}
	}

	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	top := cats[0]
	for _, c := range cats[1:] {
		if byCategory[c].GreaterThan(byCategory[top]) {
			top = c
		}
	}

	s.TotalSpent = core.NewMoney(total.Round(2))
	s.TopCategory = top
	s.TopCategoryAmount = core.NewMoney(byCategory[top].Round(2))
	s.HighestSpend = fmt.Sprintf("%s (%s)", highest.Description, highest.Category)
	s.HighestSpendAmount = core.NewMoney(highest.Amount.Amount.Round(2))
	s.AverageDaily = core.NewMoney(total.Div(decimal.NewFromInt(int64(len(byDay)))).Round(2))
	return s
}

type Service struct {
	repo     Reader
	detector Detector
}

func NewService(repo Reader, detector Detector) *Service {
	return &Service{repo: repo, detector: detector}
}

// Summary filters by an optional month key, category, and minimum amount.
func (s *Service) Summary(ctx context.Context, month, category string, minAmount core.Money) (Summary, error) {
	f := core.ExpenseFilter{Category: category, MinAmount: minAmount}
	if month != "" {
		k, err := period.Parse(month)
		if err != nil {
			return Summary{}, err
		}
		f.From, f.To = k.Range()
	}
	expenses, err := s.repo.ListExpenses(ctx, f)
	if err != nil {
		return Summary{}, fmt.Errorf("list expenses: %w", err)
	}
	return Summarize(expenses), nil
}

// MonthlyTrend returns the totals of the n months ending with end, oldest first.
func (s *Service) MonthlyTrend(ctx context.Context, end period.Key, n int) ([]MonthTotal, error) {
	if end.Kind != period.Month {
		return nil, fmt.Errorf("%w: monthly trend needs a month key", core.ErrInvalidPeriodFormat)
	}
	out := make([]MonthTotal, n)
	k := end
	for i := n - 1; i >= 0; i-- {
		start, stop := k.Range()
		sum, err := s.repo.SumAmounts(ctx, budget.SumQuery{Start: start, End: stop})
		if err != nil {
			return nil, fmt.Errorf("sum %s: %w", k, err)
		}
		out[i] = MonthTotal{Month: k.String(), Amount: sum}
		k = k.Previous()
	}
	return out, nil
}

// CategoryBreakdown returns per-category totals of a period, largest first.
func (s *Service) CategoryBreakdown(ctx context.Context, periodKey string) ([]core.CategoryAmount, error) {
	start, end, err := period.Range(periodKey)
	if err != nil {
		return nil, err
	}
	return s.repo.CategoryTotals(ctx, start, end)
}

// Filters returns months with data, newest first, and sorted categories.
func (s *Service) Filters(ctx context.Context) (Filters, error) {
	expenses, err := s.repo.ListExpenses(ctx, core.ExpenseFilter{})
	if err != nil {
		return Filters{}, fmt.Errorf("list expenses: %w", err)
	}
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return Filters{}, fmt.Errorf("list categories: %w", err)
	}
	seen := map[string]bool{}
	months := make([]string, 0)
	for _, e := range expenses {
		m := period.MonthKey(e.Date)
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return Filters{Months: months, Categories: cats}, nil
}

// Anomalies runs the configured detector over daily totals in [from, to].
func (s *Service) Anomalies(ctx context.Context, from, to core.Date) ([]Anomaly, error) {
	return s.AnomaliesWith(ctx, s.detector, from, to)
}

// AnomaliesWith runs d instead of the configured detector.
func (s *Service) AnomaliesWith(ctx context.Context, d Detector, from, to core.Date) ([]Anomaly, error) {
	daily, err := s.repo.DailyTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	return d.Detect(daily), nil
}

// Detector returns the configured detector.
func (s *Service) Detector() Detector {
	return s.detector
}
