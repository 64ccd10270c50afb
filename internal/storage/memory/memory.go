// Package memory keeps expenses and budgets in process memory. It backs the
// memory data backend and most package tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

type budgetKey struct {
	period   string
	category string
}

type Store struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]core.Expense
	budgets map[budgetKey]core.Money
}

func New() *Store {
	return &Store{
		items:   make(map[int64]core.Expense),
		budgets: make(map[budgetKey]core.Money),
	}
}

// Seed inserts expenses, for tests and fixtures.
func (s *Store) Seed(ctx context.Context, expenses ...core.Expense) ([]int64, error) {
	ids := make([]int64, 0, len(expenses))
	for _, e := range expenses {
		id, err := s.CreateExpense(ctx, e)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.Category = core.NormalizeCategory(e.Category)
	s.items[e.ID] = e
	return e.ID, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; !ok {
		return fmt.Errorf("expense %d: %w", e.ID, core.ErrNotFound)
	}
	e.Category = core.NormalizeCategory(e.Category)
	s.items[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) inRange(start, end core.Date) []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := core.ExpenseFilter{From: start, To: end}
	out := make([]core.Expense, 0)
	for _, e := range s.items {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) CategoryTotals(_ context.Context, start, end core.Date) ([]core.CategoryAmount, error) {
	totals := map[string]core.Money{}
	for _, e := range s.inRange(start, end) {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Amount.Cmp(out[j].Amount.Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) DailyTotals(_ context.Context, start, end core.Date) ([]core.DailyTotal, error) {
	totals := map[string]core.DailyTotal{}
	for _, e := range s.inRange(start, end) {
		key := e.Date.String()
		t := totals[key]
		t.Date = e.Date
		t.Amount = t.Amount.Add(e.Amount)
		totals[key] = t
	}
	out := make([]core.DailyTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, e := range s.items {
		seen[e.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SumAmounts(_ context.Context, q budget.SumQuery) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := core.ExpenseFilter{From: q.Start, To: q.End, Category: q.Category}
	var sum core.Money
	for _, e := range s.items {
		if q.ExcludeID != 0 && e.ID == q.ExcludeID {
			continue
		}
		if f.Match(e) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (s *Store) UpsertBudget(_ context.Context, period, category string, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[budgetKey{period, category}] = amount
	return nil
}

func (s *Store) GetBudget(_ context.Context, period, category string) (core.Money, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amount, ok := s.budgets[budgetKey{period, category}]
	return amount, ok, nil
}

func (s *Store) GetAllBudgets(_ context.Context, period string) (map[string]core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]core.Money{}
	for k, v := range s.budgets {
		if k.period == period {
			out[k.category] = v
		}
	}
	return out, nil
}

func (s *Store) DeleteBudget(_ context.Context, period, category string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := budgetKey{period, category}
	if _, ok := s.budgets[k]; !ok {
		return false, nil
	}
	delete(s.budgets, k)
	return true, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
