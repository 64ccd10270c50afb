// Package budget evaluates spend against per-period budget limits.
//
// Each store query an Engine issues is its own atomic unit; no transaction
// spans a full alert build. If expenses are written while a report is being
// built, the total figure and a category figure may reflect different
// snapshots. Alerts are informational and this is accepted.
package budget

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/period"
)

// TotalLabel is the display label of the whole-period budget.
const TotalLabel = "TOTAL"

// Alert is a computed, never persisted, budget status for one scope.
type Alert struct {
	Severity Severity        `json:"severity"`
	Scope    string          `json:"scope"`
	Label    string          `json:"label"`
	Period   string          `json:"period"`
	Used     core.Money      `json:"used"`
	Limit    core.Money      `json:"limit"`
	Ratio    decimal.Decimal `json:"ratio"`
	Message  string          `json:"message"`
}

// IsTotal reports whether the alert concerns the whole-period budget.
func (a Alert) IsTotal() bool {
	return a.Scope == core.TotalCategory
}

type Engine struct {
	agg        *Aggregator
	budgets    *Store
	thresholds Thresholds
}

type Option func(*Engine)

// WithThresholds overrides the default tiers. Invalid thresholds are ignored.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		if t.Validate() == nil {
			e.thresholds = t
		}
	}
}

func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		agg:        NewAggregator(repo),
		budgets:    NewStore(repo),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Budgets() *Store         { return e.budgets }
func (e *Engine) Aggregator() *Aggregator { return e.agg }
func (e *Engine) Thresholds() Thresholds  { return e.thresholds }

// BuildAlertsForPeriod returns the non-ok alerts for a period: the total
// budget first, then categories sorted by normalized name. A period without
// budgets yields an empty slice.
func (e *Engine) BuildAlertsForPeriod(ctx context.Context, periodKey string) ([]Alert, error) {
	k, err := period.Parse(periodKey)
	if err != nil {
		return nil, err
	}
	budgets, err := e.budgets.GetAllBudgets(ctx, k.String())
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(budgets))
	if limit, ok := budgets[core.TotalCategory]; ok {
		a, err := e.evaluateScope(ctx, k, core.TotalCategory, limit)
		if err != nil {
			return nil, err
		}
		if a.Severity != SeverityOK {
			alerts = append(alerts, a)
		}
	}

	for _, cat := range sortedCategories(budgets) {
		a, err := e.evaluateScope(ctx, k, cat, budgets[cat])
		if err != nil {
			return nil, err
		}
		if a.Severity != SeverityOK {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

func (e *Engine) evaluateScope(ctx context.Context, k period.Key, scope string, limit core.Money) (Alert, error) {
	a := Alert{Scope: scope, Label: scopeLabel(scope), Period: k.String(), Limit: limit}
	if !limit.Amount.IsPositive() {
		a.Severity, a.Ratio = SeverityOK, decimal.Zero
		return a, nil
	}
	filter := scope
	if scope == core.TotalCategory {
		filter = ""
	}
	used, err := e.agg.sumForKey(ctx, k, filter, 0)
	if err != nil {
		return Alert{}, fmt.Errorf("sum %s for %s: %w", a.Label, k, err)
	}
	a.Used = used
	a.Severity, a.Ratio = e.thresholds.Evaluate(used, limit)
	a.Message = formatAlert(a)
	return a, nil
}

// sortedCategories returns the non-sentinel categories in byte order.
// Categories are stored lower-cased, so the order is case-insensitive.
func sortedCategories(budgets map[string]core.Money) []string {
	cats := make([]string, 0, len(budgets))
	for c := range budgets {
		if c != core.TotalCategory {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats
}

func scopeLabel(scope string) string {
	if scope == core.TotalCategory {
		return TotalLabel
	}
	return scope
}

func phrase(s Severity) string {
	switch s {
	case SeverityDanger:
		return "over budget"
	case SeverityWarning:
		return "approaching limit"
	case SeverityInfo:
		return "on watch"
	default:
		return "within budget"
	}
}

func percent(ratio decimal.Decimal) string {
	return ratio.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func formatAlert(a Alert) string {
	return fmt.Sprintf("%s: %s %s for %s: %s / %s (%s)",
		strings.ToUpper(a.Severity.String()), a.Label, phrase(a.Severity), a.Period,
		a.Used, a.Limit, percent(a.Ratio))
}
