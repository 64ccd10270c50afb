package budget

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/period"
)

// Candidate is a transaction not yet committed. ExcludeID names the stored
// transaction it replaces on update, zero for an insert.
type Candidate struct {
	Category  string
	Amount    core.Money
	Date      core.Date
	ExcludeID int64
}

// ProjectBudget evaluates every budget the candidate would count against:
// the total and category budgets of both the month and the ISO week holding
// its date. Only non-ok projections are returned.
func (e *Engine) ProjectBudget(ctx context.Context, c Candidate) ([]Alert, error) {
	cat := core.NormalizeCategory(c.Category)
	var alerts []Alert
	for _, kind := range []period.Kind{period.Month, period.Week} {
		k := period.ForDate(kind, c.Date)
		budgets, err := e.budgets.GetAllBudgets(ctx, k.String())
		if err != nil {
			return nil, err
		}
		scopes := []string{core.TotalCategory}
		if cat != "" && cat != core.TotalCategory {
			scopes = append(scopes, cat)
		}
		for _, scope := range scopes {
			limit, ok := budgets[scope]
			if !ok || !limit.Amount.IsPositive() {
				continue
			}
			a, err := e.projectScope(ctx, k, scope, limit, c)
			if err != nil {
				return nil, err
			}
			if a.Severity != SeverityOK {
				alerts = append(alerts, a)
			}
		}
	}
	return alerts, nil
}

func (e *Engine) projectScope(ctx context.Context, k period.Key, scope string, limit core.Money, c Candidate) (Alert, error) {
	filter := scope
	if scope == core.TotalCategory {
		filter = ""
	}
	baseline, err := e.agg.sumForKey(ctx, k, filter, c.ExcludeID)
	if err != nil {
		return Alert{}, fmt.Errorf("project %s for %s: %w", scopeLabel(scope), k, err)
	}
	projected := baseline.Add(c.Amount)
	a := Alert{Scope: scope, Label: scopeLabel(scope), Period: k.String(), Used: projected, Limit: limit}
	a.Severity, a.Ratio = e.thresholds.Evaluate(projected, limit)
	a.Message = fmt.Sprintf("%s: adding %s would bring %s to %s / %s for %s (%s)",
		strings.ToUpper(a.Severity.String()), c.Amount, a.Label, projected, limit, a.Period, percent(a.Ratio))
	return a, nil
}

// CheckProjectedBudget returns one warning per projected budget reaching
// the warning tier or above. excludeID is the id of the transaction being
// edited, or zero for a fresh insert.
func (e *Engine) CheckProjectedBudget(ctx context.Context, category string, amount core.Money, date core.Date, excludeID int64) ([]string, error) {
	alerts, err := e.ProjectBudget(ctx, Candidate{
		Category:  category,
		Amount:    amount,
		Date:      date,
		ExcludeID: excludeID,
	})
	if err != nil {
		return nil, err
	}
	warnings := make([]string, 0, len(alerts))
	for _, a := range alerts {
		if a.Severity >= SeverityWarning {
			warnings = append(warnings, a.Message)
		}
	}
	return warnings, nil
}
