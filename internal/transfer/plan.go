package transfer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/period"
)

// Plan is a YAML budget plan.
//
//	budgets:
//	  - period: 2025-08
//	    category: food
//	    amount: "1000"
type Plan struct {
	Budgets []PlanEntry `yaml:"budgets"`
}

type PlanEntry struct {
	Period   string `yaml:"period"`
	Category string `yaml:"category"`
	Amount   Amount `yaml:"amount"`
}

// Amount accepts quoted or bare YAML numbers without going through float64.
type Amount string

func (a *Amount) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", n.Line)
	}
	*a = Amount(strings.TrimSpace(n.Value))
	return nil
}

// ReadPlan decodes a plan, rejecting unknown keys.
func ReadPlan(r io.Reader) (Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return Plan{}, nil
		}
		return Plan{}, fmt.Errorf("parse budget plan: %w", err)
	}
	return p, nil
}

// WritePlan encodes every budget of periods, sorted by period then category.
func WritePlan(ctx context.Context, w io.Writer, store *budget.Store, periods []string) error {
	var p Plan
	for _, key := range periods {
		all, err := store.GetAllBudgets(ctx, key)
		if err != nil {
			return fmt.Errorf("load budgets for %s: %w", key, err)
		}
		cats := make([]string, 0, len(all))
		for c := range all {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			label := c
			if c == core.TotalCategory {
				label = core.TotalAlias
			}
			p.Budgets = append(p.Budgets, PlanEntry{Period: key, Category: label, Amount: Amount(all[c].String())})
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("write budget plan: %w", err)
	}
	return enc.Close()
}

// Apply validates every entry first and writes nothing if any is invalid.
// The category "total" targets the whole-period budget.
func (p Plan) Apply(ctx context.Context, store *budget.Store) (int, error) {
	type entry struct {
		period, category string
		amount           core.Money
	}
	entries := make([]entry, 0, len(p.Budgets))
	var problems []string
	for i, b := range p.Budgets {
		k, err := period.Parse(strings.TrimSpace(b.Period))
		if err != nil {
			problems = append(problems, fmt.Sprintf("entry %d: %v", i+1, err))
			continue
		}
		amount, err := core.ParseMoney(string(b.Amount))
		if err != nil {
			problems = append(problems, fmt.Sprintf("entry %d: amount %q: %v", i+1, b.Amount, err))
			continue
		}
		category := core.BudgetCategory(b.Category)
		if category == "" {
			problems = append(problems, fmt.Sprintf("entry %d: empty category", i+1))
			continue
		}
		entries = append(entries, entry{period: k.String(), category: category, amount: amount})
	}
	if len(problems) > 0 {
		return 0, fmt.Errorf("%w: %s", core.ErrInvalidBudget, strings.Join(problems, "; "))
	}

	for i, e := range entries {
		if err := store.SetBudget(ctx, e.period, e.category, e.amount); err != nil {
			return i, fmt.Errorf("set budget %s/%s: %w", e.period, e.category, err)
		}
	}
	return len(entries), nil
}
