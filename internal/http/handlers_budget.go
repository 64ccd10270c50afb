package http

import (
	"net/http"
	"sort"

	"fintrack/internal/core"
	"fintrack/internal/period"
)

type budgetJSON struct {
	Period   string     `json:"period"`
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
}

type budgetRequest struct {
	Amount core.Money `json:"amount"`
}

// budgetCategory resolves the {category} path segment. An absent segment or
// "total" addresses the whole-period budget.
func budgetCategory(r *http.Request) string {
	c := sanitizeInput(r.PathValue("category"))
	if c == "" {
		return core.TotalCategory
	}
	return core.BudgetCategory(c)
}

func canonicalPeriod(raw string) (string, error) {
	k, err := period.Parse(sanitizeInput(raw))
	if err != nil {
		return "", err
	}
	return k.String(), nil
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	p, err := canonicalPeriod(r.PathValue("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	budgets, err := s.engine.Budgets().GetAllBudgets(ctx, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]budgetJSON, 0, len(budgets))
	for cat, amount := range budgets {
		out = append(out, budgetJSON{Period: p, Category: cat, Amount: amount})
	}
	// "__TOTAL__" sorts before every lower-cased label.
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	writeJSON(w, http.StatusOK, map[string]any{"period": p, "budgets": out})
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	p, err := canonicalPeriod(r.PathValue("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat := budgetCategory(r)
	ctx, cancel := s.requestContext(r)
	defer cancel()
	amount, ok, err := s.engine.Budgets().GetBudget(ctx, p, cat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no budget for " + p + "/" + cat})
		return
	}
	writeJSON(w, http.StatusOK, budgetJSON{Period: p, Category: cat, Amount: amount})
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	p, err := canonicalPeriod(r.PathValue("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cat := budgetCategory(r)

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if cat == core.TotalCategory {
		err = s.engine.Budgets().SetTotalBudget(ctx, p, req.Amount)
	} else {
		err = s.engine.Budgets().SetBudget(ctx, p, cat, req.Amount)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetJSON{Period: p, Category: cat, Amount: req.Amount})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	p, err := canonicalPeriod(r.PathValue("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.engine.Budgets().DeleteBudget(ctx, p, budgetCategory(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
