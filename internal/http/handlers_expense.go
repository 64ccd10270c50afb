package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type expenseJSON struct {
	ID          int64      `json:"id,omitempty"`
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Date:        e.Date,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
	}
}

// expenseRequest keeps the date as text so a bad date is a validation
// failure rather than a malformed body.
type expenseRequest struct {
	Date        string     `json:"date"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
}

func (req expenseRequest) expense(id int64) (core.Expense, error) {
	d, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", core.ErrInvalidExpense, err)
	}
	return core.Expense{
		ID:          id,
		Date:        d,
		Amount:      req.Amount,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
	}, nil
}

type writeResponse struct {
	Expense   expenseJSON `json:"expense"`
	Warnings  []string    `json:"warnings"`
	Suggested bool        `json:"suggested,omitempty"`
	DryRun    bool        `json:"dry_run,omitempty"`
}

func toWriteResponse(res services.Result) writeResponse {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return writeResponse{
		Expense:   toExpenseJSON(res.Expense),
		Warnings:  warnings,
		Suggested: res.Suggested,
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f core.ExpenseFilter
	var err error
	if f.From, err = queryDate(q, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.To, err = queryDate(q, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.MinAmount, err = queryMoney(q, "min_amount"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Limit, err = queryInt(q, "limit", 0); err != nil {
		writeError(w, r, err)
		return
	}
	f.Category = core.NormalizeCategory(queryString(q, "category"))

	ctx, cancel := s.requestContext(r)
	defer cancel()
	expenses, err := s.expenses.ListExpenses(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	e, err := s.expenses.GetExpense(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseJSON(e))
}

// handleCreateExpense stores an expense, or with ?dry_run=1 only reports
// the budget warnings it would raise.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.expense(0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if isTrue(r.URL.Query().Get("dry_run")) {
		res, err := s.expenses.Check(ctx, e)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := toWriteResponse(res)
		out.DryRun = true
		writeJSON(w, http.StatusOK, out)
		return
	}

	res, err := s.expenses.CreateExpense(ctx, e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/expenses/%d", res.Expense.ID))
	writeJSON(w, http.StatusCreated, toWriteResponse(res))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.expense(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := s.expenses.UpdateExpense(ctx, e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWriteResponse(res))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.expenses.DeleteExpense(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isTrue(v string) bool {
	switch sanitizeInput(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
