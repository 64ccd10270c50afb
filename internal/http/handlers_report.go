package http

import (
	"errors"
	"net/http"

	"fintrack/internal/analytics"
	"fintrack/internal/budget"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/period"
)

const defaultTrendMonths = 6

// handleAlerts returns the alerts of ?period= (default: the current month).
// A failing engine yields a degraded 503 rather than an empty list.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	p := queryString(r.URL.Query(), "period")
	if p == "" {
		p = period.MonthKey(core.DateOf(s.now()))
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	alerts, err := s.engine.BuildAlertsForPeriod(ctx, p)
	if errors.Is(err, core.ErrInvalidPeriodFormat) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Alert evaluation failed",
			applog.FieldPeriod, p, applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Degraded: true})
		return
	}
	if alerts == nil {
		alerts = []budget.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": p, "alerts": alerts})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minAmount, err := queryMoney(q, "min_amount")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	summary, err := s.stats.Summary(ctx, queryString(q, "month"),
		core.NormalizeCategory(queryString(q, "category")), minAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleTrend returns the monthly totals ending at ?end= (default: this month).
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	end := period.ForDate(period.Month, core.DateOf(s.now()))
	if v := queryString(q, "end"); v != "" {
		k, err := period.Parse(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		end = k
	}
	n, err := queryInt(q, "months", defaultTrendMonths)
	if err != nil || n == 0 || n > 120 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "months must be between 1 and 120"})
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	trend, err := s.stats.MonthlyTrend(ctx, end, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": trend})
}

type categoryJSON struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	p := queryString(r.URL.Query(), "period")
	if p == "" {
		p = period.MonthKey(core.DateOf(s.now()))
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	totals, err := s.stats.CategoryBreakdown(ctx, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, categoryJSON{Category: t.Name, Amount: t.Amount})
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": p, "categories": out})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	f, err := s.stats.Filters(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleAnomalies runs the configured detector, optionally overridden by
// ?method= and ?sensitivity=.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := queryDate(q, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryDate(q, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}

	d := s.stats.Detector()
	if v := queryString(q, "method"); v != "" {
		m, err := analytics.ParseMethod(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		d.Method = m
	}
	sens, ok, err := queryFloat(q, "sensitivity")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok {
		d.Sensitivity = sens
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	anomalies, err := s.stats.AnomaliesWith(ctx, d, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method":      d.Method,
		"sensitivity": d.Sensitivity,
		"anomalies":   anomalies,
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	desc := queryString(q, "description")
	if desc == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "description is required"})
		return
	}
	amount, err := queryMoney(q, "amount")
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, ok := s.expenses.Suggest(desc, amount)
	writeJSON(w, http.StatusOK, map[string]any{"category": category, "found": ok})
}
