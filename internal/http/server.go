package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/budget"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// DefaultRequestTimeout bounds every handler's store work.
const DefaultRequestTimeout = 10 * time.Second

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators served by the API.
type Deps struct {
	Expenses *services.ExpenseService
	Engine   *budget.Engine
	Stats    *analytics.Service
	Health   Pinger
	Logger   *applog.Logger

	// Optional
	RequestTimeout time.Duration
	RateLimit      ratelimit.Config
	Now            func() time.Time
}

type Server struct {
	http.Server
	expenses *services.ExpenseService
	engine   *budget.Engine
	stats    *analytics.Service
	health   Pinger
	logger   *applog.Logger
	timeout  time.Duration
	now      func() time.Time

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		expenses: deps.Expenses,
		engine:   deps.Engine,
		stats:    deps.Stats,
		health:   deps.Health,
		logger:   deps.Logger,
		timeout:  deps.RequestTimeout,
		now:      deps.Now,
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	rl := deps.RateLimit
	if rl.RequestsPerMinute <= 0 {
		rl = ratelimit.DefaultConfig()
	}
	s.limiter = ratelimit.NewLimiter(rl)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/budgets/{period}", s.handleListBudgets)
	mux.HandleFunc("PUT /api/budgets/{period}", s.handleSetBudget)
	mux.HandleFunc("DELETE /api/budgets/{period}", s.handleDeleteBudget)
	mux.HandleFunc("GET /api/budgets/{period}/{category}", s.handleGetBudget)
	mux.HandleFunc("PUT /api/budgets/{period}/{category}", s.handleSetBudget)
	mux.HandleFunc("DELETE /api/budgets/{period}/{category}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/stats/trend", s.handleTrend)
	mux.HandleFunc("GET /api/stats/categories", s.handleBreakdown)
	mux.HandleFunc("GET /api/filters", s.handleFilters)
	mux.HandleFunc("GET /api/anomalies", s.handleAnomalies)
	mux.HandleFunc("GET /api/suggest", s.handleSuggest)

	ips := security.NewIPResolver()
	var h http.Handler = mux
	h = s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(s.logger, ips.ClientIP).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestContext derives the bounded context a handler works under.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
