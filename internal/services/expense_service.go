package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/budget"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// UncategorizedCategory is used when no category was given and none could
// be suggested.
const UncategorizedCategory = "uncategorized"

const publishTimeout = 10 * time.Second

var writeOps = map[amqp.Action]string{
	amqp.ActionCreated: applog.OpCreate,
	amqp.ActionUpdated: applog.OpUpdate,
	amqp.ActionDeleted: applog.OpDelete,
}

// Publisher announces committed writes.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
}

// Suggester fills in missing categories and learns from new writes.
type Suggester interface {
	Suggest(description string, amount core.Money) (string, bool)
	RetrainAsync()
}

// Result is the outcome of a write or a dry-run check.
type Result struct {
	Expense   core.Expense `json:"expense"`
	Warnings  []string     `json:"warnings"`
	Suggested bool         `json:"suggested,omitempty"`
}

// ExpenseService validates expense writes, runs the projected budget check
// before committing, and after the commit publishes an event and schedules a
// classifier retrain. Neither follow-up can fail the write.
type ExpenseService struct {
	storage   storage.Repository
	engine    *budget.Engine
	publisher Publisher
	suggester Suggester
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

type Option func(*ExpenseService)

func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithSuggester(sg Suggester) Option {
	return func(s *ExpenseService) { s.suggester = sg }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ExpenseService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewExpenseService(repo storage.Repository, engine *budget.Engine, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		storage: repo,
		engine:  engine,
		logger:  applog.Default(applog.ComponentExpense),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// Check validates e and returns the projected budget warnings without
// writing. A non-zero e.ID is excluded from the baseline.
func (s *ExpenseService) Check(ctx context.Context, e core.Expense) (Result, error) {
	e, suggested, err := s.prepare(e)
	if err != nil {
		return Result{}, err
	}
	warnings, err := s.engine.CheckProjectedBudget(ctx, e.Category, e.Amount, e.Date, e.ID)
	if err != nil {
		return Result{}, fmt.Errorf("check budget: %w", err)
	}
	return Result{Expense: e, Warnings: warnings, Suggested: suggested}, nil
}

// CreateExpense stores e and returns it with its ID and any budget warnings
// computed before the write.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (Result, error) {
	e.ID = 0
	res, err := s.Check(ctx, e)
	if err != nil {
		return Result{}, err
	}

	id, err := s.storage.CreateExpense(ctx, res.Expense)
	if err != nil {
		return Result{}, fmt.Errorf("save expense: %w", err)
	}
	res.Expense.ID = id

	s.afterWrite(ctx, res.Expense, amqp.NewExpenseEvent(amqp.ActionCreated, res.Expense))
	return res, nil
}

// UpdateExpense replaces the stored record with e. The budget check excludes
// the record's current amount.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (Result, error) {
	if e.ID <= 0 {
		return Result{}, fmt.Errorf("%w: missing id", core.ErrInvalidExpense)
	}
	old, err := s.storage.GetExpense(ctx, e.ID)
	if err != nil {
		return Result{}, fmt.Errorf("load expense %d: %w", e.ID, err)
	}

	res, err := s.Check(ctx, e)
	if err != nil {
		return Result{}, err
	}
	if err := s.storage.UpdateExpense(ctx, res.Expense); err != nil {
		return Result{}, fmt.Errorf("update expense: %w", err)
	}

	event := amqp.NewExpenseEvent(amqp.ActionUpdated, res.Expense)
	event.PreviousDate = old.Date.String()
	s.afterWrite(ctx, res.Expense, event)
	return res, nil
}

// DeleteExpense removes an expense. Deleting a missing ID returns ErrNotFound.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	old, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("load expense %d: %w", id, err)
	}
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.afterWrite(ctx, old, amqp.NewExpenseEvent(amqp.ActionDeleted, old))
	return nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

func (s *ExpenseService) ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, f)
}

// Suggest returns a category for a description, or "" when the classifier
// has nothing to offer.
func (s *ExpenseService) Suggest(description string, amount core.Money) (string, bool) {
	if s.suggester == nil {
		return "", false
	}
	return s.suggester.Suggest(description, amount)
}

func (s *ExpenseService) prepare(e core.Expense) (core.Expense, bool, error) {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = core.NormalizeCategory(e.Category)

	suggested := false
	if e.Category == "" && e.Description != "" {
		if label, ok := s.Suggest(e.Description, e.Amount); ok {
			e.Category, suggested = label, true
		} else {
			e.Category = UncategorizedCategory
		}
	}

	if err := e.Validate(); err != nil {
		return e, false, fmt.Errorf("%w: %w", core.ErrInvalidExpense, err)
	}
	return e, suggested, nil
}

// afterWrite runs the post-commit follow-ups. The publish is detached from
// the request context so a finished request does not cancel it.
func (s *ExpenseService) afterWrite(ctx context.Context, e core.Expense, event *amqp.ExpenseEvent) {
	s.events.LogExpenseWritten(ctx, writeOps[event.Action], e.ID, e.Amount.String(), e.Category, e.Date.String())

	if s.suggester != nil {
		s.suggester.RetrainAsync()
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping expense event")
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.publisher.PublishExpenseEvent(pctx, event); err != nil {
			s.events.LogError(pctx, "Failed to publish expense event", err, applog.ComponentAMQP, applog.OpPublish,
				applog.NewFields().WithExpense(e.ID, e.Amount.String(), e.Category, e.Date.String()))
		}
	}()
}

// Close closes storage and the publisher if it can be closed.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}

	return nil
}
