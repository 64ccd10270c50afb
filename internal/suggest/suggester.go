// Package suggest predicts an expense category from its description and
// amount, using a model trained on previously stored expenses.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// Source supplies training data.
type Source interface {
	ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
}

const (
	DefaultMinExamples    = 3
	DefaultCacheSize      = 512
	DefaultCacheTTL       = time.Hour
	DefaultRetrainTimeout = 30 * time.Second
)

type Suggester struct {
	source      Source
	minExamples int
	timeout     time.Duration
	logger      *applog.Logger

	mu    sync.RWMutex
	model *Model

	cache *cache.LRUCache[string]
	group singleflight.Group
}

type Option func(*Suggester)

// WithMinExamples sets how many usable records are needed before a model is
// trusted. Below that Suggest returns no suggestion.
func WithMinExamples(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.minExamples = n
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Suggester) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithCache(c *cache.LRUCache[string]) Option {
	return func(s *Suggester) {
		if c != nil {
			s.cache = c
		}
	}
}

func New(source Source, opts ...Option) *Suggester {
	s := &Suggester{
		source:      source,
		minExamples: DefaultMinExamples,
		timeout:     DefaultRetrainTimeout,
		logger:      applog.Default(applog.ComponentSuggest),
		cache:       cache.NewLRUCache[string](DefaultCacheSize, DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns a category, or false when no model has been trained yet.
func (s *Suggester) Suggest(description string, amount core.Money) (string, bool) {
	s.mu.RLock()
	m := s.model
	s.mu.RUnlock()
	if m == nil {
		return "", false
	}

	key := strings.ToLower(strings.TrimSpace(description)) + "|" + amountBucket(amount)
	if label, ok := s.cache.Get(key); ok {
		return label, true
	}
	label, ok := m.Predict(description, amount)
	if ok {
		s.cache.Set(key, label)
	}
	return label, ok
}

// Trained reports whether a model is loaded.
func (s *Suggester) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// Cache exposes the prediction cache so it can be registered for cleanup.
func (s *Suggester) Cache() *cache.LRUCache[string] {
	return s.cache
}

// Retrain rebuilds the model from every stored expense. Concurrent calls
// share a single run.
func (s *Suggester) Retrain(ctx context.Context) error {
	_, err, _ := s.group.Do("retrain", func() (any, error) {
		expenses, err := s.source.ListExpenses(ctx, core.ExpenseFilter{})
		if err != nil {
			return nil, fmt.Errorf("load training data: %w", err)
		}
		examples := make([]Example, 0, len(expenses))
		for _, e := range expenses {
			examples = append(examples, Example{Description: e.Description, Amount: e.Amount, Category: e.Category})
		}
		s.Load(examples)
		return nil, nil
	})
	return err
}

// Load trains on examples and swaps the model in, clearing cached
// predictions. Too few usable examples unloads the model.
func (s *Suggester) Load(examples []Example) {
	m := Train(examples)
	if m != nil && m.docs < s.minExamples {
		m = nil
	}
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
	s.cache.Purge()

	if m == nil {
		s.logger.Debug("Suggestion model not trained",
			applog.FieldOperation, applog.OpTrain, "examples", len(examples), "min_examples", s.minExamples)
		return
	}
	s.logger.Info("Suggestion model trained",
		applog.FieldOperation, applog.OpTrain, "examples", m.docs, "classes", len(m.classes))
}

// RetrainAsync starts Retrain on a background goroutine and returns at once.
// Failures are logged.
func (s *Suggester) RetrainAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Retrain(ctx); err != nil {
			s.logger.Warn("Suggestion model retrain failed",
				applog.FieldOperation, applog.OpTrain, applog.FieldError, err)
		}
	}()
}
