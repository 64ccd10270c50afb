// Package worker runs the background alert pipeline: it reacts to expense
// events, rebuilds alerts for the periods they touch, and dispatches new
// alerts to notifiers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/budget"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/period"
)

const (
	DefaultSweepInterval = 15 * time.Minute
	DefaultDedupTTL      = 24 * time.Hour
	dedupCapacity        = 4096
)

// Consumer delivers expense events until ctx is done.
type Consumer interface {
	ConsumeExpenseEvents(ctx context.Context, handler amqp.Handler) error
}

type Config struct {
	SweepInterval time.Duration
	DedupTTL      time.Duration
}

// AlertWorker notifies each (period, scope, severity) once per dedup window.
// A scope that escalates to a higher severity is notified again.
type AlertWorker struct {
	engine   *budget.Engine
	notifier notify.Notifier
	seen     *cache.LRUCache[struct{}]
	interval time.Duration
	now      func() time.Time
}

func NewAlertWorker(engine *budget.Engine, notifier notify.Notifier, cfg Config) *AlertWorker {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	return &AlertWorker{
		engine:   engine,
		notifier: notifier,
		seen:     cache.NewLRUCache[struct{}](dedupCapacity, cfg.DedupTTL),
		interval: cfg.SweepInterval,
		now:      time.Now,
	}
}

// HandleEvent rebuilds alerts for the month and ISO week of every date the
// event touches. An error makes the broker redeliver the event.
func (w *AlertWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	logger := applog.FromContext(ctx)
	dates, err := ev.Dates()
	if err != nil {
		// Redelivery cannot fix a malformed date.
		logger.ErrorContext(ctx, "Dropping expense event",
			applog.FieldOperation, applog.OpConsume, applog.FieldExpenseID, ev.ID, applog.FieldError, err)
		return nil
	}
	logger.InfoContext(ctx, "Processing expense event",
		applog.FieldOperation, applog.OpConsume, applog.FieldExpenseID, ev.ID, "action", ev.Action, applog.FieldDate, ev.Date)
	_, err = w.processPeriods(ctx, periodsFor(dates...))
	return err
}

// Sweep re-evaluates the current month and ISO week. It catches alerts
// whose events were lost and budgets changed without an expense write.
func (w *AlertWorker) Sweep(ctx context.Context) (int, error) {
	return w.processPeriods(ctx, periodsFor(core.DateOf(w.now())))
}

func (w *AlertWorker) processPeriods(ctx context.Context, keys []string) (int, error) {
	sent := 0
	var errs []error
	for _, key := range keys {
		n, err := w.processPeriod(ctx, key)
		sent += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}

func (w *AlertWorker) processPeriod(ctx context.Context, key string) (int, error) {
	alerts, err := w.engine.BuildAlertsForPeriod(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("build alerts for %s: %w", key, err)
	}

	fresh := make([]budget.Alert, 0, len(alerts))
	keys := make([]string, 0, len(alerts))
	for _, a := range alerts {
		k := dedupKey(a)
		if w.seen.Add(k, struct{}{}) {
			fresh = append(fresh, a)
			keys = append(keys, k)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := w.notifier.Notify(ctx, fresh); err != nil {
		// Forget them so the next event or sweep retries.
		for _, k := range keys {
			w.seen.Delete(k)
		}
		return 0, fmt.Errorf("notify %d alerts for %s: %w", len(fresh), key, err)
	}
	applog.FromContext(ctx).InfoContext(ctx, "Dispatched budget alerts",
		applog.FieldOperation, applog.OpNotify, applog.FieldPeriod, key, applog.FieldCount, len(fresh))
	return len(fresh), nil
}

// Run processes events from consumer, if any, and sweeps on every interval
// until ctx is cancelled. Sweep failures are logged and retried on the next
// tick.
func (w *AlertWorker) Run(ctx context.Context, consumer Consumer) error {
	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeExpenseEvents(ctx, w.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			w.sweepOnce(ctx)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	manager := cache.NewManager()
	manager.Register(w.seen)
	g.Go(func() error {
		return manager.Run(ctx, w.interval)
	})

	return g.Wait()
}

func (w *AlertWorker) sweepOnce(ctx context.Context) {
	logger := applog.FromContext(ctx)
	n, err := w.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.ErrorContext(ctx, "Alert sweep failed", applog.FieldOperation, applog.OpSweep, applog.FieldError, err)
		}
		return
	}
	logger.DebugContext(ctx, "Alert sweep finished", applog.FieldOperation, applog.OpSweep, applog.FieldCount, n)
}

func dedupKey(a budget.Alert) string {
	return a.Period + "|" + a.Scope + "|" + a.Severity.String()
}

// periodsFor returns the distinct month and week keys of dates, months first.
func periodsFor(dates ...core.Date) []string {
	seen := map[string]bool{}
	var months, weeks []string
	for _, d := range dates {
		if m := period.MonthKey(d); !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
		if wk := period.WeekKey(d); !seen[wk] {
			seen[wk] = true
			weeks = append(weeks, wk)
		}
	}
	return append(months, weeks...)
}
