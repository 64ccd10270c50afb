package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/budget"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]budget.Alert
	err     error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, alerts []budget.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, alerts)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func setup(t *testing.T) (*AlertWorker, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.New()
	engine := budget.NewEngine(store)
	ctx := context.Background()
	require.NoError(t, engine.Budgets().SetBudget(ctx, "2025-08", "food", core.MustMoney("1000")))
	_, err := store.Seed(ctx,
		core.Expense{Date: core.NewDate(2025, 8, 1), Amount: core.MustMoney("500"), Category: "food", Description: "groceries"},
		core.Expense{Date: core.NewDate(2025, 8, 15), Amount: core.MustMoney("400"), Category: "food", Description: "dinner"},
	)
	require.NoError(t, err)

	rec := &recordingNotifier{}
	w := NewAlertWorker(engine, rec, Config{SweepInterval: time.Hour})
	w.now = func() time.Time { return time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC) }
	return w, store, rec
}

func event(date string) *amqp.ExpenseEvent {
	return &amqp.ExpenseEvent{ID: 1, Action: amqp.ActionCreated, Date: date, Category: "food"}
}

func TestHandleEventDeduplicates(t *testing.T) {
	w, _, rec := setup(t)
	ctx := context.Background()

	require.NoError(t, w.HandleEvent(ctx, event("2025-08-15")))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, budget.SeverityWarning, rec.batches[0][0].Severity)

	require.NoError(t, w.HandleEvent(ctx, event("2025-08-16")))
	assert.Equal(t, 1, rec.count(), "same severity is not notified twice")
}

func TestHandleEventEscalation(t *testing.T) {
	w, store, rec := setup(t)
	ctx := context.Background()

	require.NoError(t, w.HandleEvent(ctx, event("2025-08-15")))
	_, err := store.Seed(ctx, core.Expense{Date: core.NewDate(2025, 8, 18), Amount: core.MustMoney("200"), Category: "food", Description: "party"})
	require.NoError(t, err)

	require.NoError(t, w.HandleEvent(ctx, event("2025-08-18")))
	require.Equal(t, 2, rec.count())
	assert.Equal(t, budget.SeverityDanger, rec.batches[1][0].Severity)
}

func TestHandleEventMovedExpenseTouchesBothPeriods(t *testing.T) {
	w, _, rec := setup(t)
	ev := event("2025-09-02")
	ev.Action = amqp.ActionUpdated
	ev.PreviousDate = "2025-08-15"

	require.NoError(t, w.HandleEvent(context.Background(), ev))
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "2025-08", rec.batches[0][0].Period)
}

func TestHandleEventDropsMalformedDate(t *testing.T) {
	w, _, rec := setup(t)
	assert.NoError(t, w.HandleEvent(context.Background(), event("yesterday")))
	assert.Zero(t, rec.count())
}

func TestNotifyFailureIsRetried(t *testing.T) {
	w, _, rec := setup(t)
	ctx := context.Background()
	rec.err = errors.New("sheets down")

	err := w.HandleEvent(ctx, event("2025-08-15"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets down")

	rec.err = nil
	require.NoError(t, w.HandleEvent(ctx, event("2025-08-15")))
	assert.Equal(t, 1, rec.count())
}

func TestSweepUsesCurrentPeriods(t *testing.T) {
	w, _, rec := setup(t)
	n, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rec.count())

	w.now = func() time.Time { return time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC) }
	n, err = w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerLogsThroughContextLogger(t *testing.T) {
	w, _, _ := setup(t)
	var out bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Output: &out, Component: applog.ComponentWorker})
	ctx := applog.WithLogger(context.Background(), logger)

	require.NoError(t, w.HandleEvent(ctx, event("2025-08-15")))
	w.sweepOnce(ctx)

	for _, want := range []string{
		"component=worker",
		"operation=consume",
		"operation=notify",
		"period=2025-08",
		"count=1",
		"operation=sweep",
	} {
		assert.Contains(t, out.String(), want)
	}
}

func TestPeriodsFor(t *testing.T) {
	got := periodsFor(core.NewDate(2025, 8, 1), core.NewDate(2025, 8, 2), core.NewDate(2024, 12, 30))
	assert.Equal(t, []string{"2025-08", "2024-12", "2025-W31", "2025-W01"}, got)
}

type fakeConsumer struct {
	events []*amqp.ExpenseEvent
	done   chan struct{}
}

func (f *fakeConsumer) ConsumeExpenseEvents(ctx context.Context, handler amqp.Handler) error {
	for _, ev := range f.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	close(f.done)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, rec := setup(t)
	consumer := &fakeConsumer{events: []*amqp.ExpenseEvent{event("2025-08-15")}, done: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, consumer) }()

	select {
	case <-consumer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not run")
	}
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 1, rec.count())
}
