package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
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

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
	sent   chan struct{}
	closed bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{sent: make(chan struct{}, 16)}
}

func (p *fakePublisher) PublishExpenseEvent(_ context.Context, e *amqp.ExpenseEvent) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	p.sent <- struct{}{}
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) wait(t *testing.T) *amqp.ExpenseEvent {
	t.Helper()
	select {
	case <-p.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fakeSuggester struct {
	label    string
	retrains atomic.Int32
}

func (f *fakeSuggester) Suggest(string, core.Money) (string, bool) {
	return f.label, f.label != ""
}

func (f *fakeSuggester) RetrainAsync() { f.retrains.Add(1) }

func newService(t *testing.T, opts ...Option) (*ExpenseService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewExpenseService(store, budget.NewEngine(store), opts...), store
}

func expense(date, amount, category, desc string) core.Expense {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Expense{Date: d, Amount: core.MustMoney(amount), Category: category, Description: desc}
}

func TestCreateExpense(t *testing.T) {
	pub := newFakePublisher()
	sg := &fakeSuggester{}
	svc, store := newService(t, WithPublisher(pub), WithSuggester(sg))
	ctx := context.Background()

	res, err := svc.CreateExpense(ctx, expense("2025-08-01", "12.50", " Food ", " lunch "))
	require.NoError(t, err)
	assert.NotZero(t, res.Expense.ID)
	assert.Equal(t, "food", res.Expense.Category)
	assert.Equal(t, "lunch", res.Expense.Description)
	assert.Empty(t, res.Warnings)

	stored, err := store.GetExpense(ctx, res.Expense.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.50", stored.Amount.String())

	event := pub.wait(t)
	assert.Equal(t, amqp.ActionCreated, event.Action)
	assert.Equal(t, res.Expense.ID, event.ID)
	assert.Equal(t, "2025-08-01", event.Date)
	assert.Equal(t, int32(1), sg.retrains.Load())
}

func TestCreateExpenseInvalid(t *testing.T) {
	svc, _ := newService(t)
	tests := []struct {
		name string
		e    core.Expense
		want error
	}{
		{"empty description", expense("2025-08-01", "1", "food", "  "), core.ErrEmptyDescription},
		{"zero amount", core.Expense{Date: core.NewDate(2025, 8, 1), Category: "food", Description: "x"}, core.ErrInvalidAmount},
		{"reserved category", expense("2025-08-01", "1", "__total__", "x"), core.ErrInvalidExpense},
		{"total alias category", expense("2025-08-01", "1", "Total", "x"), core.ErrReservedCategory},
		{"zero date", core.Expense{Amount: core.MustMoney("1"), Category: "food", Description: "x"}, core.ErrInvalidExpense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateExpense(context.Background(), tt.e)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrInvalidExpense)
		})
	}
}

func TestCreateExpenseWarnsBeforeCommit(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, err := store.Seed(ctx, expense("2025-08-01", "1000", "food", "groceries"))
	require.NoError(t, err)
	require.NoError(t, svc.engine.Budgets().SetBudget(ctx, "2025-08", "food", core.MustMoney("1000")))

	res, err := svc.CreateExpense(ctx, expense("2025-08-20", "50", "Food", "dinner"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "food")

	all, err := store.ListExpenses(ctx, core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCheckDoesNotWrite(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.engine.Budgets().SetTotalBudget(ctx, "2025-08", core.MustMoney("100")))

	res, err := svc.Check(ctx, expense("2025-08-03", "95", "travel", "train"))
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 1)

	all, err := store.ListExpenses(ctx, core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateExpenseExcludesItself(t *testing.T) {
	pub := newFakePublisher()
	svc, store := newService(t, WithPublisher(pub))
	ctx := context.Background()
	ids, err := store.Seed(ctx, expense("2025-08-01", "900", "food", "groceries"))
	require.NoError(t, err)
	require.NoError(t, svc.engine.Budgets().SetBudget(ctx, "2025-08", "food", core.MustMoney("1000")))

	e := expense("2025-08-02", "950", "food", "groceries")
	e.ID = ids[0]
	res, err := svc.UpdateExpense(ctx, e)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "WARNING", "950 of 1000 once the old row is excluded")

	event := pub.wait(t)
	assert.Equal(t, amqp.ActionUpdated, event.Action)
	assert.Equal(t, "2025-08-02", event.Date)
	assert.Equal(t, "2025-08-01", event.PreviousDate)

	e.ID = 999
	_, err = svc.UpdateExpense(ctx, e)
	assert.ErrorIs(t, err, core.ErrNotFound)

	e.ID = 0
	_, err = svc.UpdateExpense(ctx, e)
	assert.ErrorIs(t, err, core.ErrInvalidExpense)
}

func TestDeleteExpense(t *testing.T) {
	pub := newFakePublisher()
	svc, store := newService(t, WithPublisher(pub))
	ctx := context.Background()
	ids, err := store.Seed(ctx, expense("2025-08-01", "5", "food", "snack"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteExpense(ctx, ids[0]))
	event := pub.wait(t)
	assert.Equal(t, amqp.ActionDeleted, event.Action)
	assert.Equal(t, "food", event.Category)

	assert.ErrorIs(t, svc.DeleteExpense(ctx, ids[0]), core.ErrNotFound)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := newFakePublisher()
	pub.err = errors.New("broker down")
	svc, store := newService(t, WithPublisher(pub))
	ctx := context.Background()

	res, err := svc.CreateExpense(ctx, expense("2025-08-01", "5", "food", "snack"))
	require.NoError(t, err)
	pub.wait(t)

	_, err = store.GetExpense(ctx, res.Expense.ID)
	assert.NoError(t, err)
}

// syncBuffer is a log sink safe for the publish goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWritesAreLoggedWithOperation(t *testing.T) {
	var out syncBuffer
	pub := newFakePublisher()
	pub.err = errors.New("broker down")
	logger := applog.New(applog.Config{Output: &out, Component: applog.ComponentExpense})
	svc, _ := newService(t, WithPublisher(pub), WithLogger(logger))
	ctx := context.Background()

	res, err := svc.CreateExpense(ctx, expense("2025-08-01", "5", "food", "snack"))
	require.NoError(t, err)
	pub.wait(t)
	require.NoError(t, svc.DeleteExpense(ctx, res.Expense.ID))
	pub.wait(t)

	assert.Contains(t, out.String(), "operation=create")
	assert.Contains(t, out.String(), "operation=delete")
	assert.Contains(t, out.String(), "component=expense")
	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "Failed to publish expense event") &&
			strings.Contains(s, "component=amqp") &&
			strings.Contains(s, "operation=publish")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMissingCategoryUsesSuggestion(t *testing.T) {
	svc, _ := newService(t, WithSuggester(&fakeSuggester{label: "groceries"}))
	res, err := svc.CreateExpense(context.Background(), expense("2025-08-01", "30", "", "supermarket"))
	require.NoError(t, err)
	assert.Equal(t, "groceries", res.Expense.Category)
	assert.True(t, res.Suggested)

	plain, _ := newService(t)
	res, err = plain.CreateExpense(context.Background(), expense("2025-08-01", "30", "", "supermarket"))
	require.NoError(t, err)
	assert.Equal(t, UncategorizedCategory, res.Expense.Category)
	assert.False(t, res.Suggested)
}

func TestExpenseService_Close(t *testing.T) {
	pub := newFakePublisher()
	svc, _ := newService(t, WithPublisher(pub))
	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)

	bare := &ExpenseService{}
	assert.NoError(t, bare.Close())
}
