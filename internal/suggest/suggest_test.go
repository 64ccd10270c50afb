package suggest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

func example(desc, amount, category string) Example {
	return Example{Description: desc, Amount: core.MustMoney(amount), Category: category}
}

func TestSuggestBeforeTraining(t *testing.T) {
	s := New(memory.New())
	label, ok := s.Suggest("coffee", core.MustMoney("3"))
	assert.False(t, ok)
	assert.Empty(t, label)
	assert.False(t, s.Trained())
}

func TestSuggestMajorityLabel(t *testing.T) {
	s := New(memory.New())
	s.Load([]Example{
		example("coffee at bar", "2.50", "Food"),
		example("coffee at bar", "3", "food"),
		example("coffee at bar", "2", "leisure"),
		example("train ticket", "45", "travel"),
		example("train ticket milan", "60", "travel"),
	})
	require.True(t, s.Trained())

	label, ok := s.Suggest("coffee at bar", core.MustMoney("2.80"))
	require.True(t, ok)
	assert.Equal(t, "food", label)

	label, ok = s.Suggest("Train ticket", core.MustMoney("50"))
	require.True(t, ok)
	assert.Equal(t, "travel", label)
	assert.Equal(t, 2, s.Cache().Size())
}

func TestTrainSkipsReservedCategories(t *testing.T) {
	m := Train([]Example{
		example("monthly rent", "900", "Total"),
		example("monthly rent", "900", "total"),
		example("monthly rent", "900", core.TotalCategory),
		example("rent", "850", "housing"),
	})
	require.NotNil(t, m)
	assert.Equal(t, []string{"housing"}, m.Classes())

	label, ok := m.Predict("monthly rent", core.MustMoney("900"))
	require.True(t, ok)
	assert.Equal(t, "housing", label)

	assert.Nil(t, Train([]Example{example("rent", "900", "total")}))
}

func TestSharedCacheIsBounded(t *testing.T) {
	shared := cache.NewLRUCache[string](1, time.Minute)
	s := New(memory.New(), WithCache(shared))
	s.Load([]Example{
		example("coffee", "2", "food"),
		example("coffee", "3", "food"),
		example("train", "40", "travel"),
		example("train", "50", "travel"),
	})

	_, ok := s.Suggest("coffee", core.MustMoney("2"))
	require.True(t, ok)
	_, ok = s.Suggest("train", core.MustMoney("45"))
	require.True(t, ok)
	assert.Same(t, shared, s.Cache())
	assert.Equal(t, 1, shared.Size())
}

func TestLoadBelowMinimumUnloads(t *testing.T) {
	s := New(memory.New(), WithMinExamples(3))
	s.Load([]Example{example("coffee", "2", "food"), example("coffee", "2", "food"), example("coffee", "2", "food")})
	require.True(t, s.Trained())

	s.Load([]Example{example("coffee", "2", "food"), example("", "2", "food")})
	assert.False(t, s.Trained())
	assert.Zero(t, s.Cache().Size())
}

func TestTrainIgnoresUnusableRows(t *testing.T) {
	assert.Nil(t, Train(nil))
	assert.Nil(t, Train([]Example{example("!!", "1", "food"), example("rent", "1", "")}))

	m := Train([]Example{example("rent july", "900", "Rent"), example("x", "1", "food")})
	require.NotNil(t, m)
	assert.Equal(t, []string{"rent"}, m.Classes())
}

func TestAmountBucket(t *testing.T) {
	assert.Equal(t, "amt:10", amountBucket(core.MustMoney("9.99")))
	assert.Equal(t, "amt:100", amountBucket(core.MustMoney("10")))
	assert.Equal(t, "amt:1000", amountBucket(core.MustMoney("999")))
	assert.Equal(t, "amt:1000000", amountBucket(core.MustMoney("50000000")))
}

func TestRetrainFromStore(t *testing.T) {
	store := memory.New()
	d := core.NewDate(2025, 8, 1)
	_, err := store.Seed(context.Background(),
		core.Expense{Date: d, Amount: core.MustMoney("30"), Category: "groceries", Description: "supermarket shopping"},
		core.Expense{Date: d, Amount: core.MustMoney("42"), Category: "groceries", Description: "supermarket"},
		core.Expense{Date: d, Amount: core.MustMoney("12"), Category: "transport", Description: "bus pass"},
	)
	require.NoError(t, err)

	s := New(store)
	require.NoError(t, s.Retrain(context.Background()))
	label, ok := s.Suggest("supermarket", core.MustMoney("25"))
	require.True(t, ok)
	assert.Equal(t, "groceries", label)
}

type failingSource struct{}

func (failingSource) ListExpenses(context.Context, core.ExpenseFilter) ([]core.Expense, error) {
	return nil, core.ErrStoreUnavailable
}

func TestRetrainError(t *testing.T) {
	s := New(failingSource{})
	err := s.Retrain(context.Background())
	assert.True(t, errors.Is(err, core.ErrStoreUnavailable))
	assert.False(t, s.Trained())
}

func TestConcurrentRetrainAndSuggest(t *testing.T) {
	store := memory.New()
	d := core.NewDate(2025, 8, 1)
	for i := 0; i < 5; i++ {
		_, err := store.CreateExpense(context.Background(), core.Expense{Date: d, Amount: core.MustMoney("5"), Category: "food", Description: "lunch"})
		require.NoError(t, err)
	}
	s := New(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Retrain(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Suggest("lunch", core.MustMoney("5"))
		}()
	}
	wg.Wait()

	label, ok := s.Suggest("lunch", core.MustMoney("5"))
	require.True(t, ok)
	assert.Equal(t, "food", label)
}
