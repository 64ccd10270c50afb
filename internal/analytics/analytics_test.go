package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/storage/memory"
)

func daily(t *testing.T, start string, amounts ...string) []core.DailyTotal {
	t.Helper()
	d, err := core.ParseDate(start)
	require.NoError(t, err)
	out := make([]core.DailyTotal, len(amounts))
	for i, a := range amounts {
		out[i] = core.DailyTotal{Date: d.AddDays(i), Amount: core.MustMoney(a)}
	}
	return out
}

func expense(t *testing.T, date, amount, category, desc string) core.Expense {
	t.Helper()
	d, err := core.ParseDate(date)
	require.NoError(t, err)
	return core.Expense{Date: d, Amount: core.MustMoney(amount), Category: category, Description: desc}
}

func TestZScoreDetector(t *testing.T) {
	series := daily(t, "2025-08-01", "10", "10", "10", "10", "100")

	got := NewDetector(MethodZScore, 1).Detect(series)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-08-05", got[0].Date.String())
	assert.Equal(t, "100.00", got[0].Amount.String())
	assert.Equal(t, "High spend (>1σ)", got[0].Reason)

	assert.Empty(t, NewDetector(MethodZScore, 2).Detect(series))
}

func TestZScoreFlatSeries(t *testing.T) {
	got := NewDetector(MethodZScore, 0.5).Detect(daily(t, "2025-08-01", "20", "20", "20"))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestIQRDetector(t *testing.T) {
	got := NewDetector(MethodIQR, 1.5).Detect(daily(t, "2025-08-01", "1", "2", "3", "4", "100"))
	require.Len(t, got, 1)
	assert.Equal(t, "2025-08-05", got[0].Date.String())
	assert.Equal(t, "High spend (>1.5×IQR)", got[0].Reason)

	assert.Empty(t, NewDetector(MethodIQR, 1.5).Detect(daily(t, "2025-08-01", "5", "5", "5", "5")))
}

func TestDetectTooFewDays(t *testing.T) {
	assert.Empty(t, NewDetector(MethodZScore, 1).Detect(daily(t, "2025-08-01", "900")))
	assert.Empty(t, NewDetector(MethodIQR, 1).Detect(nil))
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 3.25, quantile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 4, quantile(sorted, 1), 1e-9)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("IQR")
	require.NoError(t, err)
	assert.Equal(t, MethodIQR, m)
	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodZScore, m)
	_, err = ParseMethod("mad")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]core.Expense{
		expense(t, "2025-08-01", "10.10", "food", "lunch"),
		expense(t, "2025-08-01", "4.90", "food", "coffee"),
		expense(t, "2025-08-03", "45", "travel", "train"),
	})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, "60.00", s.TotalSpent.String())
	assert.Equal(t, "travel", s.TopCategory)
	assert.Equal(t, "45.00", s.TopCategoryAmount.String())
	assert.Equal(t, "train (travel)", s.HighestSpend)
	assert.Equal(t, "30.00", s.AverageDaily.String())
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, s.TotalSpent.IsZero())
	assert.Empty(t, s.TopCategory)
	assert.Empty(t, s.HighestSpend)
	assert.True(t, s.AverageDaily.IsZero())
}

func newService(t *testing.T) *Service {
	t.Helper()
	store := memory.New()
	_, err := store.Seed(context.Background(),
		expense(t, "2025-07-10", "70", "rent", "july rent"),
		expense(t, "2025-08-01", "10", "food", "lunch"),
		expense(t, "2025-08-02", "10", "food", "lunch"),
		expense(t, "2025-08-03", "10", "food", "lunch"),
		expense(t, "2025-08-04", "10", "food", "lunch"),
		expense(t, "2025-08-05", "200", "travel", "flight"),
	)
	require.NoError(t, err)
	return NewService(store, NewDetector(MethodZScore, 1))
}

func TestServiceSummaryFilters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	s, err := svc.Summary(ctx, "2025-08", "", core.Money{})
	require.NoError(t, err)
	assert.Equal(t, "240.00", s.TotalSpent.String())
	assert.Equal(t, "travel", s.TopCategory)

	s, err = svc.Summary(ctx, "2025-08", "Food", core.Money{})
	require.NoError(t, err)
	assert.Equal(t, "40.00", s.TotalSpent.String())
	assert.Equal(t, "10.00", s.AverageDaily.String())

	s, err = svc.Summary(ctx, "", "", core.MustMoney("50"))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)

	_, err = svc.Summary(ctx, "2025-13", "", core.Money{})
	assert.ErrorIs(t, err, core.ErrInvalidPeriodFormat)
}

func TestServiceMonthlyTrend(t *testing.T) {
	svc := newService(t)
	trend, err := svc.MonthlyTrend(context.Background(), period.MustParse("2025-08"), 3)
	require.NoError(t, err)
	require.Len(t, trend, 3)
	assert.Equal(t, "2025-06", trend[0].Month)
	assert.True(t, trend[0].Amount.IsZero())
	assert.Equal(t, "70.00", trend[1].Amount.String())
	assert.Equal(t, "240.00", trend[2].Amount.String())

	_, err = svc.MonthlyTrend(context.Background(), period.MustParse("2025-W10"), 3)
	assert.ErrorIs(t, err, core.ErrInvalidPeriodFormat)
}

func TestServiceFiltersAndBreakdown(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	f, err := svc.Filters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08", "2025-07"}, f.Months)
	assert.Equal(t, []string{"food", "rent", "travel"}, f.Categories)

	breakdown, err := svc.CategoryBreakdown(ctx, "2025-08")
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "travel", breakdown[0].Name)
}

func TestServiceAnomalies(t *testing.T) {
	svc := newService(t)
	from, _ := core.ParseDate("2025-08-01")
	to, _ := core.ParseDate("2025-08-31")

	got, err := svc.Anomalies(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-08-05", got[0].Date.String())
}
