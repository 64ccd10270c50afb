package budget

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/period"
)

// Aggregator sums spend over date ranges and periods. It holds no state of
// its own and is safe for concurrent use when the SpendReader is.
type Aggregator struct {
	spend SpendReader
}

func NewAggregator(spend SpendReader) *Aggregator {
	return &Aggregator{spend: spend}
}

// SumInRange returns the spend between start and end inclusive. An empty
// category sums every category; otherwise the match is on the normalized
// label. No matching transactions yields zero, not an error.
func (a *Aggregator) SumInRange(ctx context.Context, start, end core.Date, category string) (core.Money, error) {
	return a.sum(ctx, SumQuery{Start: start, End: end, Category: core.NormalizeCategory(category)})
}

// SumForPeriod resolves the period key and sums spend inside it.
func (a *Aggregator) SumForPeriod(ctx context.Context, key string, category string) (core.Money, error) {
	k, err := period.Parse(key)
	if err != nil {
		return core.Money{}, err
	}
	return a.sumForKey(ctx, k, category, 0)
}

func (a *Aggregator) sumForKey(ctx context.Context, k period.Key, category string, excludeID int64) (core.Money, error) {
	start, end := k.Range()
	return a.sum(ctx, SumQuery{
		Start:     start,
		End:       end,
		Category:  core.NormalizeCategory(category),
		ExcludeID: excludeID,
	})
}

func (a *Aggregator) sum(ctx context.Context, q SumQuery) (core.Money, error) {
	if q.End.Before(q.Start.Time) {
		return core.Money{}, nil
	}
	return a.spend.SumAmounts(ctx, q)
}
