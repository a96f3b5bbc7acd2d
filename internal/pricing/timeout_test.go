package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithTimeoutReportsUnavailable(t *testing.T) {
	slow := ProviderFunc(func(ctx context.Context, symbol string, asOf time.Time) (Quote, error) {
		time.Sleep(time.Second)
		return Quote{Symbol: symbol, Price: dec("1")}, nil
	})

	start := time.Now()
	_, err := WithTimeout(slow, 20*time.Millisecond).PriceAt(context.Background(), "TCS", testNow)
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.ErrorIs(t, err, ErrPriceUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	p := ProviderFunc(func(ctx context.Context, symbol string, asOf time.Time) (Quote, error) {
		calls++
		if symbol == "BAD" {
			return Quote{}, boom
		}
		return Quote{Symbol: symbol, Price: dec("42.5"), AsOf: asOf}, nil
	})
	wrapped := WithTimeout(p, time.Second)

	q, err := wrapped.PriceAt(context.Background(), "TCS", testNow)
	require.NoError(t, err)
	require.Equal(t, "42.5", q.Price.String())

	_, err = wrapped.PriceAt(context.Background(), "BAD", testNow)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrPriceUnavailable)
	require.Equal(t, 2, calls)
}
