package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLiveServesPublishedQuotes(t *testing.T) {
	_, rdb := newRedis(t)
	backend := fixedPrice("1")
	live := NewLive(rdb, backend, fixedCalendar(), 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go live.Run(ctx)

	q := Quote{Symbol: "RELIANCE", Price: dec("2812.40"), AsOf: testNow.Add(-time.Minute)}
	require.Eventually(t, func() bool {
		// Subscription setup is asynchronous; keep publishing until it lands.
		_ = Publish(ctx, rdb, q)
		got, err := live.PriceAt(ctx, "RELIANCE", testNow)
		return err == nil && got.Price.Equal(dec("2812.40"))
	}, 2*time.Second, 20*time.Millisecond)

	before := backend.calls.Load()

	// Past days are never answered from memory.
	got, err := live.PriceAt(ctx, "RELIANCE", testNow.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "1", got.Price.String())
	require.Equal(t, before+1, backend.calls.Load())
}

func TestLiveApply(t *testing.T) {
	backend := fixedPrice("1")
	live := NewLive(nil, backend, fixedCalendar(), 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, live.apply([]byte(`{"symbol":"tcs","price":"3500","timestamp":"2024-05-10T11:58:00Z"}`)))
	require.NoError(t, live.apply([]byte(`{"symbol":"TCS","price":"3300","timestamp":"2024-05-10T11:50:00Z"}`)))
	require.Error(t, live.apply([]byte(`not json`)))
	require.Error(t, live.apply([]byte(`{"symbol":"TCS","price":"-1","timestamp":"2024-05-10T11:59:00Z"}`)))

	q, err := live.PriceAt(ctx, "TCS", testNow)
	require.NoError(t, err)
	require.Equal(t, "3500", q.Price.String())
	require.Zero(t, backend.calls.Load())

	// Too old to trust.
	require.NoError(t, live.apply([]byte(`{"symbol":"INFY","price":"1500","timestamp":"2024-05-10T10:00:00Z"}`)))
	q, err = live.PriceAt(ctx, "INFY", testNow)
	require.NoError(t, err)
	require.Equal(t, "1", q.Price.String())
	require.Equal(t, int32(1), backend.calls.Load())
}
