package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulatorStaysWithinBand(t *testing.T) {
	sim := NewSimulator(7)
	ctx := context.Background()

	for symbol, base := range map[string]string{"RELIANCE": "2500", "WIPRO": "450", "UNKNOWN": "1000"} {
		lo := dec(base).Mul(dec("0.95"))
		hi := dec(base).Mul(dec("1.05"))
		for i := 0; i < 200; i++ {
			q, err := sim.Quote(ctx, symbol)
			require.NoError(t, err)
			require.Equal(t, symbol, q.Symbol)
			require.True(t, q.Price.GreaterThanOrEqual(lo), "%s below band: %s", symbol, q.Price)
			require.True(t, q.Price.LessThanOrEqual(hi), "%s above band: %s", symbol, q.Price)
			require.LessOrEqual(t, -q.Price.Exponent(), int32(2), "prices are rounded to paise")
			require.False(t, q.AsOf.IsZero())
		}
	}
}
