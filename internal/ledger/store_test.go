package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/apperr"
	"github.com/stocky-project/backend/internal/models"
	"github.com/stocky-project/backend/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newEvent(ref, user, symbol, qty string, ts time.Time) *models.RewardEvent {
	return &models.RewardEvent{
		UserID:          user,
		StockSymbol:     symbol,
		Quantity:        decimal.RequireFromString(qty),
		RewardTimestamp: ts,
		EventType:       models.EventTypeReferral,
		ReferenceID:     ref,
	}
}

func countEvents(t *testing.T, store *GormStore) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.db.Model(&models.RewardEvent{}).Count(&n).Error)
	return n
}

func TestAppendAndListOrdering(t *testing.T) {
	store := NewGormStore(testutil.NewTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Inserted out of timestamp order; the two 09:00 events tie.
	for _, e := range []*models.RewardEvent{
		newEvent("r1", "u1", "tcs", "1", base.Add(2*time.Hour)),
		newEvent("r2", "u1", "INFY", "2", base.Add(-time.Hour)),
		newEvent("r3", "u1", "WIPRO", "3", base.Add(-time.Hour)),
		newEvent("r4", "u2", "TCS", "4", base),
	} {
		appended, err := store.Append(ctx, e, nil)
		require.NoError(t, err)
		require.True(t, appended)
		require.NotZero(t, e.Seq)
	}

	events, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, []string{"r2", "r3", "r1"}, []string{events[0].ReferenceID, events[1].ReferenceID, events[2].ReferenceID})
	require.Equal(t, "TCS", events[2].StockSymbol, "symbol is upper-cased on append")

	none, err := store.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAppendDuplicateReferenceIsNoop(t *testing.T) {
	store := NewGormStore(testutil.NewTestDB(t))
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := newEvent("dup", "u1", "RELIANCE", "1.5", ts)
	appended, err := store.Append(ctx, first, BuildJournal(first, nil, DefaultFees))
	require.NoError(t, err)
	require.True(t, appended)

	second := newEvent("dup", "u1", "RELIANCE", "1.5", ts)
	appended, err = store.Append(ctx, second, BuildJournal(second, nil, DefaultFees))
	require.NoError(t, err)
	require.False(t, appended)

	require.Equal(t, int64(1), countEvents(t, store))

	stored, err := store.GetByReference(ctx, "dup")
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)

	holdings, err := store.ListHoldings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.True(t, holdings[0].Quantity.Equal(decimal.RequireFromString("1.5")))

	var entries int64
	require.NoError(t, store.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	require.Equal(t, int64(4), entries)
}

func TestAppendRejectsInvalidEvents(t *testing.T) {
	store := NewGormStore(testutil.NewTestDB(t))
	ctx := context.Background()
	ts := time.Now()

	cases := map[string]*models.RewardEvent{
		"zero quantity":     newEvent("a", "u1", "TCS", "0", ts),
		"negative quantity": newEvent("b", "u1", "TCS", "-2", ts),
		"rounds to zero":    newEvent("c", "u1", "TCS", "0.0000001", ts),
		"empty symbol":      newEvent("d", "u1", "  ", "1", ts),
		"missing timestamp": newEvent("e", "u1", "TCS", "1", time.Time{}),
		"missing user":      newEvent("f", "", "TCS", "1", ts),
		"missing reference": newEvent("", "u1", "TCS", "1", ts),
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			appended, err := store.Append(ctx, e, nil)
			require.False(t, appended)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	require.Equal(t, int64(0), countEvents(t, store))
}

func TestHoldingsProjectionAccumulates(t *testing.T) {
	store := NewGormStore(testutil.NewTestDB(t))
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, newEvent("p1", "u1", "INFY", "5.000000", ts), nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, newEvent("p2", "u1", "INFY", "3.250000", ts.Add(time.Minute)), nil)
	require.NoError(t, err)

	holdings, err := store.ListHoldings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.Equal(t, "8.250000", holdings[0].Quantity.StringFixed(models.QuantityPlaces))

}

func TestRebuildHoldingsFromLog(t *testing.T) {
	store := NewGormStore(testutil.NewTestDB(t))
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, newEvent("b1", "u1", "TCS", "1.5", ts), nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, newEvent("b2", "u1", "INFY", "2", ts), nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, newEvent("b3", "u2", "TCS", "7", ts), nil)
	require.NoError(t, err)

	// Corrupt u1's cache: wrong TCS balance, INFY gone, a symbol never granted.
	require.NoError(t, store.db.Model(&models.UserHolding{}).
		Where("user_id = ? AND stock_symbol = ?", "u1", "TCS").Update("quantity", "9").Error)
	require.NoError(t, store.db.Where("user_id = ? AND stock_symbol = ?", "u1", "INFY").Delete(&models.UserHolding{}).Error)
	require.NoError(t, store.db.Create(&models.UserHolding{UserID: "u1", StockSymbol: "SBIN", Quantity: decimal.NewFromInt(3), LastUpdated: ts}).Error)

	rows, err := store.RebuildHoldings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	holdings, err := store.ListHoldings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	require.Equal(t, "INFY", holdings[0].StockSymbol)
	require.Equal(t, "2.000000", holdings[0].Quantity.StringFixed(models.QuantityPlaces))
	require.Equal(t, "TCS", holdings[1].StockSymbol)
	require.Equal(t, "1.500000", holdings[1].Quantity.StringFixed(models.QuantityPlaces))

	other, err := store.ListHoldings(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, other, 1, "other users are untouched")

	rows, err = store.RebuildHoldings(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestListByUserBetween(t *testing.T) {
	store := NewGormStore(testutil.NewTestDB(t))
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{
		day.Add(-time.Second),
		day,
		day.Add(23 * time.Hour),
		day.Add(24 * time.Hour),
	} {
		_, err := store.Append(ctx, newEvent(string(rune('a'+i)), "u1", "SBIN", "1", ts), nil)
		require.NoError(t, err)
	}

	events, err := store.ListByUserBetween(ctx, "u1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "b", events[0].ReferenceID)
	require.Equal(t, "c", events[1].ReferenceID)

	symbols, err := store.DistinctSymbols(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"SBIN"}, symbols)

	users, err := store.DistinctUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, users)
}

func TestGetByReferenceNotFound(t *testing.T) {
	store := NewGormStore(testutil.NewTestDB(t))
	_, err := store.GetByReference(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
