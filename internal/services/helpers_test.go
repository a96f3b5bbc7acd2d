package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/models"
	"github.com/stocky-project/backend/internal/pricing"
	"github.com/stocky-project/backend/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedCalendar(loc *time.Location) *calendar.Calendar {
	return calendar.New(loc).WithClock(func() time.Time { return testNow })
}

func newStore(t *testing.T) (*ledger.GormStore, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return ledger.NewGormStore(db), db
}

func seed(t *testing.T, store ledger.Store, events ...*models.RewardEvent) {
	t.Helper()
	for _, e := range events {
		appended, err := store.Append(context.Background(), e, nil)
		require.NoError(t, err)
		require.True(t, appended)
	}
}

var seq int

func grant(user, symbol, qty string, ts time.Time) *models.RewardEvent {
	seq++
	return &models.RewardEvent{
		UserID:          user,
		StockSymbol:     symbol,
		Quantity:        dec(qty),
		RewardTimestamp: ts,
		EventType:       models.EventTypeReferral,
		ReferenceID:     fmt.Sprintf("ref-%d", seq),
	}
}

// priceTable answers lookups from symbol -> YYYY-MM-DD -> price and reports
// every other lookup as unavailable.
type priceTable map[string]map[string]string

func (p priceTable) PriceAt(_ context.Context, symbol string, asOf time.Time) (pricing.Quote, error) {
	day := asOf.UTC().Format(calendar.DateFormat)
	if price, ok := p[symbol][day]; ok {
		return pricing.Quote{Symbol: symbol, Price: dec(price), AsOf: asOf}, nil
	}
	return pricing.Quote{}, pricing.Unavailable(symbol, asOf, nil)
}
