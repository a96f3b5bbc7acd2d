package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// Stats is today's per-symbol grants plus the current portfolio value.
type Stats struct {
	TodayStocks  map[string]decimal.Decimal
	CurrentValue decimal.Decimal
}

// QueryService composes the read side. It holds no state of its own.
type QueryService struct {
	store     ledger.Store
	valuation *ValuationService
	cal       *calendar.Calendar
}

// NewQueryService creates a new QueryService
func NewQueryService(store ledger.Store, valuation *ValuationService, cal *calendar.Calendar) *QueryService {
	return &QueryService{store: store, valuation: valuation, cal: cal}
}

// TodayRewards returns the events of userID dated today in the configured
// zone, newest first.
func (s *QueryService) TodayRewards(ctx context.Context, userID string) ([]models.RewardEvent, error) {
	start, end := s.cal.TodayRange()
	events, err := s.store.ListByUserBetween(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if events == nil {
		events = []models.RewardEvent{}
	}
	return events, nil
}

// Portfolio returns the current valuation with the most valuable holding first.
func (s *QueryService) Portfolio(ctx context.Context, userID string) (*Valuation, error) {
	v, err := s.valuation.CurrentValue(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(v.Holdings, func(i, j int) bool {
		if c := v.Holdings[i].Value.Cmp(v.Holdings[j].Value); c != 0 {
			return c > 0
		}
		return v.Holdings[i].Symbol < v.Holdings[j].Symbol
	})
	return v, nil
}

// Stats returns today's grants by symbol and the current portfolio value.
func (s *QueryService) Stats(ctx context.Context, userID string) (*Stats, error) {
	var (
		today []models.RewardEvent
		value *Valuation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		today, err = s.TodayRewards(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		value, err = s.valuation.CurrentValue(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byStock := make(map[string]decimal.Decimal)
	for _, e := range today {
		byStock[e.StockSymbol] = byStock[e.StockSymbol].Add(e.Quantity)
	}
	return &Stats{TodayStocks: byStock, CurrentValue: value.Total}, nil
}

// History returns the daily valuation series of userID, oldest first.
func (s *QueryService) History(ctx context.Context, userID string) ([]SeriesPoint, error) {
	return s.valuation.HistoricalSeries(ctx, userID)
}
