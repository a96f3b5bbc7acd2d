/**
 * @description
 * Valuation Engine.
 * Prices a user's holdings now (CurrentValue) and for every calendar day since
 * their first reward (HistoricalSeries).
 *
 * @dependencies
 * - golang.org/x/sync/errgroup: bounded parallel price lookups
 * - github.com/shopspring/decimal
 * - backend/internal/pricing
 *
 * @notes
 * - A failed price lookup never fails a valuation. The holding is reported
 *   with PriceAvailable=false and contributes zero to the total.
 * - Events dated after now are not valued.
 * - With a CloseSource, past days of the series are priced from one range
 *   query per symbol. Only today goes through the Provider.
 * - Values are exact decimals here; rounding happens at the HTTP edge.
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/models"
	"github.com/stocky-project/backend/internal/pricing"
	"golang.org/x/sync/errgroup"
)

const maxParallelLookups = 8

// HoldingValue is one priced position.
type HoldingValue struct {
	Symbol         string
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Value          decimal.Decimal
	PriceAvailable bool
	PriceAsOf      time.Time
	LastUpdated    time.Time
}

// Valuation is a priced portfolio at AsOf.
type Valuation struct {
	UserID   string
	AsOf     time.Time
	Holdings []HoldingValue
	Total    decimal.Decimal
	Warnings []string
}

// SeriesPoint is the portfolio value at the end of Date.
type SeriesPoint struct {
	Date  calendar.Date
	Value decimal.Decimal
}

// ValuationService combines holdings with prices
type ValuationService struct {
	store  ledger.Store
	prices pricing.Provider
	closes pricing.CloseSource
	cal    *calendar.Calendar
}

// NewValuationService creates a new ValuationService
func NewValuationService(store ledger.Store, prices pricing.Provider, cal *calendar.Calendar) *ValuationService {
	return &ValuationService{store: store, prices: prices, cal: cal}
}

// WithCloses sets the source HistoricalSeries loads past closes from.
func (s *ValuationService) WithCloses(src pricing.CloseSource) *ValuationService {
	s.closes = src
	return s
}

// CurrentValue prices every current holding of userID.
func (s *ValuationService) CurrentValue(ctx context.Context, userID string) (*Valuation, error) {
	events, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	asOf := s.cal.Now()
	positions := Fold(events, nowCutoff(s.cal))

	quotes, errs := s.lookupAll(ctx, symbolsOf(positions), asOf)

	v := &Valuation{
		UserID:   userID,
		AsOf:     asOf,
		Holdings: make([]HoldingValue, 0, len(positions)),
		Total:    decimal.Zero,
	}
	for i, p := range positions {
		h := HoldingValue{
			Symbol:      p.Symbol,
			Quantity:    p.Quantity,
			Price:       decimal.Zero,
			Value:       decimal.Zero,
			LastUpdated: p.LastUpdated,
		}
		if errs[i] != nil {
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s: price unavailable", p.Symbol))
			logger.WithFields(logger.Fields{"user_id": userID, "symbol": p.Symbol, "error": errs[i].Error()}).Warn("holding left unpriced")
		} else {
			h.Price = quotes[i].Price
			h.PriceAsOf = quotes[i].AsOf
			h.Value = p.Quantity.Mul(quotes[i].Price)
			h.PriceAvailable = true
			v.Total = v.Total.Add(h.Value)
		}
		v.Holdings = append(v.Holdings, h)
	}
	return v, nil
}

// HistoricalSeries values the holdings of userID at the end of every day from
// the day of the first event through today, oldest first. Today is valued at
// now. Users without events get an empty series.
//
// Quantities are advanced incrementally through the ordered event log. For
// each day every held symbol is priced once and the running total adjusted by
// the change in that symbol's contribution. A missing close carries the last
// known price forward; a symbol that has never been priced contributes zero.
func (s *ValuationService) HistoricalSeries(ctx context.Context, userID string) ([]SeriesPoint, error) {
	events, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	points := []SeriesPoint{}
	if len(events) == 0 {
		return points, nil
	}

	today := s.cal.Today()
	first := s.cal.DateOf(events[0].RewardTimestamp)

	var closes *closeCursor
	if s.closes != nil && first.Before(today) {
		closes = s.loadCloses(ctx, userID, events, first, today.Prev())
	}

	var (
		quantity     = make(map[string]decimal.Decimal)
		contribution = make(map[string]decimal.Decimal)
		lastPrice    = make(map[string]decimal.Decimal)
		warned       = make(map[string]bool)
		total        = decimal.Zero
		next         = 0
	)

	for day := first; !day.After(today); day = day.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, cutoff := s.cal.Bounds(day)
		asOf := cutoff.Add(-time.Nanosecond)
		if day == today {
			cutoff = nowCutoff(s.cal)
			asOf = s.cal.Now()
		}
		for next < len(events) && events[next].RewardTimestamp.Before(cutoff) {
			e := events[next]
			quantity[e.StockSymbol] = quantity[e.StockSymbol].Add(e.Quantity)
			next++
		}

		held := make([]string, 0, len(quantity))
		for symbol, q := range quantity {
			if !q.IsZero() || !contribution[symbol].IsZero() {
				held = append(held, symbol)
			}
		}
		sort.Strings(held)

		var (
			quotes []pricing.Quote
			errs   []error
		)
		if closes != nil && day != today {
			quotes, errs = closes.on(day, held, asOf)
		} else {
			quotes, errs = s.lookupAll(ctx, held, asOf)
		}
		for i, symbol := range held {
			price, known := lastPrice[symbol]
			if errs[i] == nil {
				price, known = quotes[i].Price, true
				lastPrice[symbol] = price
			} else if !errors.Is(errs[i], pricing.ErrPriceUnavailable) {
				logger.Warn("price lookup for %s on %s failed: %v", symbol, day, errs[i])
			}
			if !known {
				if !warned[symbol] {
					warned[symbol] = true
					logger.WithFields(logger.Fields{"user_id": userID, "symbol": symbol, "date": day.String()}).Warn("no price known yet; valuing at zero")
				}
				price = decimal.Zero
			}

			c := quantity[symbol].Mul(price)
			if prev := contribution[symbol]; !c.Equal(prev) {
				total = total.Sub(prev).Add(c)
				contribution[symbol] = c
			}
		}

		points = append(points, SeriesPoint{Date: day, Value: total})
	}
	return points, nil
}

// loadCloses fetches the closes of every symbol in events from..to. On any
// failure it returns nil and the series falls back to per-day lookups.
func (s *ValuationService) loadCloses(ctx context.Context, userID string, events []models.RewardEvent, from, to calendar.Date) *closeCursor {
	seen := make(map[string]bool)
	var symbols []string
	for _, e := range events {
		if !seen[e.StockSymbol] {
			seen[e.StockSymbol] = true
			symbols = append(symbols, e.StockSymbol)
		}
	}

	loaded := make([][]pricing.Close, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for i, symbol := range symbols {
		g.Go(func() error {
			closes, err := s.closes.ClosesBetween(gctx, symbol, from, to)
			if err != nil {
				return fmt.Errorf("closes of %s: %w", symbol, err)
			}
			loaded[i] = closes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithFields(logger.Fields{"user_id": userID, "error": err.Error()}).Warn("bulk close load failed; pricing day by day")
		return nil
	}

	c := &closeCursor{closes: make(map[string][]pricing.Close, len(symbols)), pos: make(map[string]int)}
	for i, symbol := range symbols {
		c.closes[symbol] = loaded[i]
	}
	return c
}

// closeCursor walks preloaded closes forward one day at a time.
type closeCursor struct {
	closes map[string][]pricing.Close
	pos    map[string]int
}

// on prices symbols with the close in force on day. Days must not go backwards.
func (c *closeCursor) on(day calendar.Date, symbols []string, asOf time.Time) ([]pricing.Quote, []error) {
	quotes := make([]pricing.Quote, len(symbols))
	errs := make([]error, len(symbols))
	for i, symbol := range symbols {
		closes := c.closes[symbol]
		n := c.pos[symbol]
		for n < len(closes) && !closes[n].Date.After(day) {
			n++
		}
		c.pos[symbol] = n
		if n == 0 {
			errs[i] = pricing.Unavailable(symbol, asOf, nil)
			continue
		}
		quotes[i] = pricing.Quote{Symbol: symbol, Price: closes[n-1].Price, AsOf: asOf}
	}
	return quotes, errs
}

// lookupAll prices symbols in parallel. quotes[i] is valid when errs[i] is nil.
func (s *ValuationService) lookupAll(ctx context.Context, symbols []string, asOf time.Time) ([]pricing.Quote, []error) {
	quotes := make([]pricing.Quote, len(symbols))
	errs := make([]error, len(symbols))

	var g errgroup.Group
	g.SetLimit(maxParallelLookups)
	for i, symbol := range symbols {
		g.Go(func() error {
			quotes[i], errs[i] = s.prices.PriceAt(ctx, symbol, asOf)
			return nil
		})
	}
	_ = g.Wait()
	return quotes, errs
}

func symbolsOf(positions []Position) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = p.Symbol
	}
	return out
}
