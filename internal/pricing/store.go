/**
 * @description
 * Persistent price store.
 * Latest quotes live in 'stock_prices', daily closes in 'stock_price_history'.
 *
 * @dependencies
 * - gorm.io/gorm
 * - backend/internal/calendar: day boundaries for closes
 *
 * @notes
 * - Lookups for the current day use the latest non-stale quote and fall back to
 *   the most recent close. Once a quote is marked stale, today's close (written
 *   from that same quote) is skipped too, so the fallback is the previous close.
 * - Past days use the close at or before that day.
 */

package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the GORM-backed Provider and the write side for price updates.
type Store struct {
	db  *gorm.DB
	cal *calendar.Calendar
}

// NewStore creates a new Store
func NewStore(db *gorm.DB, cal *calendar.Calendar) *Store {
	return &Store{db: db, cal: cal}
}

// PriceAt implements Provider.
func (s *Store) PriceAt(ctx context.Context, symbol string, asOf time.Time) (Quote, error) {
	day := s.cal.DateOf(asOf)
	today := s.cal.Today()

	// Record writes today's close together with the quote, so a stale quote
	// also leaves a stale close for today. Skip it and use an earlier close.
	closeDay := day
	if !day.Before(today) {
		var latest models.StockPrice
		err := s.db.WithContext(ctx).Where("stock_symbol = ?", symbol).First(&latest).Error
		switch {
		case err == nil && !latest.IsStale:
			return Quote{Symbol: symbol, Price: latest.Price, AsOf: latest.LastUpdated}, nil
		case err == nil:
			closeDay = today.Prev()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return Quote{}, err
		}
	}

	var daily models.StockPriceHistory
	err := s.db.WithContext(ctx).
		Where("stock_symbol = ? AND price_date <= ?", symbol, closeDay.String()).
		Order("price_date DESC").
		First(&daily).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Quote{}, Unavailable(symbol, asOf, nil)
		}
		return Quote{}, err
	}
	return s.closeQuote(daily)
}

// ClosesBetween implements CloseSource with one range query per symbol plus
// the close in force on from.
func (s *Store) ClosesBetween(ctx context.Context, symbol string, from, to calendar.Date) ([]Close, error) {
	db := s.db.WithContext(ctx)

	var rows []models.StockPriceHistory
	var prior models.StockPriceHistory
	err := db.Where("stock_symbol = ? AND price_date <= ?", symbol, from.String()).
		Order("price_date DESC").
		First(&prior).Error
	switch {
	case err == nil:
		rows = append(rows, prior)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var later []models.StockPriceHistory
	err = db.Where("stock_symbol = ? AND price_date > ? AND price_date <= ?", symbol, from.String(), to.String()).
		Order("price_date ASC").
		Find(&later).Error
	if err != nil {
		return nil, err
	}
	rows = append(rows, later...)

	closes := make([]Close, 0, len(rows))
	for _, r := range rows {
		day, err := calendar.ParseDate(r.PriceDate)
		if err != nil {
			return nil, err
		}
		closes = append(closes, Close{Date: day, Price: r.Price})
	}
	return closes, nil
}

func (s *Store) closeQuote(daily models.StockPriceHistory) (Quote, error) {
	closeDay, err := calendar.ParseDate(daily.PriceDate)
	if err != nil {
		return Quote{}, err
	}
	start, _ := s.cal.Bounds(closeDay)
	return Quote{Symbol: daily.StockSymbol, Price: daily.Price, AsOf: start}, nil
}

// Record stores q as the latest quote and as the close of its day.
// A quote older than the stored one does not replace it.
func (s *Store) Record(ctx context.Context, q Quote) error {
	price := q.Price.Round(models.PricePlaces)
	asOf := q.AsOf.UTC()
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest := models.StockPrice{
			StockSymbol: q.Symbol,
			Price:       price,
			LastUpdated: asOf,
			IsStale:     false,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stock_symbol"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"price":        price,
				"last_updated": asOf,
				"is_stale":     false,
				"updated_at":   now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("stock_prices.last_updated <= ?", asOf),
			}},
		}).Create(&latest)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A newer quote is already stored.
			return nil
		}

		return recordClose(tx, q.Symbol, s.cal.DateOf(q.AsOf), price)
	})
}

// RecordClose stores the closing price of symbol on day.
func (s *Store) RecordClose(ctx context.Context, symbol string, day calendar.Date, price decimal.Decimal) error {
	return recordClose(s.db.WithContext(ctx), symbol, day, price.Round(models.PricePlaces))
}

func recordClose(tx *gorm.DB, symbol string, day calendar.Date, price decimal.Decimal) error {
	row := models.StockPriceHistory{
		StockSymbol: symbol,
		PriceDate:   day.String(),
		Price:       price,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_symbol"}, {Name: "price_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"price"}),
	}).Create(&row).Error
}

// MarkStale flags every quote last updated before cutoff. It returns the
// number of quotes that became stale.
func (s *Store) MarkStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.StockPrice{}).
		Where("last_updated < ? AND is_stale = ?", cutoff.UTC(), false).
		Updates(map[string]interface{}{"is_stale": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// Latest returns the stored quote of symbol regardless of staleness.
func (s *Store) Latest(ctx context.Context, symbol string) (*models.StockPrice, error) {
	var p models.StockPrice
	err := s.db.WithContext(ctx).Where("stock_symbol = ?", symbol).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unavailable(symbol, time.Now(), nil)
		}
		return nil, err
	}
	return &p, nil
}

// Symbols returns every symbol with a stored quote.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.StockPrice{}).
		Order("stock_symbol").
		Pluck("stock_symbol", &symbols).Error
	return symbols, err
}
