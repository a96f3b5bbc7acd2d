/**
 * @description
 * Stock price database models.
 * 'stock_prices' keeps the latest quote per symbol; 'stock_price_history'
 * keeps one closing price per symbol per calendar day.
 *
 * @dependencies
 * - github.com/shopspring/decimal
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice is the latest known quote for a symbol
type StockPrice struct {
	StockSymbol string          `gorm:"primaryKey;column:stock_symbol;type:varchar(20)" json:"stock_symbol"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(18,4);not null" json:"price"`
	LastUpdated time.Time       `gorm:"column:last_updated;not null" json:"last_updated"`
	IsStale     bool            `gorm:"column:is_stale;not null;default:false;index" json:"is_stale"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by StockPrice to `stock_prices`
func (StockPrice) TableName() string {
	return "stock_prices"
}

// StockPriceHistory is the closing price of a symbol on one calendar day
type StockPriceHistory struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	StockSymbol string          `gorm:"column:stock_symbol;type:varchar(20);not null;uniqueIndex:idx_price_history_symbol_date,priority:1" json:"stock_symbol"`
	PriceDate   string          `gorm:"column:price_date;type:varchar(10);not null;uniqueIndex:idx_price_history_symbol_date,priority:2" json:"price_date"` // YYYY-MM-DD in the reward timezone
	Price       decimal.Decimal `gorm:"column:price;type:numeric(18,4);not null" json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName overrides the table name used by StockPriceHistory to `stock_price_history`
func (StockPriceHistory) TableName() string {
	return "stock_price_history"
}
