/**
 * @description
 * Holding projection model.
 * Maps to 'user_holdings', a cache of per-user per-symbol share balances that
 * is maintained alongside every append and can be rebuilt from reward_events.
 *
 * @dependencies
 * - github.com/shopspring/decimal
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserHolding is the projected balance of one symbol for one user
type UserHolding struct {
	UserID      string          `gorm:"primaryKey;column:user_id;type:varchar(64)" json:"user_id"`
	StockSymbol string          `gorm:"primaryKey;column:stock_symbol;type:varchar(20)" json:"stock_symbol"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(24,6);not null" json:"quantity"`
	LastUpdated time.Time       `gorm:"column:last_updated;not null" json:"last_updated"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by UserHolding to `user_holdings`
func (UserHolding) TableName() string {
	return "user_holdings"
}

// All returns every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&RewardEvent{},
		&LedgerEntry{},
		&UserHolding{},
		&StockPrice{},
		&StockPriceHistory{},
	}
}
