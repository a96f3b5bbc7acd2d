/**
 * @description
 * Double-entry journal model.
 * Maps to the 'ledger_entries' table. Every accepted reward produces one
 * balanced transaction (stock inventory, cash, fees) recording what the grant
 * cost the company at the price of the day.
 *
 * @dependencies
 * - gorm.io/gorm
 * - gorm.io/datatypes
 * - github.com/shopspring/decimal
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccountType names a journal account
type AccountType string

const (
	AccountStockInventory AccountType = "stock_inventory"
	AccountCash           AccountType = "cash"
	AccountFeesExpense    AccountType = "fees_expense"
)

// LedgerEntry is one line of a journal transaction
type LedgerEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	RewardEventID uuid.UUID       `gorm:"type:uuid;not null;index" json:"reward_event_id"`
	AccountType   AccountType     `gorm:"column:account_type;type:varchar(32);not null" json:"account_type"`
	AccountSymbol string          `gorm:"column:account_symbol;type:varchar(20)" json:"account_symbol,omitempty"`
	DebitAmount   decimal.Decimal `gorm:"column:debit_amount;type:numeric(20,2);not null" json:"debit_amount"`
	CreditAmount  decimal.Decimal `gorm:"column:credit_amount;type:numeric(20,2);not null" json:"credit_amount"`
	StockQuantity decimal.Decimal `gorm:"column:stock_quantity;type:numeric(24,6);not null" json:"stock_quantity"`
	Description   string          `gorm:"column:description" json:"description,omitempty"`
	ReferenceID   string          `gorm:"column:reference_id;type:varchar(128);index" json:"reference_id"`
	Metadata      datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by LedgerEntry to `ledger_entries`
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// BeforeCreate ensures UUID is generated if not present
func (l *LedgerEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return
}
