package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/models"
	"gorm.io/datatypes"
)

// FeeSchedule holds the statutory charges the company pays when it buys the
// shares it grants. Rates are fractions (0.001 = 0.1%).
type FeeSchedule struct {
	BrokerageRate decimal.Decimal // on notional
	STTRate       decimal.Decimal // securities transaction tax, on notional
	GSTRate       decimal.Decimal // on brokerage
}

// DefaultFees mirrors the charges applied to Indian equity delivery trades.
var DefaultFees = FeeSchedule{
	BrokerageRate: decimal.RequireFromString("0.001"),
	STTRate:       decimal.RequireFromString("0.00025"),
	GSTRate:       decimal.RequireFromString("0.18"),
}

// Costs is the INR breakdown of acquiring a grant.
type Costs struct {
	Notional  decimal.Decimal
	Brokerage decimal.Decimal
	STT       decimal.Decimal
	GST       decimal.Decimal
}

// Fees is brokerage + STT + GST.
func (c Costs) Fees() decimal.Decimal {
	return c.Brokerage.Add(c.STT).Add(c.GST)
}

// Total is notional plus fees.
func (c Costs) Total() decimal.Decimal {
	return c.Notional.Add(c.Fees())
}

// Compute prices quantity shares at price. Every component is rounded to paise.
func (f FeeSchedule) Compute(quantity, price decimal.Decimal) Costs {
	notional := models.RoundMoney(quantity.Mul(price))
	brokerage := models.RoundMoney(notional.Mul(f.BrokerageRate))
	return Costs{
		Notional:  notional,
		Brokerage: brokerage,
		STT:       models.RoundMoney(notional.Mul(f.STTRate)),
		GST:       models.RoundMoney(brokerage.Mul(f.GSTRate)),
	}
}

type journalMeta struct {
	Priced bool   `json:"priced"`
	Price  string `json:"price,omitempty"`
}

// BuildJournal returns the balanced entries recording the acquisition of e's
// shares. A nil price produces zero INR amounts flagged as unpriced.
// RewardEventID is filled in by the store once the event row exists.
func BuildJournal(e *models.RewardEvent, price *decimal.Decimal, fees FeeSchedule) []models.LedgerEntry {
	var costs Costs
	meta := journalMeta{}
	if price != nil {
		costs = fees.Compute(e.Quantity, *price)
		meta.Priced = true
		meta.Price = price.StringFixed(models.PricePlaces)
	}
	metaJSON, _ := json.Marshal(meta)

	txID := uuid.New()
	zero := decimal.Zero
	entry := func(account models.AccountType, symbol string, debit, credit, qty decimal.Decimal, desc string) models.LedgerEntry {
		return models.LedgerEntry{
			TransactionID: txID,
			AccountType:   account,
			AccountSymbol: symbol,
			DebitAmount:   debit,
			CreditAmount:  credit,
			StockQuantity: qty,
			Description:   desc,
			ReferenceID:   e.ReferenceID,
			Metadata:      datatypes.JSON(metaJSON),
		}
	}

	return []models.LedgerEntry{
		entry(models.AccountStockInventory, e.StockSymbol, costs.Notional, zero, e.Quantity,
			fmt.Sprintf("Stock reward: %s x %s", e.StockSymbol, e.Quantity.StringFixed(models.QuantityPlaces))),
		entry(models.AccountCash, "", zero, costs.Notional, zero,
			fmt.Sprintf("Cash outflow for stock purchase: %s", e.StockSymbol)),
		entry(models.AccountFeesExpense, "", costs.Fees(), zero, zero,
			fmt.Sprintf("Brokerage, STT, GST for %s", e.StockSymbol)),
		entry(models.AccountCash, "", zero, costs.Fees(), zero,
			fmt.Sprintf("Cash outflow for fees: %s", e.StockSymbol)),
	}
}
