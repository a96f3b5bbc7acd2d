package models

import "github.com/shopspring/decimal"

// Fixed-point precision used throughout the ledger.
const (
	QuantityPlaces int32 = 6
	PricePlaces    int32 = 4
	MoneyPlaces    int32 = 2
)

// RoundQuantity rounds a share quantity to QuantityPlaces.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// RoundMoney rounds an INR amount to MoneyPlaces (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
