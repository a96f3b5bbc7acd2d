/**
 * @description
 * Pricing Provider contract.
 * A Provider answers "what was the INR price of symbol at instant asOf".
 * Implementations are layered: Live -> Cache -> Store, bounded by WithTimeout.
 *
 * @dependencies
 * - github.com/shopspring/decimal
 *
 * @notes
 * - A missing price is never fatal for a read. Callers match ErrPriceUnavailable
 *   and degrade the affected holding instead of failing the request.
 */

package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/calendar"
)

// ErrPriceUnavailable is matched by every *PriceUnavailableError.
var ErrPriceUnavailable = errors.New("price unavailable")

// Quote is one price observation.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	AsOf   time.Time       `json:"timestamp"`
}

// Provider supplies per-symbol INR prices.
type Provider interface {
	PriceAt(ctx context.Context, symbol string, asOf time.Time) (Quote, error)
}

// Close is the closing price of a symbol on one calendar day.
type Close struct {
	Date  calendar.Date
	Price decimal.Decimal
}

// CloseSource lists daily closes in bulk, so a multi-day series costs one
// lookup per symbol instead of one per symbol per day.
type CloseSource interface {
	// ClosesBetween returns the closes of symbol dated from..to, oldest first.
	// The first element may predate from: it is the close in force on from.
	ClosesBetween(ctx context.Context, symbol string, from, to calendar.Date) ([]Close, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, symbol string, asOf time.Time) (Quote, error)

// PriceAt calls f.
func (f ProviderFunc) PriceAt(ctx context.Context, symbol string, asOf time.Time) (Quote, error) {
	return f(ctx, symbol, asOf)
}

// PriceUnavailableError reports that no usable price exists for Symbol at AsOf.
type PriceUnavailableError struct {
	Symbol string
	AsOf   time.Time
	Err    error
}

func (e *PriceUnavailableError) Error() string {
	msg := fmt.Sprintf("price unavailable for %s at %s", e.Symbol, e.AsOf.Format(time.RFC3339))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PriceUnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPriceUnavailable) true.
func (e *PriceUnavailableError) Is(target error) bool {
	return target == ErrPriceUnavailable
}

// Unavailable builds a *PriceUnavailableError.
func Unavailable(symbol string, asOf time.Time, cause error) error {
	return &PriceUnavailableError{Symbol: symbol, AsOf: asOf, Err: cause}
}
