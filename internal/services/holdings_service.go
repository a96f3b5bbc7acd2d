/**
 * @description
 * Holdings Aggregator.
 * Folds a user's reward events into per-symbol share balances.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact addition of fractional shares
 * - backend/internal/ledger: event log access
 *
 * @notes
 * - The fold over reward_events is authoritative. The user_holdings table is a
 *   cache that Reconcile checks and rewrites.
 */

package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/models"
)

// Position is the folded balance of one symbol.
type Position struct {
	Symbol      string
	Quantity    decimal.Decimal
	LastUpdated time.Time // when the most recent contributing event was recorded
}

// Fold sums events per symbol. Only events with reward_timestamp strictly
// before cutoff count; a zero cutoff includes every event. Symbols whose net
// quantity is zero are omitted. The result is ordered by symbol.
func Fold(events []models.RewardEvent, cutoff time.Time) []Position {
	bySymbol := make(map[string]*Position)
	for i := range events {
		e := &events[i]
		if !cutoff.IsZero() && !e.RewardTimestamp.Before(cutoff) {
			continue
		}
		p, ok := bySymbol[e.StockSymbol]
		if !ok {
			p = &Position{Symbol: e.StockSymbol}
			bySymbol[e.StockSymbol] = p
		}
		p.Quantity = p.Quantity.Add(e.Quantity)
		if e.CreatedAt.After(p.LastUpdated) {
			p.LastUpdated = e.CreatedAt
		}
	}

	out := make([]Position, 0, len(bySymbol))
	for _, p := range bySymbol {
		if p.Quantity.IsZero() {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// nowCutoff is the Fold cutoff that keeps events stamped up to and including now.
func nowCutoff(cal *calendar.Calendar) time.Time { return cal.Now().Add(time.Nanosecond) }

// HoldingsAsOf is Fold reduced to symbol -> quantity.
func HoldingsAsOf(events []models.RewardEvent, cutoff time.Time) map[string]decimal.Decimal {
	positions := Fold(events, cutoff)
	out := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		out[p.Symbol] = p.Quantity
	}
	return out
}

// HoldingDrift is a symbol whose projected balance disagrees with the fold.
type HoldingDrift struct {
	Symbol    string
	Projected decimal.Decimal
	Actual    decimal.Decimal
}

// ReconcileReport describes one Reconcile run.
type ReconcileReport struct {
	UserID   string
	Drift    []HoldingDrift
	Repaired bool
}

// HoldingsService handles holdings reads and projection maintenance
type HoldingsService struct {
	store ledger.Store
	cal   *calendar.Calendar
}

// NewHoldingsService creates a new HoldingsService
func NewHoldingsService(store ledger.Store, cal *calendar.Calendar) *HoldingsService {
	return &HoldingsService{store: store, cal: cal}
}

// CurrentHoldings returns every non-zero balance of userID. Events dated after
// now are not held yet.
func (s *HoldingsService) CurrentHoldings(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	events, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return HoldingsAsOf(events, nowCutoff(s.cal)), nil
}

// Positions returns the balances of userID held now, ordered by symbol.
func (s *HoldingsService) Positions(ctx context.Context, userID string) ([]Position, error) {
	events, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Fold(events, nowCutoff(s.cal)), nil
}

// Reconcile compares the user_holdings projection of userID with the fold of
// all its events, future-dated ones included since Append credits them on
// arrival. When repair is set and they differ, the projection is rebuilt from
// the log inside the store's per-user lock.
func (s *HoldingsService) Reconcile(ctx context.Context, userID string, repair bool) (ReconcileReport, error) {
	report := ReconcileReport{UserID: userID}

	events, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return report, err
	}
	positions := Fold(events, time.Time{})
	projected, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return report, err
	}

	actual := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		actual[p.Symbol] = p.Quantity
	}
	seen := make(map[string]bool, len(projected))
	for _, h := range projected {
		seen[h.StockSymbol] = true
		if want := actual[h.StockSymbol]; !want.Equal(h.Quantity) {
			report.Drift = append(report.Drift, HoldingDrift{Symbol: h.StockSymbol, Projected: h.Quantity, Actual: want})
		}
	}
	for _, p := range positions {
		if !seen[p.Symbol] {
			report.Drift = append(report.Drift, HoldingDrift{Symbol: p.Symbol, Projected: decimal.Zero, Actual: p.Quantity})
		}
	}
	sort.Slice(report.Drift, func(i, j int) bool { return report.Drift[i].Symbol < report.Drift[j].Symbol })

	if len(report.Drift) == 0 || !repair {
		return report, nil
	}

	rows, err := s.store.RebuildHoldings(ctx, userID)
	if err != nil {
		return report, err
	}
	report.Repaired = true
	logger.WithFields(logger.Fields{"user_id": userID, "symbols": len(report.Drift), "rows": len(rows)}).Warn("holdings projection rebuilt")
	return report, nil
}
