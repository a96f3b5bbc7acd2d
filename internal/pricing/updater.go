/**
 * @description
 * Price maintenance used by the worker.
 * Pulls quotes from a QuoteSource for every rewarded symbol, records them,
 * announces them on UpdatesChannel and flags quotes that stopped updating.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 *
 * @notes
 * - Valuation correctness never depends on this loop; it only keeps quotes fresh.
 */

package pricing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stocky-project/backend/internal/logger"
)

// QuoteSource produces the current quote of a symbol.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// SymbolLister lists the symbols that need prices.
type SymbolLister interface {
	DistinctSymbols(ctx context.Context) ([]string, error)
}

// Updater refreshes stored quotes.
type Updater struct {
	store      *Store
	symbols    SymbolLister
	source     QuoteSource // nil when quotes arrive through Ingest only
	redis      *redis.Client
	staleAfter time.Duration
	now        func() time.Time
}

// NewUpdater creates a new Updater. rdb may be nil to skip publishing.
func NewUpdater(store *Store, symbols SymbolLister, source QuoteSource, rdb *redis.Client, staleAfter time.Duration) *Updater {
	return &Updater{
		store:      store,
		symbols:    symbols,
		source:     source,
		redis:      rdb,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Ingest records q and publishes it to live subscribers.
func (u *Updater) Ingest(ctx context.Context, q Quote) error {
	if err := u.store.Record(ctx, q); err != nil {
		return fmt.Errorf("record quote for %s: %w", q.Symbol, err)
	}
	if u.redis != nil {
		if err := Publish(ctx, u.redis, q); err != nil {
			logger.Warn("failed to publish quote for %s: %v", q.Symbol, err)
		}
	}
	return nil
}

// RunOnce refreshes every known symbol and marks old quotes stale.
func (u *Updater) RunOnce(ctx context.Context) error {
	if u.source != nil {
		symbols, err := u.knownSymbols(ctx)
		if err != nil {
			return err
		}

		updated := 0
		for _, symbol := range symbols {
			q, err := u.source.Quote(ctx, symbol)
			if err != nil {
				logger.WithFields(logger.Fields{"symbol": symbol, "error": err.Error()}).Warn("quote source failed")
				continue
			}
			if err := u.Ingest(ctx, q); err != nil {
				logger.Error("%v", err)
				continue
			}
			updated++
		}
		logger.Info("Updated %d/%d stock prices", updated, len(symbols))
	}

	n, err := u.store.MarkStale(ctx, u.now().Add(-u.staleAfter))
	if err != nil {
		return fmt.Errorf("mark stale prices: %w", err)
	}
	if n > 0 {
		logger.Warn("Marked %d stock prices stale", n)
	}
	return nil
}

// Run calls RunOnce immediately and then every interval until ctx is done.
func (u *Updater) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := u.RunOnce(ctx); err != nil {
			logger.Error("price update failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// knownSymbols is the union of rewarded symbols and already-priced symbols.
func (u *Updater) knownSymbols(ctx context.Context) ([]string, error) {
	rewarded, err := u.symbols.DistinctSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rewarded symbols: %w", err)
	}
	priced, err := u.store.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list priced symbols: %w", err)
	}

	set := make(map[string]struct{}, len(rewarded)+len(priced))
	for _, s := range rewarded {
		set[s] = struct{}{}
	}
	for _, s := range priced {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
