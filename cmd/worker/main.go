/**
 * @description
 * Worker Service Entry Point.
 * Responsible for background tasks:
 * 1. Keeping stock prices fresh, either from a WebSocket market-data feed or
 *    from the built-in simulator.
 * 2. Flagging quotes that stopped updating as stale.
 * 3. Syncing the rewarded symbol list to keep feed subscriptions fresh.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/ledger
 * - backend/internal/pricing
 * - backend/internal/pricing/feed
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/db"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/pricing"
	"github.com/stocky-project/backend/internal/pricing/feed"
)

const subscriptionSyncInterval = 2 * time.Minute

func main() {
	logger.Info("🔥 Starting Stocky price worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	// 2. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}
	if err := db.Migrate(pgDB); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	redisClient, err := db.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, price updates will not be broadcast: %v", err)
		redisClient = nil
	}

	// 4. Initialize Services
	cal := calendar.New(cfg.Rewards.Location)
	events := ledger.NewGormStore(pgDB)
	store := pricing.NewStore(pgDB, cal)

	var wsClient *feed.Client
	var updater *pricing.Updater
	if cfg.Pricing.FeedURL != "" {
		// Quotes are pushed by the feed; the periodic run only marks stale prices.
		updater = pricing.NewUpdater(store, events, nil, redisClient, cfg.Pricing.StaleAfter)
		wsClient = feed.NewClient(cfg.Pricing.FeedURL, updater.Ingest)

		go func() {
			if err := wsClient.Connect(ctx); err != nil {
				logger.Error("❌ Price feed client failed: %v", err)
			}
		}()
		go syncLoop(ctx, events, wsClient)
	} else {
		logger.Info("PRICE_FEED_URL is empty, using simulated prices")
		source := pricing.NewSimulator(time.Now().UnixNano())
		updater = pricing.NewUpdater(store, events, source, redisClient, cfg.Pricing.StaleAfter)
	}

	go updater.Run(ctx, cfg.Pricing.UpdateInterval)

	// 5. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	if wsClient != nil {
		if err := wsClient.Close(); err != nil {
			logger.Error("Error closing price feed: %v", err)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	time.Sleep(1 * time.Second) // Give connections time to close
	logger.Info("Worker exited.")
}

// syncLoop subscribes the feed to every rewarded symbol, now and on every tick.
func syncLoop(ctx context.Context, events ledger.Store, ws *feed.Client) {
	ticker := time.NewTicker(subscriptionSyncInterval)
	defer ticker.Stop()

	for {
		syncSubscriptions(ctx, events, ws)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func syncSubscriptions(ctx context.Context, events ledger.Store, ws *feed.Client) {
	symbols, err := events.DistinctSymbols(ctx)
	if err != nil {
		logger.Error("Failed to list rewarded symbols: %v", err)
		return
	}
	if len(symbols) == 0 {
		logger.Info("No rewarded symbols to subscribe to.")
		return
	}

	logger.Debug("Subscribing to %d symbols...", len(symbols))
	if err := ws.Subscribe(symbols); err != nil {
		logger.Error("Failed to subscribe: %v", err)
	}
}
